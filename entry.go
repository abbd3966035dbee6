package gtimelog2jira

import "time"

// Entry is a single interval read from the timelog. The message is the
// free-text part of the line that closed the interval.
type Entry struct {
	Start   time.Time
	End     time.Time
	Message string
}

func (e Entry) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// WorkLog is an Entry that could be attributed to a Jira issue.
type WorkLog struct {
	Entry
	Issue   string
	Comment string
}

func NewWorkLog(e Entry, issue, comment string) WorkLog {
	return WorkLog{
		Entry:   e,
		Issue:   issue,
		Comment: comment,
	}
}

// Seconds is the duration in whole seconds as it is sent to Jira.
func (w WorkLog) Seconds() int64 {
	return int64(w.Duration().Round(time.Second).Seconds())
}

type Action string

const (
	ActionAdd       Action = "add"
	ActionAddDryRun Action = "add (dry run)"
	ActionOverlap   Action = "overlap"
	ActionError     Action = "error"
)

// IsAdd reports whether the action stands for a (possibly simulated)
// creation of a worklog.
func (a Action) IsAdd() bool {
	return a == ActionAdd || a == ActionAddDryRun
}
