package timelog

import (
	"time"

	"github.com/zerok/gtimelog2jira"
)

// DefaultPeriod is how far back worklogs are considered if neither a
// start date nor an issue is given.
const DefaultPeriod = 7 * 24 * time.Hour

type Filter struct {
	Since time.Time
	Until time.Time
	Issue string
}

// WithDefaults limits an otherwise unrestricted filter to the last week.
func (f Filter) WithDefaults(now time.Time) Filter {
	if f.Since.IsZero() && f.Issue == "" {
		f.Since = now.Add(-DefaultPeriod)
	}
	return f
}

func (f Filter) Match(w gtimelog2jira.WorkLog) bool {
	if !f.Since.IsZero() && w.Start.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && w.End.After(f.Until) {
		return false
	}
	if f.Issue != "" && w.Issue != f.Issue {
		return false
	}
	return true
}

func (f Filter) Apply(logs []gtimelog2jira.WorkLog) []gtimelog2jira.WorkLog {
	result := make([]gtimelog2jira.WorkLog, 0, len(logs))
	for _, w := range logs {
		if f.Match(w) {
			result = append(result, w)
		}
	}
	return result
}
