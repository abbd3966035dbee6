package jira

import (
	"time"

	"github.com/pkg/errors"
)

// DatetimeFormat is the format Jira expects for the started field of a
// worklog.
const DatetimeFormat = "2006-01-02T15:04:05.000-0700"

// startedFormats are tried in order when parsing a started value. Fractional
// seconds are accepted by time.Parse even without being part of the layout.
var startedFormats = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

type User struct {
	Name         string `json:"name,omitempty"`
	Key          string `json:"key,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	TimeZone     string `json:"timeZone,omitempty"`
}

// Is reports whether both values describe the same account. Jira Server
// identifies users by name, Jira Cloud by account ID.
func (u User) Is(other User) bool {
	if u.AccountID != "" && u.AccountID == other.AccountID {
		return true
	}
	return u.Name != "" && u.Name == other.Name
}

type WorklogCreation struct {
	Started          string `json:"started"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	Comment          string `json:"comment"`
}

func NewWorklogCreation(start time.Time, dur time.Duration, comment string) WorklogCreation {
	return WorklogCreation{
		Started:          start.Format(DatetimeFormat),
		TimeSpentSeconds: int64(dur.Round(time.Second).Seconds()),
		Comment:          comment,
	}
}

type Worklog struct {
	ID               string `json:"id"`
	IssueID          string `json:"issueId,omitempty"`
	Self             string `json:"self,omitempty"`
	Author           User   `json:"author"`
	Comment          string `json:"comment,omitempty"`
	Started          string `json:"started"`
	TimeSpent        string `json:"timeSpent,omitempty"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
}

func (w Worklog) StartTime() (time.Time, error) {
	var err error
	for _, layout := range startedFormats {
		t, perr := time.Parse(layout, w.Started)
		if perr == nil {
			return t, nil
		}
		err = perr
	}
	return time.Time{}, errors.Wrapf(err, "invalid started value %q of worklog %s", w.Started, w.ID)
}

// Interval returns the time range covered by the worklog.
func (w Worklog) Interval() (time.Time, time.Time, error) {
	start, err := w.StartTime()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Duration(w.TimeSpentSeconds) * time.Second), nil
}

type WorklogResult struct {
	MaxResults int64     `json:"maxResults"`
	Total      int64     `json:"total"`
	StartAt    int64     `json:"startAt"`
	Items      []Worklog `json:"worklogs"`
}
