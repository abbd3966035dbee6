// Package jiralog keeps an append-only record of every reconciliation
// result so that past synchronizations can be audited.
package jiralog

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zerok/gtimelog2jira"
	"github.com/zerok/gtimelog2jira/internal/reconcile"
)

const (
	TimestampFormat = "2006-01-02T15:04:05Z07:00"
	StartFormat     = "2006-01-02T15:04Z07:00"
)

type Log struct {
	path string
	now  func() time.Time
}

// Open makes sure path can be appended to.
func Open(path string) (*Log, error) {
	fp, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "jira log file %s is not writable", path)
	}
	if err := fp.Close(); err != nil {
		return nil, err
	}
	return &Log{path: path, now: time.Now}, nil
}

func (l *Log) Path() string {
	return l.path
}

// Append writes one record per result:
// time of sync, start, seconds, issue, remote IDs, action, comment.
// For failed results the comment is replaced by Jira's error messages.
func (l *Log) Append(results []reconcile.Result) error {
	if len(results) == 0 {
		return nil
	}
	fp, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrapf(err, "failed to open jira log %s", l.path)
	}
	defer fp.Close()

	now := l.now().Format(TimestampFormat)
	w := csv.NewWriter(fp)
	for _, r := range results {
		comment := r.WorkLog.Comment
		if r.Action == gtimelog2jira.ActionError {
			comment = strings.Join(r.Errors, "; ")
		}
		if err := w.Write([]string{
			now,
			r.WorkLog.Start.Format(StartFormat),
			strconv.FormatInt(r.WorkLog.Seconds(), 10),
			r.WorkLog.Issue,
			strings.Join(r.RemoteIDs, ";"),
			string(r.Action),
			comment,
		}); err != nil {
			return errors.Wrapf(err, "failed to write to jira log %s", l.path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "failed to write to jira log %s", l.path)
	}
	return fp.Close()
}
