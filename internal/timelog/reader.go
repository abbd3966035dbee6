// Package timelog reads gtimelog's timelog.txt and turns its lines into
// worklogs that can be attributed to Jira issues.
package timelog

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zerok/gtimelog2jira"
)

const (
	TimestampFormat = "2006-01-02 15:04"
	DefaultMidnight = "06:00"
)

type Options struct {
	// Midnight is the time of day (HH:MM) at which a new gtimelog day
	// starts. Defaults to 06:00.
	Midnight string
	Location *time.Location
	Log      *logrus.Logger
}

type Reader struct {
	midnightHour   int
	midnightMinute int
	loc            *time.Location
	log            *logrus.Logger
}

func NewReader(opts *Options) (*Reader, error) {
	o := opts
	if o == nil {
		o = &Options{}
	}
	midnight := o.Midnight
	if midnight == "" {
		midnight = DefaultMidnight
	}
	m, err := time.Parse("15:04", midnight)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid virtual midnight %q", midnight)
	}
	r := Reader{
		midnightHour:   m.Hour(),
		midnightMinute: m.Minute(),
		loc:            o.Location,
		log:            o.Log,
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if r.log == nil {
		r.log = logrus.New()
		r.log.SetLevel(logrus.ErrorLevel)
	}
	return &r, nil
}

// ReadFile opens path and reads all entries from it.
func (r *Reader) ReadFile(path string) ([]gtimelog2jira.Entry, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open timelog %s", path)
	}
	defer fp.Close()
	return r.Read(fp)
}

// Read turns timelog lines into entries. Every line closes the interval
// started by the previous line. The first line of a day (as delimited by
// the virtual midnight) only marks the start. A day consisting of a single
// line yields a zero-length entry.
func (r *Reader) Read(in io.Reader) ([]gtimelog2jira.Entry, error) {
	result := make([]gtimelog2jira.Entry, 0, 64)
	scanner := bufio.NewScanner(in)

	var last time.Time
	var lastNote string
	var nextDay time.Time
	var hasLast bool
	var entries int
	var lineNo int

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ts, note, ok := r.parseLine(line)
		if !ok {
			r.log.Debugf("Skipping unparseable line %d: %q", lineNo, line)
			continue
		}

		if nextDay.IsZero() || !ts.Before(nextDay) {
			if hasLast && entries == 0 {
				result = append(result, gtimelog2jira.Entry{Start: last, End: last, Message: lastNote})
			}
			entries = 0
			last = ts
			lastNote = note
			hasLast = true
			nextDay = r.virtualMidnight(ts)
			continue
		}

		result = append(result, gtimelog2jira.Entry{Start: last, End: ts, Message: note})
		entries++
		last = ts
		lastNote = note
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read timelog")
	}
	if hasLast && entries == 0 {
		result = append(result, gtimelog2jira.Entry{Start: last, End: last, Message: lastNote})
	}
	return result, nil
}

func (r *Reader) parseLine(line string) (time.Time, string, bool) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return time.Time{}, "", false
	}
	ts, err := time.ParseInLocation(TimestampFormat, line[:idx], r.loc)
	if err != nil {
		return time.Time{}, "", false
	}
	return ts, line[idx+2:], true
}

// virtualMidnight returns the first day boundary after ts.
func (r *Reader) virtualMidnight(ts time.Time) time.Time {
	y, m, d := ts.Date()
	next := time.Date(y, m, d, r.midnightHour, r.midnightMinute, 0, 0, r.loc)
	if !ts.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
