// Package report renders the outcome of a synchronization for humans or
// scripts.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/zerok/gtimelog2jira"
	"github.com/zerok/gtimelog2jira/internal/reconcile"
	"gopkg.in/yaml.v2"
)

const startFormat = "2006-01-02T15:04Z07:00"

// BrowseFunc returns the web URL of an issue.
type BrowseFunc func(issue string) string

type Total struct {
	Issue   string `yaml:"issue"`
	Seconds int64  `yaml:"seconds"`
	Entries int    `yaml:"entries"`
	URL     string `yaml:"url,omitempty"`
}

type Item struct {
	Issue     string   `yaml:"issue"`
	Start     string   `yaml:"start"`
	Seconds   int64    `yaml:"seconds"`
	Action    string   `yaml:"action"`
	Comment   string   `yaml:"comment,omitempty"`
	RemoteIDs []string `yaml:"remote_ids,omitempty"`
	Errors    []string `yaml:"errors,omitempty"`
}

type Report struct {
	Items  []Item  `yaml:"items"`
	Totals []Total `yaml:"totals"`
}

// New summarizes results. Totals only cover added (or, in a dry run,
// addable) worklogs.
func New(results []reconcile.Result, browse BrowseFunc) *Report {
	r := Report{
		Items:  make([]Item, 0, len(results)),
		Totals: make([]Total, 0, 5),
	}
	totals := make(map[string]*Total)
	for _, res := range results {
		r.Items = append(r.Items, Item{
			Issue:     res.WorkLog.Issue,
			Start:     res.WorkLog.Start.Format(startFormat),
			Seconds:   res.WorkLog.Seconds(),
			Action:    string(res.Action),
			Comment:   res.WorkLog.Comment,
			RemoteIDs: res.RemoteIDs,
			Errors:    res.Errors,
		})
		if !res.Action.IsAdd() {
			continue
		}
		t, found := totals[res.WorkLog.Issue]
		if !found {
			t = &Total{Issue: res.WorkLog.Issue}
			if browse != nil {
				t.URL = browse(res.WorkLog.Issue)
			}
			totals[res.WorkLog.Issue] = t
		}
		t.Seconds += res.WorkLog.Seconds()
		t.Entries++
	}
	for _, t := range totals {
		r.Totals = append(r.Totals, *t)
	}
	sort.Slice(r.Totals, func(i, j int) bool {
		return r.Totals[i].Issue < r.Totals[j].Issue
	})
	return &r
}

// WriteText prints one line per added or failed worklog followed by the
// totals per issue.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\n")
	for _, item := range r.Items {
		var prefix, text string
		switch gtimelog2jira.Action(item.Action) {
		case gtimelog2jira.ActionAdd, gtimelog2jira.ActionAddDryRun:
			prefix, text = "ADD", item.Comment
		case gtimelog2jira.ActionError:
			prefix, text = "ERR", strings.Join(item.Errors, "; ")
		default:
			continue
		}
		fmt.Fprintf(&b, "%s: %-10s %s %8s: %s\n", prefix, item.Issue, item.Start, HumanDuration(item.Seconds, true), text)
	}
	if len(r.Totals) > 0 {
		b.WriteString("\nTOTALS:\n")
		for _, t := range r.Totals {
			fmt.Fprintf(&b, "%10s: %8s (%d)", t.Issue, HumanDuration(t.Seconds, true), t.Entries)
			if t.URL != "" {
				fmt.Fprintf(&b, ", %s", t.URL)
			}
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	_, err = w.Write(data)
	return err
}

var durationUnits = []struct {
	size int64
	unit string
}{
	{60, "s"},
	{60, "m"},
	{24, "h"},
	{7, "d"},
	{0, "w"},
}

// HumanDuration formats seconds as e.g. "1h 5m". With cols set, every
// number is padded to two characters so that values line up.
func HumanDuration(seconds int64, cols bool) string {
	format := "%d%s"
	if cols {
		format = "%2d%s"
	}
	parts := make([]string, 0, len(durationUnits))
	rest := seconds
	for _, u := range durationUnits {
		var v int64
		if u.size == 0 {
			v, rest = rest, 0
		} else {
			v, rest = rest%u.size, rest/u.size
		}
		if v != 0 {
			parts = append(parts, fmt.Sprintf(format, v, u.unit))
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " ")
}
