// Package reconcile decides which local worklogs are missing in Jira and
// creates them.
package reconcile

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zerok/gtimelog2jira"
	"github.com/zerok/gtimelog2jira/internal/jira"
)

// WorklogService is the part of the Jira API the reconciler depends on.
type WorklogService interface {
	IssueWorklogs(ctx context.Context, issueKey string) ([]jira.Worklog, error)
	AddWorklog(ctx context.Context, issueKey string, wl jira.WorklogCreation) (*jira.Worklog, error)
}

type Options struct {
	DryRun bool
	// Author limits the remote worklogs considered for overlap detection to
	// the ones created by this user. All worklogs are considered if nil.
	Author *jira.User
	Log    *logrus.Logger
}

type Result struct {
	WorkLog gtimelog2jira.WorkLog
	Action  gtimelog2jira.Action
	// RemoteIDs holds the created worklog or the overlapping ones.
	RemoteIDs []string
	Errors    []string
}

type Reconciler struct {
	svc    WorklogService
	dryRun bool
	author *jira.User
	log    *logrus.Logger
}

type interval struct {
	id    string
	start time.Time
	end   time.Time
}

func New(svc WorklogService, opts *Options) *Reconciler {
	o := opts
	if o == nil {
		o = &Options{}
	}
	r := Reconciler{
		svc:    svc,
		dryRun: o.DryRun,
		author: o.Author,
		log:    o.Log,
	}
	if r.log == nil {
		r.log = logrus.New()
		r.log.SetLevel(logrus.ErrorLevel)
	}
	return &r
}

// Overlaps reports whether the local entry intersects [start, end). Equal
// start times count as overlap so that empty intervals are detected too.
func Overlaps(local gtimelog2jira.Entry, start, end time.Time) bool {
	if local.Start.Equal(start) {
		return true
	}
	return start.Before(local.End) && local.Start.Before(end)
}

// Run groups the worklogs by issue, fetches the existing worklogs of every
// issue once and creates the ones that don't overlap any of them.
//
// Results are ordered by issue and keep the input order within an issue.
// If an error is returned, the results collected up to that point are
// returned along with it.
func (r *Reconciler) Run(ctx context.Context, logs []gtimelog2jira.WorkLog) ([]Result, error) {
	sorted := append([]gtimelog2jira.WorkLog(nil), logs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Issue < sorted[j].Issue
	})

	results := make([]Result, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Issue == sorted[start].Issue {
			end++
		}
		group, err := r.reconcileIssue(ctx, sorted[start].Issue, sorted[start:end])
		results = append(results, group...)
		if err != nil {
			return results, err
		}
		start = end
	}
	return results, nil
}

func (r *Reconciler) reconcileIssue(ctx context.Context, issue string, logs []gtimelog2jira.WorkLog) ([]Result, error) {
	log := r.log.WithField("issue", issue)
	remote, err := r.remoteIntervals(ctx, issue)
	if err != nil {
		return nil, err
	}
	log.Debugf("Found %d existing worklogs", len(remote))

	results := make([]Result, 0, len(logs))
	for _, wl := range logs {
		if ids, found := overlapping(wl.Entry, remote); found {
			log.Debugf("%s overlaps with %v", wl.Start, ids)
			results = append(results, Result{WorkLog: wl, Action: gtimelog2jira.ActionOverlap, RemoteIDs: ids})
			continue
		}
		if r.dryRun {
			results = append(results, Result{WorkLog: wl, Action: gtimelog2jira.ActionAddDryRun})
			remote = append(remote, interval{start: wl.Start, end: wl.End})
			continue
		}
		created, err := r.svc.AddWorklog(ctx, issue, jira.NewWorklogCreation(wl.Start, wl.Duration(), wl.Comment))
		if err != nil {
			if e, ok := jira.AsError(err); ok && isRejection(e.StatusCode) {
				log.WithError(err).Warnf("Jira rejected worklog starting at %s", wl.Start)
				results = append(results, Result{WorkLog: wl, Action: gtimelog2jira.ActionError, Errors: e.Messages})
				continue
			}
			return results, err
		}
		log.Infof("Created worklog %s starting at %s", created.ID, wl.Start)
		results = append(results, Result{WorkLog: wl, Action: gtimelog2jira.ActionAdd, RemoteIDs: []string{created.ID}})
		remote = append(remote, interval{id: created.ID, start: wl.Start, end: wl.End})
	}
	return results, nil
}

func (r *Reconciler) remoteIntervals(ctx context.Context, issue string) ([]interval, error) {
	worklogs, err := r.svc.IssueWorklogs(ctx, issue)
	if err != nil {
		if jira.StatusCode(err) == http.StatusNotFound {
			r.log.WithError(err).Warnf("Issue %s not found", issue)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to fetch worklogs of %s", issue)
	}
	result := make([]interval, 0, len(worklogs))
	for _, wl := range worklogs {
		if r.author != nil && !wl.Author.Is(*r.author) {
			continue
		}
		start, end, err := wl.Interval()
		if err != nil {
			r.log.WithError(err).Warnf("Ignoring worklog %s of %s", wl.ID, issue)
			continue
		}
		result = append(result, interval{id: wl.ID, start: start, end: end})
	}
	return result, nil
}

// overlapping returns the IDs of all intervals overlapping e. Intervals
// simulated during a dry run have no ID.
func overlapping(e gtimelog2jira.Entry, remote []interval) ([]string, bool) {
	var ids []string
	found := false
	for _, iv := range remote {
		if !Overlaps(e, iv.start, iv.end) {
			continue
		}
		found = true
		if iv.id != "" {
			ids = append(ids, iv.id)
		}
	}
	return ids, found
}

// isRejection reports whether Jira refused a single request. Such
// failures don't abort the run.
func isRejection(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusUnauthorized && status != http.StatusForbidden
}
