package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zerok/gtimelog2jira/internal/config"
	"github.com/zerok/gtimelog2jira/internal/jira"
	"github.com/zerok/gtimelog2jira/internal/jiralog"
	"github.com/zerok/gtimelog2jira/internal/reconcile"
	"github.com/zerok/gtimelog2jira/internal/report"
	"github.com/zerok/gtimelog2jira/internal/timelog"
)

const (
	formatText = "text"
	formatYAML = "yaml"

	dateFormat = "2006-01-02"
)

type application struct {
	log        *logrus.Logger
	out        io.Writer
	now        func() time.Time
	loc        *time.Location
	keyring    config.Keyring
	prompt     config.Prompter
	clientOpts []jira.Option
	logFile    io.Closer
}

func newApplication(log *logrus.Logger, out io.Writer) *application {
	return &application{
		log: log,
		out: out,
		now: time.Now,
		loc: time.Local,
	}
}

// execute runs cmd and reports its error. It returns the exit code.
// Configuration problems are printed to stderr, everything else is logged
// as fatal.
func (a *application) execute(ctx context.Context, cmd *cobra.Command, stderr io.Writer) int {
	defer a.close()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if config.IsConfigError(err) {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	a.log.WithError(err).Log(logrus.FatalLevel, "Synchronization failed")
	return 1
}

func (a *application) close() {
	if a.logFile == nil {
		return
	}
	a.log.Out = os.Stderr
	a.logFile.Close()
	a.logFile = nil
}

func (a *application) run(ctx context.Context, o *options) error {
	if o.format != formatText && o.format != formatYAML {
		return errors.Errorf("unsupported format %q", o.format)
	}
	filter, err := a.buildFilter(o)
	if err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	a.log.Debugf("Using timelog %s and jira log %s", cfg.Timelog, cfg.Jiralog)

	jl, err := jiralog.Open(cfg.Jiralog)
	if err != nil {
		return err
	}

	client, me, err := config.Login(ctx, cfg, &config.LoginOptions{
		Keyring:       a.keyring,
		Prompt:        a.prompt,
		ClientOptions: a.clientOpts,
		Log:           a.log,
	})
	if err != nil {
		return err
	}
	a.log.WithField("user", me.Name).Debug("Logged in")

	reader, err := timelog.NewReader(&timelog.Options{
		Midnight: cfg.Midnight,
		Location: a.loc,
		Log:      a.log,
	})
	if err != nil {
		return err
	}
	entries, err := reader.ReadFile(cfg.Timelog)
	if err != nil {
		return err
	}
	parser, err := timelog.NewParser(cfg.Projects, cfg.Aliases)
	if err != nil {
		return err
	}
	worklogs := filter.Apply(parser.Parse(entries))
	a.log.Debugf("%d of %d timelog entries selected", len(worklogs), len(entries))

	rec := reconcile.New(client, &reconcile.Options{
		DryRun: o.dryRun,
		Author: me,
		Log:    a.log,
	})
	results, runErr := rec.Run(ctx, worklogs)
	if err := jl.Append(results); err != nil {
		a.log.WithError(err).Error("Failed to update jira log")
		if runErr == nil {
			runErr = err
		}
	}

	rep := report.New(results, client.BrowseURL)
	switch o.format {
	case formatYAML:
		err = rep.WriteYAML(a.out)
	default:
		err = rep.WriteText(a.out)
	}
	if err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *application) buildFilter(o *options) (timelog.Filter, error) {
	f := timelog.Filter{Issue: o.issue}
	if o.since != "" {
		t, err := time.ParseInLocation(dateFormat, o.since, a.loc)
		if err != nil {
			return f, errors.Wrapf(err, "invalid --since date %q", o.since)
		}
		f.Since = t
	}
	if o.until != "" {
		t, err := time.ParseInLocation(dateFormat, o.until, a.loc)
		if err != nil {
			return f, errors.Wrapf(err, "invalid --until date %q", o.until)
		}
		f.Until = t.AddDate(0, 0, 1)
	}
	return f.WithDefaults(a.now()), nil
}
