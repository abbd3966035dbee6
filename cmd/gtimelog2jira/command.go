package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zerok/gtimelog2jira/internal/config"
)

type options struct {
	configPath string
	since      string
	until      string
	issue      string
	dryRun     bool
	format     string
	verbose    bool
	logFile    string
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.configPath, "config", "c", config.DefaultPath(), "Path to the gtimelog configuration file")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Don't sync anything, just show what would be done")
	fs.StringVar(&o.since, "since", "", "Sync logs from the specified yyyy-mm-dd date")
	fs.StringVar(&o.until, "until", "", "Sync logs up until (and including) the specified yyyy-mm-dd date; entries ending after that day are skipped")
	fs.StringVar(&o.issue, "issue", "", "Sync only the specified issue")
	fs.StringVar(&o.format, "format", formatText, "Output format: text or yaml")
	fs.BoolVar(&o.verbose, "verbose", false, "Verbose logging")
	fs.StringVar(&o.logFile, "log-file", "", "Path to a logfile")
}

func newRootCommand(app *application) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "gtimelog2jira",
		Short:         "Create Jira worklog entries from a gtimelog timelog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setupLogging(&o); err != nil {
				return err
			}
			return app.run(cmd.Context(), &o)
		},
	}
	bindFlags(cmd.Flags(), &o)
	cmd.SetOut(app.out)
	return cmd
}

// setupLogging keeps the log file open until application.close.
func (a *application) setupLogging(o *options) error {
	a.log.SetLevel(logrus.WarnLevel)
	if o.verbose {
		a.log.SetLevel(logrus.DebugLevel)
	}
	if o.logFile == "" {
		return nil
	}
	fp, err := os.OpenFile(o.logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrapf(err, "failed to open logfile %s", o.logFile)
	}
	a.log.Out = fp
	a.logFile = fp
	return nil
}
