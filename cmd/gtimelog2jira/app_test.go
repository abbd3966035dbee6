package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/zerok/gtimelog2jira/internal/jira"
	"github.com/zerok/gtimelog2jira/internal/jira/jiratest"
	"gopkg.in/yaml.v2"
)

var (
	vilnius = time.FixedZone("EEST", 3*60*60)
	me      = jira.User{Name: "me@example.com", DisplayName: "Me"}
)

type staticPrompt string

func (p staticPrompt) Ask(string) (string, error) {
	return string(p), nil
}

type env struct {
	t       *testing.T
	dir     string
	config  string
	timelog string
	jiralog string
	srv     *jiratest.Server
	out     bytes.Buffer
}

func newEnv(t *testing.T) *env {
	e := &env{t: t, dir: t.TempDir()}
	e.config = filepath.Join(e.dir, "gtimelogrc")
	e.timelog = filepath.Join(e.dir, "timelog.txt")
	e.jiralog = filepath.Join(e.dir, "jira.log")

	e.srv = jiratest.NewServer(me, "BAR-24", "FOO-42", "FOO-64")
	t.Cleanup(e.srv.Close)
	e.srv.RequirePassword("secret")
	e.srv.AddWorklog("FOO-64", jira.User{Name: "someone.else@example.com"}, time.Date(2014, 4, 16, 11, 0, 0, 0, vilnius), 300, "did some work")

	require.NoError(t, ioutil.WriteFile(e.config, []byte(strings.Join([]string{
		"[gtimelog2jira]",
		"jira = " + e.srv.URL + "/",
		"username = " + me.Name,
		"password =",
		"timelog = " + e.timelog,
		"jiralog = " + e.jiralog,
		"projects = FOO BAR BAZ",
	}, "\n")), 0600))

	e.log(
		"2014-03-24 14:15: arrived",
		"2014-03-24 18:14: project1: some work",
		"",
		"2014-03-31 08:00: arrived",
		"2014-03-31 15:48: project1: FOO-42 some work",
		"2014-03-31 17:10: project2: ABC-1 some work",
		"2014-03-31 17:38: project1: BAR-24 some work",
		"2014-03-31 18:51: project1: FOO-42 some more work",
		"",
		"2014-04-01 13:54: arrived",
		"2014-04-01 15:41: project1: FOO-42 some work",
		"2014-04-01 16:04: tea **",
		"2014-04-01 18:00: project1: FOO-42 some more work",
		"",
		"2014-04-16 10:30: arrived",
		"2014-04-16 11:25: project1: FOO-64 initial work",
		"2014-04-16 12:30: project1: FOO-00 missing issue",
	)
	return e
}

func (e *env) log(lines ...string) {
	fp, err := os.OpenFile(e.timelog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	require.NoError(e.t, err)
	defer fp.Close()
	for _, l := range lines {
		_, err := fp.WriteString(l + "\n")
		require.NoError(e.t, err)
	}
}

func (e *env) app() *application {
	e.out.Reset()
	log := logrus.New()
	log.Out = ioutil.Discard
	app := newApplication(log, &e.out)
	app.loc = vilnius
	app.now = func() time.Time { return time.Date(2014, 4, 18, 0, 0, 0, 0, vilnius) }
	app.prompt = staticPrompt("secret")
	return app
}

func (e *env) run(args ...string) error {
	app := e.app()
	defer app.close()
	cmd := newRootCommand(app)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	return cmd.ExecuteContext(context.Background())
}

// worklogs returns started, seconds, issue and comment of every worklog
// created by the test user.
func (e *env) worklogs() [][]interface{} {
	var result [][]interface{}
	for _, key := range []string{"BAR-24", "FOO-42", "FOO-64"} {
		for _, wl := range e.srv.WorklogsBy(me)[key] {
			result = append(result, []interface{}{wl.Started, wl.TimeSpentSeconds, key, wl.Comment})
		}
	}
	return result
}

// jiralogRecords drops the time of synchronization from every record.
func (e *env) jiralogRecords() [][]string {
	fp, err := os.Open(e.jiralog)
	require.NoError(e.t, err)
	defer fp.Close()
	records, err := csv.NewReader(fp).ReadAll()
	require.NoError(e.t, err)
	for i := range records {
		records[i] = records[i][1:]
	}
	return records
}

func (e *env) stdout() []string {
	return strings.Split(strings.TrimRight(e.out.String(), "\n"), "\n")
}

func TestNoArgs(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run())
	e.log(
		"",
		"2014-04-17 10:30: arrived",
		"2014-04-17 11:25: project1: FOO-64 do more work",
	)
	require.NoError(t, e.run())

	require.Equal(t, [][]interface{}{
		{"2014-04-16T10:30:00.000+0300", int64(3300), "FOO-64", "initial work"},
		{"2014-04-17T10:30:00.000+0300", int64(3300), "FOO-64", "do more work"},
	}, e.worklogs())
	require.Equal(t, [][]string{
		{"2014-04-16T11:25+03:00", "3900", "FOO-00", "", "error", "Issue FOO-00 Does Not Exist"},
		{"2014-04-16T10:30+03:00", "3300", "FOO-64", "5", "add", "initial work"},
		{"2014-04-16T11:25+03:00", "3900", "FOO-00", "", "error", "Issue FOO-00 Does Not Exist"},
		{"2014-04-16T10:30+03:00", "3300", "FOO-64", "5", "overlap", "initial work"},
		{"2014-04-17T10:30+03:00", "3300", "FOO-64", "6", "add", "do more work"},
	}, e.jiralogRecords())
}

func TestFullSync(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run("--since", "2014-01-01"))
	require.Equal(t, 7, e.srv.CreateCalls(), "six worklogs and the unknown issue should have been submitted")
	require.NoError(t, e.run("--since", "2014-01-01"))
	require.Equal(t, 8, e.srv.CreateCalls(), "only the unknown issue should have been submitted again")

	require.Equal(t, [][]interface{}{
		{"2014-03-31T17:10:00.000+0300", int64(1680), "BAR-24", "some work"},
		{"2014-03-31T08:00:00.000+0300", int64(28080), "FOO-42", "some work"},
		{"2014-03-31T17:38:00.000+0300", int64(4380), "FOO-42", "some more work"},
		{"2014-04-01T13:54:00.000+0300", int64(6420), "FOO-42", "some work"},
		{"2014-04-01T16:04:00.000+0300", int64(6960), "FOO-42", "some more work"},
		{"2014-04-16T10:30:00.000+0300", int64(3300), "FOO-64", "initial work"},
	}, e.worklogs())

	records := e.jiralogRecords()
	require.Len(t, records, 14)
	for _, r := range records[7:] {
		if r[2] == "FOO-00" {
			require.Equal(t, "error", r[4])
			continue
		}
		require.Equal(t, "overlap", r[4], "nothing should have been added by the second run: %v", r)
	}
}

func TestSingleIssue(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run("--issue", "FOO-42"))
	e.log(
		"",
		"2014-04-17 10:30: arrived",
		"2014-04-17 11:25: project1: FOO-42 do more work",
		"2014-04-17 12:30: project1: FOO-64 do more work",
	)
	require.NoError(t, e.run("--issue", "FOO-42"))

	require.Equal(t, [][]interface{}{
		{"2014-03-31T08:00:00.000+0300", int64(28080), "FOO-42", "some work"},
		{"2014-03-31T17:38:00.000+0300", int64(4380), "FOO-42", "some more work"},
		{"2014-04-01T13:54:00.000+0300", int64(6420), "FOO-42", "some work"},
		{"2014-04-01T16:04:00.000+0300", int64(6960), "FOO-42", "some more work"},
		{"2014-04-17T10:30:00.000+0300", int64(3300), "FOO-42", "do more work"},
	}, e.worklogs())
}

func TestSinceAndUntil(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run("--since", "2014-03-31", "--until", "2014-03-31"))
	require.Equal(t, [][]interface{}{
		{"2014-03-31T17:10:00.000+0300", int64(1680), "BAR-24", "some work"},
		{"2014-03-31T08:00:00.000+0300", int64(28080), "FOO-42", "some work"},
		{"2014-03-31T17:38:00.000+0300", int64(4380), "FOO-42", "some more work"},
	}, e.worklogs())
}

func TestDryRun(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run("--dry-run", "--since", "2014-04-01"))
	require.Equal(t, 0, e.srv.CreateCalls())
	require.Empty(t, e.worklogs())
	require.Equal(t, [][]string{
		{"2014-04-16T11:25+03:00", "3900", "FOO-00", "", "add (dry run)", "missing issue"},
		{"2014-04-01T13:54+03:00", "6420", "FOO-42", "", "add (dry run)", "some work"},
		{"2014-04-01T16:04+03:00", "6960", "FOO-42", "", "add (dry run)", "some more work"},
		{"2014-04-16T10:30+03:00", "3300", "FOO-64", "", "add (dry run)", "initial work"},
	}, e.jiralogRecords())
	require.Equal(t, []string{
		"",
		"ADD: FOO-00     2014-04-16T11:25+03:00   1h  5m: missing issue",
		"ADD: FOO-42     2014-04-01T13:54+03:00   1h 47m: some work",
		"ADD: FOO-42     2014-04-01T16:04+03:00   1h 56m: some more work",
		"ADD: FOO-64     2014-04-16T10:30+03:00      55m: initial work",
		"",
		"TOTALS:",
		"    FOO-00:   1h  5m (1), " + e.srv.URL + "/browse/FOO-00",
		"    FOO-42:   3h 43m (2), " + e.srv.URL + "/browse/FOO-42",
		"    FOO-64:      55m (1), " + e.srv.URL + "/browse/FOO-64",
	}, e.stdout())
}

func TestYAMLOutput(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run("--dry-run", "--issue", "FOO-64", "--format", "yaml"))
	var out struct {
		Items []struct {
			Issue  string `yaml:"issue"`
			Action string `yaml:"action"`
		} `yaml:"items"`
	}
	require.NoError(t, yaml.Unmarshal(e.out.Bytes(), &out))
	require.Len(t, out.Items, 1)
	require.Equal(t, "FOO-64", out.Items[0].Issue)
	require.Equal(t, "add (dry run)", out.Items[0].Action)
}

func TestInvalidArguments(t *testing.T) {
	e := newEnv(t)
	require.Error(t, e.run("--since", "last week"))
	require.Error(t, e.run("--format", "xml"))
	require.Equal(t, 0, e.srv.CreateCalls())
}

func TestFailureIsWrittenToLogFile(t *testing.T) {
	e := newEnv(t)
	e.srv.Close()
	logFile := filepath.Join(e.dir, "sync.log")

	app := e.app()
	cmd := newRootCommand(app)
	cmd.SetArgs([]string{"--config", e.config, "--log-file", logFile})
	var stderr bytes.Buffer
	require.Equal(t, 1, app.execute(context.Background(), cmd, &stderr))
	require.Empty(t, stderr.String())

	data, err := ioutil.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "level=fatal")
	require.Contains(t, string(data), "Synchronization failed")
	require.Contains(t, string(data), "failed to reach Jira")
}

func TestConfigErrorIsPrinted(t *testing.T) {
	e := newEnv(t)
	app := e.app()
	cmd := newRootCommand(app)
	cmd.SetArgs([]string{"--config", filepath.Join(e.dir, "missing")})
	var stderr bytes.Buffer
	require.Equal(t, 1, app.execute(context.Background(), cmd, &stderr))
	require.Contains(t, stderr.String(), "Error: Configuration file")
}
