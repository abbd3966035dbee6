package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	Section      = "gtimelog2jira"
	AliasSection = "gtimelog2jira:aliases"
	EnvPrefix    = "GTIMELOG2JIRA"

	DefaultTimelogName = "timelog.txt"
	DefaultJiralogName = "jira.log"
	DefaultMidnight    = "06:00"
)

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

type Config struct {
	JIRAURL      string
	JIRAUsername string
	JIRAPassword string
	JIRAToken    string
	Timelog      string
	Jiralog      string
	Projects     []string
	// Aliases maps words used in timelog messages to issue keys.
	Aliases  map[string]string
	Midnight string
}

// Error reports a problem the user has to fix in the configuration.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func errorf(format string, args ...interface{}) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err (or its cause) is an *Error.
func IsConfigError(err error) bool {
	_, ok := errors.Cause(err).(*Error)
	return ok
}

// DefaultPath is the gtimelog configuration file in the user's home. The
// home directory is resolved by Load.
func DefaultPath() string {
	return filepath.Join("~", ".gtimelog", "gtimelogrc")
}

// Load reads the [gtimelog2jira] section of an INI file. Settings can be
// overridden with GTIMELOG2JIRA_* environment variables. Relative and ~
// paths are resolved relative to the configuration file.
func Load(path string) (*Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errorf("Configuration file %s does not exist.", path)
		}
		return nil, errors.Wrapf(err, "failed to access %s", path)
	}
	// Passwords and URLs may contain # and ;.
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		InsensitiveKeys:     true,
	}, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if !f.HasSection(Section) {
		return nil, errorf("Section [%s] is not present in %s config file.", Section, path)
	}
	sec := f.Section(Section)

	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.AutomaticEnv()
	get := func(key string) string {
		if v := env.GetString(key); v != "" {
			return v
		}
		return strings.TrimSpace(sec.Key(key).String())
	}

	c := Config{
		JIRAURL:      get("jira"),
		JIRAUsername: get("username"),
		JIRAPassword: get("password"),
		JIRAToken:    get("token"),
		Timelog:      get("timelog"),
		Jiralog:      get("jiralog"),
		Projects:     strings.Fields(get("projects")),
		Midnight:     get("midnight"),
		Aliases:      make(map[string]string),
	}
	if f.HasSection(AliasSection) {
		for _, k := range f.Section(AliasSection).Keys() {
			c.Aliases[k.Name()] = strings.TrimSpace(k.String())
		}
	}

	dir := filepath.Dir(path)
	if c.Timelog == "" {
		c.Timelog = filepath.Join(dir, DefaultTimelogName)
	}
	if c.Jiralog == "" {
		c.Jiralog = filepath.Join(dir, DefaultJiralogName)
	}
	if c.Timelog, err = resolvePath(dir, c.Timelog); err != nil {
		return nil, err
	}
	if c.Jiralog, err = resolvePath(dir, c.Jiralog); err != nil {
		return nil, err
	}
	if c.Midnight == "" {
		c.Midnight = DefaultMidnight
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.JIRAURL == "" {
		return errorf("Jira URL is not specified, set Jira URL via %s.jira setting.", Section)
	}
	if c.JIRAUsername == "" && c.JIRAToken == "" {
		return errorf("Jira username is not specified, set Jira username via %s.username setting.", Section)
	}
	if len(c.Projects) == 0 {
		return errorf("List of projects is not specified, set Jira projects via %s.projects setting.", Section)
	}
	if _, err := time.Parse("15:04", c.Midnight); err != nil {
		return errorf("Invalid virtual midnight %q, expected HH:MM.", c.Midnight)
	}
	if _, err := os.Stat(c.Timelog); err != nil {
		return errorf("Timelog file %s does not exist.", c.Timelog)
	}
	aliases := make([]string, 0, len(c.Aliases))
	for a := range c.Aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		issue := c.Aliases[a]
		if !issueKeyPattern.MatchString(issue) {
			return errorf("Alias %q points to %q which is not an issue key.", a, issue)
		}
		if !c.hasProject(issue[:strings.LastIndex(issue, "-")]) {
			return errorf("Alias %q points to %q which is not part of the configured projects.", a, issue)
		}
	}
	return nil
}

func (c *Config) hasProject(key string) bool {
	for _, p := range c.Projects {
		if p == key {
			return true
		}
	}
	return false
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errorf("Cannot expand %s: %s.", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func resolvePath(base, path string) (string, error) {
	path, err := expandHome(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", path)
	}
	return abs, nil
}
