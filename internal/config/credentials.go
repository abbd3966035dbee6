package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bgentry/speakeasy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
	"github.com/zerok/gtimelog2jira/internal/jira"
)

// DefaultLoginAttempts is how often the user is asked for a password
// before giving up.
const DefaultLoginAttempts = 3

// Keyring stores passwords by service (the Jira URL) and user.
type Keyring interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
	Delete(service, user string) error
}

// SystemKeyring uses the operating system's secret store. A missing entry
// is not an error.
type SystemKeyring struct{}

func (SystemKeyring) Get(service, user string) (string, error) {
	pwd, err := keyring.Get(service, user)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	return pwd, err
}

func (SystemKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

func (SystemKeyring) Delete(service, user string) error {
	err := keyring.Delete(service, user)
	if err == keyring.ErrNotFound {
		return nil
	}
	return err
}

type Prompter interface {
	Ask(prompt string) (string, error)
}

// TerminalPrompt reads a password from the terminal without echoing it.
type TerminalPrompt struct{}

func (TerminalPrompt) Ask(prompt string) (string, error) {
	return speakeasy.Ask(prompt)
}

type LoginOptions struct {
	Keyring       Keyring
	Prompt        Prompter
	Attempts      int
	ClientOptions []jira.Option
	Log           *logrus.Logger
}

// Login creates a Jira client for the configured account and verifies the
// credentials. Passwords are taken from the configuration, the keyring or
// the prompt, in that order. Prompted passwords that work are stored in
// the keyring, rejected ones are removed from it.
func Login(ctx context.Context, c *Config, opts *LoginOptions) (*jira.Client, *jira.User, error) {
	o := opts
	if o == nil {
		o = &LoginOptions{}
	}
	log := o.Log
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.ErrorLevel)
	}
	clientOpts := append([]jira.Option{jira.WithLogger(log)}, o.ClientOptions...)

	if c.JIRAToken != "" {
		client := jira.NewClient(c.JIRAURL, c.JIRAUsername, "", append(clientOpts, jira.WithToken(c.JIRAToken))...)
		me, err := client.Myself(ctx)
		if err != nil {
			return nil, nil, loginError(c, err)
		}
		return client, me, nil
	}

	attempts := o.Attempts
	if attempts <= 0 {
		attempts = DefaultLoginAttempts
	}
	password := c.JIRAPassword
	if password == "" && o.Keyring != nil {
		pwd, err := o.Keyring.Get(c.JIRAURL, c.JIRAUsername)
		if err != nil {
			log.WithError(err).Warn("Failed to query keyring")
		}
		password = pwd
	}

	for attempt := 0; attempt < attempts; attempt++ {
		prompted := false
		if attempt > 0 || password == "" {
			if o.Prompt == nil {
				return nil, nil, errorf("No Jira password available for %s at %s.", c.JIRAUsername, c.JIRAURL)
			}
			pwd, err := o.Prompt.Ask(fmt.Sprintf("Enter Jira password for %s at %s: ", c.JIRAUsername, c.JIRAURL))
			if err != nil {
				return nil, nil, errors.Wrap(err, "failed to read password from prompt")
			}
			password = pwd
			prompted = true
		}

		client := jira.NewClient(c.JIRAURL, c.JIRAUsername, password, clientOpts...)
		me, err := client.Myself(ctx)
		if err == nil {
			if prompted && o.Keyring != nil {
				if err := o.Keyring.Set(c.JIRAURL, c.JIRAUsername, password); err != nil {
					log.WithError(err).Warn("Failed to store password in keyring")
				}
			}
			c.JIRAPassword = password
			return client, me, nil
		}
		if jira.StatusCode(err) != http.StatusUnauthorized {
			return nil, nil, loginError(c, err)
		}
		log.Warn("Incorrect password or username")
		if o.Keyring != nil {
			if err := o.Keyring.Delete(c.JIRAURL, c.JIRAUsername); err != nil {
				log.WithError(err).Warn("Failed to remove password from keyring")
			}
		}
	}
	return nil, nil, errorf("Incorrect password or username.")
}

func loginError(c *Config, err error) error {
	switch code := jira.StatusCode(err); code {
	case 0:
		return errors.Wrapf(err, "failed to reach Jira at %s", c.JIRAURL)
	case http.StatusUnauthorized:
		return errorf("Incorrect password, username or token.")
	case http.StatusForbidden:
		return errorf("Jira credentials seem to be correct, but this user does not have permission to log in.\n"+
			"Try to log in via browser, maybe you need to answer a security question: %s", c.JIRAURL)
	default:
		return errorf("Something went wrong, Jira gave %d status code.", code)
	}
}
