package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	APIPath        = "/rest/api/2"
	DefaultTimeout = time.Second * 10
)

type Client struct {
	username string
	password string
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	bearer   bool
	log      *logrus.Logger
}

type Option func(c *Client)

// WithToken authenticates using a personal access token instead of basic
// auth.
func WithToken(token string) Option {
	return func(c *Client) {
		if token == "" {
			return
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
		c.bearer = true
	}
}

// WithHTTPClient has to be applied before WithToken if both are used.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func NewClient(baseURL, username, password string, opts ...Option) *Client {
	c := Client{
		username: username,
		password: password,
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  DefaultTimeout,
		http:     &http.Client{},
	}
	for _, o := range opts {
		o(&c)
	}
	if c.log == nil {
		c.log = logrus.New()
		c.log.SetLevel(logrus.ErrorLevel)
	}
	return &c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// BrowseURL links to the web view of an issue.
func (c *Client) BrowseURL(issueKey string) string {
	return fmt.Sprintf("%s/browse/%s", c.baseURL, issueKey)
}

func (c *Client) issueWorklogURL(issueKey string) string {
	return fmt.Sprintf("%s%s/issue/%s/worklog", c.baseURL, APIPath, url.PathEscape(issueKey))
}

// Myself returns the user the client is authenticated as.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, c.baseURL+APIPath+"/myself", nil, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// IssueWorklogs lists the worklogs of an issue. Only the first page Jira
// returns is considered.
func (c *Client) IssueWorklogs(ctx context.Context, issueKey string) ([]Worklog, error) {
	var r WorklogResult
	if err := c.do(ctx, http.MethodGet, c.issueWorklogURL(issueKey), nil, &r, http.StatusOK); err != nil {
		return nil, errors.Wrapf(err, "failed to list worklogs of %s", issueKey)
	}
	if r.Total > int64(len(r.Items)) {
		c.log.Warnf("%s has %d worklogs but only %d were returned", issueKey, r.Total, len(r.Items))
	}
	return r.Items, nil
}

func (c *Client) AddWorklog(ctx context.Context, issueKey string, wl WorklogCreation) (*Worklog, error) {
	var created Worklog
	if err := c.do(ctx, http.MethodPost, c.issueWorklogURL(issueKey), wl, &created, http.StatusCreated, http.StatusOK); err != nil {
		return nil, errors.Wrapf(err, "failed to create worklog for %s", issueKey)
	}
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, u string, in interface{}, out interface{}, expected ...int) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return err
		}
		body = &buf
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-type", "application/json")
	}
	if !c.bearer {
		req.SetBasicAuth(c.username, c.password)
	}
	c.log.WithField("method", method).Debugf("Requesting %s", u)
	resp, err := c.http.Do(req.WithContext(timeoutCtx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, code := range expected {
		if resp.StatusCode != code {
			continue
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "failed to decode response of %s %s", method, u)
		}
		return nil
	}
	return newError(resp)
}

// Error is returned for every response with an unexpected status code.
type Error struct {
	StatusCode int
	Messages   []string
}

func (e *Error) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("unexpected return code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected return code %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

func newError(resp *http.Response) *Error {
	e := &Error{StatusCode: resp.StatusCode}
	raw, err := ioutil.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return e
	}
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 200 {
			e.Messages = []string{s}
		}
		return e
	}
	e.Messages = append(e.Messages, payload.ErrorMessages...)
	fields := make([]string, 0, len(payload.Errors))
	for field := range payload.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		e.Messages = append(e.Messages, fmt.Sprintf("%s: %s", field, payload.Errors[field]))
	}
	return e
}

// AsError unwraps err into a Jira error response if it is one.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	e, ok := errors.Cause(err).(*Error)
	return e, ok
}

// StatusCode returns the HTTP status code carried by err or 0.
func StatusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.StatusCode
	}
	return 0
}
