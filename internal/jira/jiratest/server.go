// Package jiratest provides an in-memory Jira server covering the worklog
// endpoints used by gtimelog2jira.
package jiratest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/zerok/gtimelog2jira/internal/jira"
)

type issue struct {
	id       string
	worklogs []jira.Worklog
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	user     jira.User
	password string
	token    string
	issues   map[string]*issue
	order    []string
	nextID   int
	creates  int
	lists    int
}

// NewServer starts a server knowing the given issues. Requests are
// answered as if they were made by user.
func NewServer(user jira.User, issueKeys ...string) *Server {
	s := &Server{
		user:   user,
		issues: make(map[string]*issue),
	}
	for _, key := range issueKeys {
		s.AddIssue(key)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/2/myself", s.handleMyself)
	mux.HandleFunc("GET /rest/api/2/issue/{key}/worklog", s.handleListWorklogs)
	mux.HandleFunc("POST /rest/api/2/issue/{key}/worklog", s.handleCreateWorklog)
	s.Server = httptest.NewServer(s.requireAuth(mux))
	return s
}

// RequirePassword makes the server reject basic auth requests that don't
// use the configured user's name and this password.
func (s *Server) RequirePassword(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = password
}

// RequireToken makes the server accept only this bearer token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Server) AddIssue(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addIssue(key)
}

func (s *Server) addIssue(key string) {
	if _, found := s.issues[key]; found {
		return
	}
	s.issues[key] = &issue{id: s.newID()}
	s.order = append(s.order, key)
}

// AddWorklog stores a worklog as if it was created through the API and
// returns its ID. Unknown issues are created on the fly.
func (s *Server) AddWorklog(key string, author jira.User, started time.Time, seconds int64, comment string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addIssue(key)
	return s.addWorklog(key, author, started.Format(jira.DatetimeFormat), seconds, comment)
}

func (s *Server) addWorklog(key string, author jira.User, started string, seconds int64, comment string) string {
	iss := s.issues[key]
	id := s.newID()
	iss.worklogs = append(iss.worklogs, jira.Worklog{
		ID:               id,
		IssueID:          iss.id,
		Self:             fmt.Sprintf("%s/rest/api/2/issue/%s/worklog/%s", s.URL, iss.id, id),
		Author:           author,
		Comment:          comment,
		Started:          started,
		TimeSpent:        fmt.Sprintf("%dm", seconds/60),
		TimeSpentSeconds: seconds,
	})
	return id
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

// Worklogs returns all worklogs of an issue ordered by creation.
func (s *Server) Worklogs(key string) []jira.Worklog {
	s.mu.Lock()
	defer s.mu.Unlock()
	iss, found := s.issues[key]
	if !found {
		return nil
	}
	return append([]jira.Worklog(nil), iss.worklogs...)
}

// WorklogsBy returns the worklogs of all issues authored by user, in
// issue creation order.
func (s *Server) WorklogsBy(user jira.User) map[string][]jira.Worklog {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string][]jira.Worklog)
	for _, key := range s.order {
		for _, wl := range s.issues[key].worklogs {
			if wl.Author.Is(user) {
				result[key] = append(result[key], wl)
			}
		}
	}
	return result
}

// CreateCalls counts the worklog creation requests received so far.
func (s *Server) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// ListCalls counts the worklog list requests received so far.
func (s *Server) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		password, token, name := s.password, s.token, s.user.Name
		s.mu.Unlock()
		switch {
		case token != "":
			if r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized)
				return
			}
		case password != "":
			u, p, ok := r.BasicAuth()
			if !ok || u != name || p != password {
				writeError(w, http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMyself(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListWorklogs(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	iss, found := s.issues[key]
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Issue %s Does Not Exist", key))
		return
	}
	total := int64(len(iss.worklogs))
	writeJSON(w, http.StatusOK, jira.WorklogResult{
		MaxResults: total,
		Total:      total,
		Items:      iss.worklogs,
	})
}

func (s *Server) handleCreateWorklog(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if _, found := s.issues[key]; !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Issue %s Does Not Exist", key))
		return
	}
	var in jira.WorklogCreation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.TimeSpentSeconds <= 0 {
		writeError(w, http.StatusBadRequest, "Worklog must not be null.")
		return
	}
	s.addWorklog(key, s.user, in.Started, in.TimeSpentSeconds, in.Comment)
	wls := s.issues[key].worklogs
	writeJSON(w, http.StatusCreated, wls[len(wls)-1])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, messages ...string) {
	if messages == nil {
		messages = []string{}
	}
	writeJSON(w, status, map[string]interface{}{
		"errorMessages": messages,
		"errors":        map[string]string{},
	})
}
