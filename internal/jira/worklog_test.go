package jira_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zerok/gtimelog2jira/internal/jira"
)

func TestWorklogStartTime(t *testing.T) {
	for _, started := range []string{
		"2014-04-16T11:00:00.000+0300",
		"2014-04-16T11:00:00.123456+0300",
		"2014-04-16T11:00:00+03:00",
	} {
		wl := jira.Worklog{ID: "1", Started: started}
		ts, err := wl.StartTime()
		require.NoError(t, err, "%s should have been accepted", started)
		require.Equal(t, time.Date(2014, 4, 16, 8, 0, 0, 0, time.UTC), ts.UTC().Truncate(time.Second))
	}

	_, err := jira.Worklog{ID: "1", Started: "yesterday"}.StartTime()
	require.Error(t, err)
}

func TestUserIs(t *testing.T) {
	require.True(t, jira.User{Name: "a"}.Is(jira.User{Name: "a"}))
	require.True(t, jira.User{AccountID: "x", Name: "a"}.Is(jira.User{AccountID: "x"}))
	require.False(t, jira.User{Name: "a"}.Is(jira.User{Name: "b"}))
	require.False(t, jira.User{}.Is(jira.User{}), "empty users should never match")
}
