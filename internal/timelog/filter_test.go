package timelog_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zerok/gtimelog2jira"
	"github.com/zerok/gtimelog2jira/internal/timelog"
)

func TestFilterDefaults(t *testing.T) {
	now := at("2014-04-18 00:00")
	f := timelog.Filter{}.WithDefaults(now)
	require.Equal(t, at("2014-04-11 00:00"), f.Since, "without arguments only the last week should be synced")

	f = timelog.Filter{Issue: "FOO-1"}.WithDefaults(now)
	require.True(t, f.Since.IsZero(), "an issue filter lifts the default period")

	since := at("2014-01-01 00:00")
	f = timelog.Filter{Since: since}.WithDefaults(now)
	require.Equal(t, since, f.Since)
}

func TestFilterApply(t *testing.T) {
	logs := []gtimelog2jira.WorkLog{
		gtimelog2jira.NewWorkLog(entry("2014-03-31 08:00", "2014-03-31 09:00", ""), "FOO-42", "a"),
		gtimelog2jira.NewWorkLog(entry("2014-04-01 08:00", "2014-04-01 09:00", ""), "BAR-24", "b"),
		gtimelog2jira.NewWorkLog(entry("2014-04-16 23:00", "2014-04-17 01:00", ""), "FOO-42", "c"),
	}

	got := timelog.Filter{Since: at("2014-04-01 00:00")}.Apply(logs)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].Comment)

	got = timelog.Filter{Until: at("2014-04-17 00:00")}.Apply(logs)
	require.Len(t, got, 2, "entries ending after the upper bound should be excluded")
	require.Equal(t, "b", got[1].Comment)

	got = timelog.Filter{Issue: "FOO-42"}.Apply(logs)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[1].Comment)
}
