package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wekraft/gitpilot/internal/errors"
)

// fakeGitHub serves the handful of endpoints the adapter consumes
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		created := time.Now().AddDate(-3, 0, 0).Format(time.RFC3339)
		fmt.Fprintf(w, `{"login":"octocat","created_at":%q}`, created)
	})

	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	mux.HandleFunc("/search/commits", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "author:octocat"):
			fmt.Fprint(w, `{"total_count":1500}`)
		case strings.Contains(q, "repo:wekraft/gitpilot"):
			fmt.Fprint(w, `{"total_count":90}`)
		default:
			fmt.Fprint(w, `{"total_count":0}`)
		}
	})

	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		count := 0
		switch {
		case strings.Contains(q, "reviewed-by:octocat"):
			count = 45
		case strings.Contains(q, "author:octocat") && strings.Contains(q, "type:pr"):
			count = 80
		case strings.Contains(q, "author:octocat") && strings.Contains(q, "type:issue"):
			count = 25
		case strings.Contains(q, "repo:wekraft/gitpilot") && strings.Contains(q, "is:merged"):
			count = 30
		case strings.Contains(q, "repo:wekraft/gitpilot") && strings.Contains(q, "type:pr"):
			count = 40
		case strings.Contains(q, "repo:wekraft/gitpilot") && strings.Contains(q, "state:open"):
			count = 10
		case strings.Contains(q, "repo:wekraft/gitpilot") && strings.Contains(q, "state:closed"):
			count = 30
		}
		fmt.Fprintf(w, `{"total_count":%d}`, count)
	})

	mux.HandleFunc("/repos/wekraft/gitpilot/readme", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"README.md"}`)
	})

	mux.HandleFunc("/repos/wekraft/gitpilot", func(w http.ResponseWriter, r *http.Request) {
		pushed := time.Now().AddDate(0, 0, -7).Format(time.RFC3339)
		fmt.Fprintf(w, `{"full_name":"wekraft/gitpilot","stargazers_count":120,"forks_count":30,"pushed_at":%q,"license":{"key":"mit"}}`, pushed)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestFetchActivityCounters(t *testing.T) {
	server := fakeGitHub(t)
	adapter := NewGitHubAdapterWithBaseURL("", server.URL)
	defer adapter.Close()

	counters, err := adapter.FetchActivityCounters(context.Background(), "octocat")
	require.NoError(t, err)

	assert.Equal(t, 1500, counters.TotalCommits)
	assert.Equal(t, 80, counters.TotalPRs)
	assert.Equal(t, 25, counters.TotalIssuesClosed)
	assert.Equal(t, 45, counters.TotalReviews)
	assert.InDelta(t, 3.0, counters.AccountAgeYears, 0.05)
}

func TestFetchActivityCountersUnknownUser(t *testing.T) {
	server := fakeGitHub(t)
	adapter := NewGitHubAdapterWithBaseURL("", server.URL)
	defer adapter.Close()

	_, err := adapter.FetchActivityCounters(context.Background(), "nobody")
	require.Error(t, err)

	appErr := apperrors.ToAppError(err)
	assert.Equal(t, apperrors.CategoryNotFound, appErr.Category)
}

func TestFetchRepoSignals(t *testing.T) {
	server := fakeGitHub(t)
	adapter := NewGitHubAdapterWithBaseURL("", server.URL)
	defer adapter.Close()

	signals, err := adapter.FetchRepoSignals(context.Background(), "wekraft", "gitpilot")
	require.NoError(t, err)

	assert.Equal(t, 90, signals.CommitsLast60Days)
	assert.Equal(t, 40, signals.TotalPRs)
	assert.Equal(t, 30, signals.MergedPRs)
	assert.Equal(t, 10, signals.OpenIssues)
	assert.Equal(t, 30, signals.ClosedIssues)
	assert.Equal(t, 120, signals.Stars)
	assert.Equal(t, 30, signals.Forks)
	assert.True(t, signals.HasReadme)
	assert.True(t, signals.HasLicense)
	assert.InDelta(t, 7.0, signals.DaysSinceLastCommit, 0.05)
}

func TestFetchRepoSignalsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	adapter := NewGitHubAdapterWithBaseURL("", server.URL)
	defer adapter.Close()

	_, err := adapter.FetchRepoSignals(context.Background(), "wekraft", "gitpilot")
	require.Error(t, err)

	appErr := apperrors.ToAppError(err)
	assert.Equal(t, apperrors.CategoryRateLimit, appErr.Category)
}

func TestAdapterSendsAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		created := time.Now().AddDate(-1, 0, 0).Format(time.RFC3339)
		if strings.HasPrefix(r.URL.Path, "/users/") {
			fmt.Fprintf(w, `{"login":"octocat","created_at":%q}`, created)
			return
		}
		fmt.Fprint(w, `{"total_count":0}`)
	}))
	defer server.Close()

	adapter := NewGitHubAdapterWithBaseURL("secret-token", server.URL)
	defer adapter.Close()

	_, err := adapter.FetchActivityCounters(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}
