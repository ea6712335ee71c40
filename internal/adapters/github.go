package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/wekraft/gitpilot/internal/errors"
	"github.com/wekraft/gitpilot/internal/health"
	"github.com/wekraft/gitpilot/internal/resilience"
	"github.com/wekraft/gitpilot/internal/scoring"
)

const defaultBaseURL = "https://api.github.com"

// hoursPerYear converts an account's lifetime to fractional years
const hoursPerYear = 24 * 365.25

// githubUser is the subset of the user payload we consume
type githubUser struct {
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
}

// githubRepo is the subset of the repository payload we consume
type githubRepo struct {
	FullName        string    `json:"full_name"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	PushedAt        time.Time `json:"pushed_at"`
	License         *struct {
		Key string `json:"key"`
	} `json:"license"`
}

// searchResult carries only the aggregate count from search endpoints
type searchResult struct {
	TotalCount int `json:"total_count"`
}

// GitHubAdapter fetches scoring inputs from the GitHub API
type GitHubAdapter struct {
	token   string
	baseURL string
	pool    *resilience.ConnectionPool
	retry   resilience.RetryConfig
}

// NewGitHubAdapter creates a new GitHub adapter with connection pooling
func NewGitHubAdapter(token string) *GitHubAdapter {
	return NewGitHubAdapterWithBaseURL(token, defaultBaseURL)
}

// NewGitHubAdapterWithBaseURL creates an adapter against a custom API
// endpoint, used by tests
func NewGitHubAdapterWithBaseURL(token, baseURL string) *GitHubAdapter {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	pool := resilience.NewConnectionPool(10, 20, 30*time.Second, cb)

	return &GitHubAdapter{
		token:   token,
		baseURL: baseURL,
		pool:    pool,
		retry:   resilience.DefaultRetryConfig(),
	}
}

// FetchActivityCounters fetches a developer's lifetime activity totals
func (g *GitHubAdapter) FetchActivityCounters(ctx context.Context, username string) (scoring.ActivityCounters, error) {
	var counters scoring.ActivityCounters

	var user githubUser
	if err := g.getJSON(ctx, fmt.Sprintf("%s/users/%s", g.baseURL, url.PathEscape(username)), &user); err != nil {
		return counters, err
	}
	counters.AccountAgeYears = time.Since(user.CreatedAt).Hours() / hoursPerYear

	queries := []struct {
		endpoint string
		query    string
		dest     *int
	}{
		{"search/commits", fmt.Sprintf("author:%s", username), &counters.TotalCommits},
		{"search/issues", fmt.Sprintf("author:%s type:pr", username), &counters.TotalPRs},
		{"search/issues", fmt.Sprintf("author:%s type:issue is:closed", username), &counters.TotalIssuesClosed},
		{"search/issues", fmt.Sprintf("reviewed-by:%s type:pr", username), &counters.TotalReviews},
	}

	for _, q := range queries {
		count, err := g.searchCount(ctx, q.endpoint, q.query)
		if err != nil {
			return counters, err
		}
		*q.dest = count
	}

	return counters, nil
}

// FetchRepoSignals fetches the activity signals that feed a project's
// health score
func (g *GitHubAdapter) FetchRepoSignals(ctx context.Context, owner, repo string) (health.RepoActivitySignals, error) {
	var signals health.RepoActivitySignals
	full := fmt.Sprintf("%s/%s", owner, repo)

	var repoData githubRepo
	if err := g.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", g.baseURL, url.PathEscape(owner), url.PathEscape(repo)), &repoData); err != nil {
		return signals, err
	}

	signals.Stars = repoData.StargazersCount
	signals.Forks = repoData.ForksCount
	signals.HasLicense = repoData.License != nil
	if !repoData.PushedAt.IsZero() {
		signals.DaysSinceLastCommit = time.Since(repoData.PushedAt).Hours() / 24
		if signals.DaysSinceLastCommit < 0 {
			signals.DaysSinceLastCommit = 0
		}
	}

	signals.HasReadme = g.hasReadme(ctx, owner, repo)

	since := time.Now().AddDate(0, 0, -60).Format("2006-01-02")
	queries := []struct {
		endpoint string
		query    string
		dest     *int
	}{
		{"search/commits", fmt.Sprintf("repo:%s committer-date:>=%s", full, since), &signals.CommitsLast60Days},
		{"search/issues", fmt.Sprintf("repo:%s type:pr", full), &signals.TotalPRs},
		{"search/issues", fmt.Sprintf("repo:%s type:pr is:merged", full), &signals.MergedPRs},
		{"search/issues", fmt.Sprintf("repo:%s type:issue state:open", full), &signals.OpenIssues},
		{"search/issues", fmt.Sprintf("repo:%s type:issue state:closed", full), &signals.ClosedIssues},
	}

	for _, q := range queries {
		count, err := g.searchCount(ctx, q.endpoint, q.query)
		if err != nil {
			return signals, err
		}
		*q.dest = count
	}

	return signals, nil
}

// hasReadme probes the readme endpoint. Any failure counts as no
// readme rather than failing the whole calculation.
func (g *GitHubAdapter) hasReadme(ctx context.Context, owner, repo string) bool {
	resp, err := g.makeRequest(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s/readme", g.baseURL, url.PathEscape(owner), url.PathEscape(repo)))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// searchCount runs a search query and returns its total_count
func (g *GitHubAdapter) searchCount(ctx context.Context, endpoint, query string) (int, error) {
	u := fmt.Sprintf("%s/%s?q=%s&per_page=1", g.baseURL, endpoint, url.QueryEscape(query))

	var result searchResult
	if err := g.getJSON(ctx, u, &result); err != nil {
		return 0, err
	}

	return result.TotalCount, nil
}

// getJSON performs a GET request and decodes the response body
func (g *GitHubAdapter) getJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := g.makeRequest(ctx, http.MethodGet, url)
	if err != nil {
		return apperrors.NewExternalAPIError("github", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError("github resource", url)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError(resp.Header.Get("Retry-After"))
	default:
		body, _ := io.ReadAll(resp.Body)
		return apperrors.NewExternalAPIError("github",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return apperrors.NewExternalAPIError("github", fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// makeRequest makes an HTTP request to the GitHub API using the
// connection pool, retrying transient failures with backoff. A response
// is always handed back when one arrived so the caller can map its
// status code.
func (g *GitHubAdapter) makeRequest(ctx context.Context, method, url string) (*http.Response, error) {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "GitPilot/1.0",
	}

	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}

	resp, err := resilience.RetryHTTP(ctx, g.retry, func() (*http.Response, error) {
		return g.pool.DoRequest(ctx, method, url, headers)
	})
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// GetPoolStats returns connection pool statistics
func (g *GitHubAdapter) GetPoolStats() map[string]interface{} {
	return g.pool.GetStats()
}

// Close closes the connection pool
func (g *GitHubAdapter) Close() error {
	return g.pool.Close()
}
