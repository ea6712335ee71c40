package types

// ImpactRequest is the request body for the impact score endpoint.
// Counters are supplied inline; the GET variant of the endpoint gathers
// them from GitHub instead.
type ImpactRequest struct {
	Username        string  `json:"username" binding:"required"`
	TotalCommits    int     `json:"total_commits"`
	TotalPRs        int     `json:"total_prs"`
	TotalIssues     int     `json:"total_issues_closed"`
	TotalReviews    int     `json:"total_reviews"`
	AccountAgeYears float64 `json:"account_age_years"`
}

// ProjectRequest registers a repository for health tracking
type ProjectRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
	Name    string `json:"name"`
}
