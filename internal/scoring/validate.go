package scoring

import (
	"fmt"
	"math"

	"github.com/wekraft/gitpilot/internal/errors"
)

// Validate rejects malformed counters at the service boundary. The
// calculator itself is total over non-negative inputs; this guard exists so
// garbage input fails fast instead of producing a nonsensical score.
func (c ActivityCounters) Validate() error {
	fieldErrors := make(map[string]string)

	checkCount := func(field string, v int) {
		if v < 0 {
			fieldErrors[field] = fmt.Sprintf("must be non-negative, got %d", v)
		}
	}
	checkCount("total_commits", c.TotalCommits)
	checkCount("total_prs", c.TotalPRs)
	checkCount("total_issues_closed", c.TotalIssuesClosed)
	checkCount("total_reviews", c.TotalReviews)

	switch {
	case math.IsNaN(c.AccountAgeYears) || math.IsInf(c.AccountAgeYears, 0):
		fieldErrors["account_age_years"] = "must be finite"
	case c.AccountAgeYears < 0:
		fieldErrors["account_age_years"] = fmt.Sprintf("must be non-negative, got %g", c.AccountAgeYears)
	}

	if len(fieldErrors) > 0 {
		return errors.NewValidationError("invalid activity counters", fieldErrors)
	}
	return nil
}
