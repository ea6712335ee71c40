package scoring

// Tier is the discrete reputation label derived from the raw score.
type Tier string

const (
	TierInactive           Tier = "Inactive"
	TierCasualContributor  Tier = "Casual Contributor"
	TierRegularDeveloper   Tier = "Regular Developer"
	TierActiveProfessional Tier = "Active Professional"
	TierPassionate         Tier = "Passionate Contributor"
	TierElite              Tier = "Elite Contributor"
)

// tierThreshold binds a minimum raw score to a tier and optional badge.
type tierThreshold struct {
	MinScore int
	Tier     Tier
	Badge    string
}

// tierTable is evaluated top-down; the first entry whose MinScore the raw
// score reaches wins. Keeping the policy as data makes the thresholds
// testable independently of the scoring arithmetic.
var tierTable = []tierThreshold{
	{MinScore: 150, Tier: TierElite, Badge: "Top 1% • Exceptional"},
	{MinScore: 120, Tier: TierElite, Badge: "Top 5% • Outstanding"},
	{MinScore: 100, Tier: TierElite, Badge: "Top 10%"},
	{MinScore: 90, Tier: TierElite},
	{MinScore: 70, Tier: TierPassionate},
	{MinScore: 55, Tier: TierActiveProfessional},
	{MinScore: 35, Tier: TierRegularDeveloper},
	{MinScore: 15, Tier: TierCasualContributor},
}

// TierFor returns the tier and badge for a raw score.
func TierFor(score int) (Tier, string) {
	for _, t := range tierTable {
		if score >= t.MinScore {
			return t.Tier, t.Badge
		}
	}
	return TierInactive, ""
}

// Rank orders tiers by the score thresholds that produce them, so that a
// higher raw score never maps to a lower rank.
func (t Tier) Rank() int {
	switch t {
	case TierCasualContributor:
		return 1
	case TierRegularDeveloper:
		return 2
	case TierActiveProfessional:
		return 3
	case TierPassionate:
		return 4
	case TierElite:
		return 5
	default:
		return 0
	}
}
