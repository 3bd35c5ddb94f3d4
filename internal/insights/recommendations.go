package insights

// Recommendation category names.
const (
	CategoryImmediate = "Immediate Actions (High Impact)"
	CategoryStrategic = "Strategic Initiatives (Medium Impact)"
	CategoryLongTerm  = "Long-term Strategic Initiatives"
)

// longTermInitiatives is the fixed long-term catalog.
var longTermInitiatives = []string{
	"Implement A/B testing framework for feature optimization",
	"Develop customer lifetime value (CLV) prediction model",
	"Create personalized onboarding experience based on user segments",
	"Establish real-time monitoring dashboard for key metrics",
	"Launch referral program to increase user acquisition",
}

// Category groups recommendations.
type Category struct {
	Category        string   `json:"category"`
	Recommendations []string `json:"recommendations"`
}

// Recommendations builds the three recommendation categories from All().
func (g *Generator) Recommendations() []Category {
	return Recommend(g.All(), g.cfg.TopRecommendations)
}

// Recommend groups insight actions by impact, keeping list order and at most
// limit actions per impact level, then appends the long-term catalog.
func Recommend(all []Insight, limit int) []Category {
	return []Category{
		{Category: CategoryImmediate, Recommendations: actions(all, ImpactHigh, limit)},
		{Category: CategoryStrategic, Recommendations: actions(all, ImpactMedium, limit)},
		{Category: CategoryLongTerm, Recommendations: append([]string(nil), longTermInitiatives...)},
	}
}

func actions(all []Insight, impact Impact, limit int) []string {
	out := []string{}
	for _, in := range all {
		if len(out) >= limit {
			break
		}
		if in.Impact == impact {
			out = append(out, in.Action)
		}
	}
	return out
}
