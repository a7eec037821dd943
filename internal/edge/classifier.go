package edge

import "strings"

// Classifier detects market categories that need stricter handling.
// The keyword implementation can be swapped for a real classifier without
// changing detector control flow.
type Classifier interface {
	IsSports(question string) bool
	IsSuperBowl(question string) bool
	IsChampionship(question string) bool
}

// sportsKeywords are matched as lowercase substrings of the question.
var sportsKeywords = []string{
	// Major championships
	"super bowl", "world series", "world cup", "stanley cup", "nba finals",
	"championship", "champion", "playoffs", "win the",
	// Leagues
	"nfl", "nba", "mlb", "nhl", "mls", "premier league", "la liga",
	// Actions
	"mvp", "player prop", "score", "touchdown", "home run", "goal",
	// Matchups
	"vs", "versus", "beat", "defeat",
	// NFL teams
	"49ers", "bears", "bengals", "bills", "broncos", "browns", "buccaneers",
	"cardinals", "chargers", "chiefs", "colts", "commanders", "cowboys",
	"dolphins", "eagles", "falcons", "giants", "jaguars", "jets", "lions",
	"packers", "panthers", "patriots", "raiders", "rams", "ravens", "saints",
	"seahawks", "steelers", "texans", "titans", "vikings",
}

// KeywordClassifier matches questions against a keyword list.
type KeywordClassifier struct {
	Keywords []string
}

// NewKeywordClassifier returns a classifier using the built-in sports keywords.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{Keywords: sportsKeywords}
}

// IsSports reports whether any keyword occurs in the question.
func (c *KeywordClassifier) IsSports(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range c.Keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// IsSuperBowl reports whether the question is about the Super Bowl.
func (c *KeywordClassifier) IsSuperBowl(question string) bool {
	return strings.Contains(strings.ToLower(question), "super bowl")
}

// IsChampionship reports whether the question mentions a championship.
func (c *KeywordClassifier) IsChampionship(question string) bool {
	return strings.Contains(strings.ToLower(question), "championship")
}
