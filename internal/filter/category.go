package filter

import "strings"

type category struct {
	name     string
	keywords []string
}

// categories are checked in order; the first keyword hit wins.
var categories = []category{
	{"Politics", []string{"trump", "biden", "election", "president", "congress", "senate", "governor", "vote", "political", "democrat", "republican", "cabinet", "secretary"}},
	{"Crypto", []string{"bitcoin", "btc", "ethereum", "eth", "crypto", "token", "blockchain", "usdc", "usdt", "tether", "solana", "doge"}},
	{"Sports", []string{"nfl", "nba", "mlb", "super bowl", "championship", "world series", "playoffs", "mvp", "game", "match", "team"}},
	{"Economics", []string{"recession", "gdp", "inflation", "fed", "interest rate", "unemployment", "stock", "market", "s&p", "dow", "nasdaq"}},
	{"AI", []string{"ai", "gpt", "openai", "anthropic", "google ai", "gemini", "chatgpt", "llm", "model", "artificial intelligence"}},
	{"Tech", []string{"apple", "google", "microsoft", "nvidia", "meta", "amazon", "tesla", "ceo", "ipo", "acquisition"}},
}

// InferCategory guesses a market category from its question, or "" if none match.
func InferCategory(question string) string {
	q := strings.ToLower(question)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.name
			}
		}
	}
	return ""
}
