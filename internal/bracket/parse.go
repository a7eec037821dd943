// Package bracket finds groups of markets that partition one continuous
// quantity (revenue brackets, percentage bands, numeric ranges) and builds
// combined strategies across them.
package bracket

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
)

type boundKind int

const (
	kindRange boundKind = iota
	kindBelow
	kindAbove
)

type unit int

const (
	unitBillions unit = iota
	unitPercent
	unitPlain
)

type boundPattern struct {
	re   *regexp.Regexp
	kind boundKind
	unit unit
}

const (
	num = `(\d+(?:\.\d+)?)`
	sep = `\s*(?:-|–|to)\s*`
	bil = `\s*b(?:illion)?`
)

// Ranges come before open-ended bounds and units before plain numbers so
// that "$100-200b" is not read as "Under 100".
var boundPatterns = []boundPattern{
	{regexp.MustCompile(`(?i)\$?` + num + `\s*b?` + sep + `\$?` + num + bil), kindRange, unitBillions},

	{regexp.MustCompile(`(?i)[<≤](?:\s*than)?\s*\$?` + num + bil), kindBelow, unitBillions},
	{regexp.MustCompile(`(?i)less\s+than\s+\$?` + num + bil), kindBelow, unitBillions},
	{regexp.MustCompile(`(?i)under\s+\$?` + num + bil), kindBelow, unitBillions},

	{regexp.MustCompile(`(?i)[>≥](?:\s*than)?\s*\$?` + num + bil), kindAbove, unitBillions},
	{regexp.MustCompile(`(?i)more\s+than\s+\$?` + num + bil), kindAbove, unitBillions},
	{regexp.MustCompile(`(?i)over\s+\$?` + num + bil), kindAbove, unitBillions},

	{regexp.MustCompile(num + sep + num + `\s*%`), kindRange, unitPercent},
	{regexp.MustCompile(`[<≤]\s*` + num + `\s*%`), kindBelow, unitPercent},
	{regexp.MustCompile(`[>≥]\s*` + num + `\s*%`), kindAbove, unitPercent},

	{regexp.MustCompile(`(?i)` + num + sep + num), kindRange, unitPlain},
	{regexp.MustCompile(`(?i)under\s+` + num), kindBelow, unitPlain},
	{regexp.MustCompile(`(?i)over\s+` + num), kindAbove, unitPlain},
}

var topicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.*?)\s*(?:in\s+\d{4}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4})`),
	regexp.MustCompile(`(?i)^(.*?)\s*(?:<|>|≤|≥|\d+(?:-|–|to))`),
	regexp.MustCompile(`(?i)^(.*?)\s*under`),
	regexp.MustCompile(`(?i)^(.*?)\s*over`),
}

// minTopicLength rejects topic matches too short to identify a group.
const minTopicLength = 10

// ParseBounds extracts the numeric range a bracket question covers. A nil
// bound is unbounded on that side. ok is false when no bracket is found.
func ParseBounds(question string) (lower, upper *float64, label string, ok bool) {
	for _, p := range boundPatterns {
		m := p.re.FindStringSubmatch(question)
		if m == nil {
			continue
		}
		a, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch p.kind {
		case kindRange:
			b, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			return &a, &b, rangeLabel(p.unit, a, b), true
		case kindBelow:
			return nil, &a, belowLabel(p.unit, a), true
		case kindAbove:
			return &a, nil, aboveLabel(p.unit, a), true
		}
	}
	return nil, nil, "", false
}

func rangeLabel(u unit, a, b float64) string {
	switch u {
	case unitBillions:
		return "$" + formatBound(a) + "-" + formatBound(b) + "b"
	case unitPercent:
		return formatBound(a) + "-" + formatBound(b) + "%"
	}
	return formatBound(a) + "-" + formatBound(b)
}

func belowLabel(u unit, v float64) string {
	switch u {
	case unitBillions:
		return "<$" + formatBound(v) + "b"
	case unitPercent:
		return "<" + formatBound(v) + "%"
	}
	return "Under " + formatBound(v)
}

func aboveLabel(u unit, v float64) string {
	switch u {
	case unitBillions:
		return ">$" + formatBound(v) + "b"
	case unitPercent:
		return ">" + formatBound(v) + "%"
	}
	return "Over " + formatBound(v)
}

// formatBound prints a bound with no more digits than it was parsed with.
func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExtractTopic returns the part of a bracket question shared by every market
// in its group, e.g. "US tariff revenue" for "US tariff revenue in 2025: <$100b?".
func ExtractTopic(question string) string {
	q := strings.TrimSuffix(strings.TrimSpace(question), "?")

	for _, re := range topicPatterns {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		topic := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(topic) > minTopicLength {
			return topic
		}
	}

	for _, p := range boundPatterns {
		q = p.re.ReplaceAllString(q, "")
	}
	return strings.TrimSpace(q)
}

// Group collects bracket markets by topic, keeping only topics with at least
// two brackets.
func Group(markets []*models.Market) map[string][]models.BracketMarket {
	byTopic := make(map[string][]models.BracketMarket)
	for _, m := range markets {
		lower, upper, label, ok := ParseBounds(m.Question)
		if !ok {
			continue
		}
		topic := ExtractTopic(m.Question)
		byTopic[topic] = append(byTopic[topic], models.BracketMarket{
			Market:     m,
			Label:      label,
			LowerBound: lower,
			UpperBound: upper,
		})
	}

	groups := make(map[string][]models.BracketMarket)
	for topic, brackets := range byTopic {
		if len(brackets) >= 2 {
			groups[topic] = brackets
		}
	}
	logger.Debug("Found %d bracket groups across %d markets", len(groups), len(markets))
	return groups
}

// Topics returns the group keys in a stable order.
func Topics(groups map[string][]models.BracketMarket) []string {
	topics := make([]string, 0, len(groups))
	for t := range groups {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}
