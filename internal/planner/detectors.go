package planner

import (
	"regexp"
	"strings"
)

// Cue detectors over the lowercased query text. Precedence when several
// match: comparison > aggregation > temporal > relationship > list.
var (
	comparisonRe   = regexp.MustCompile(`\b(compare|versus|vs\.?|difference between|differ|better than|worse than)\b`)
	aggregationRe  = regexp.MustCompile(`\b(total|sum|average|avg|count|how many|how much|maximum|minimum|max|min|median)\b`)
	temporalRe     = regexp.MustCompile(`\b(recent|latest|newest|last (week|month|year|quarter)|this (week|month|year|quarter)|since|before|after|trend|over time|history)\b`)
	relationshipRe = regexp.MustCompile(`\b(related to|connected to|linked to|depends on|references?|associated with|relationship)\b`)
	listRe         = regexp.MustCompile(`\b(list|show me|show all|find all|enumerate|what are the)\b`)
	questionRe     = regexp.MustCompile(`^(what|who|where|when|why|how|which|is|are|was|were|do|does|did|can|could|should|would)\b`)
	keywordRe      = regexp.MustCompile(`^[\w\s\-]+$`)

	quotedRe      = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)*\b`)

	comparisonSplitRe = regexp.MustCompile(`\b(?:and|versus|vs\.?|with|to|or)\b|,`)
)

// cues holds the detector outcomes for one query.
type cues struct {
	comparison   bool
	aggregation  bool
	temporal     bool
	relationship bool
	list         bool
}

func detectCues(query string) cues {
	q := strings.ToLower(query)
	return cues{
		comparison:   comparisonRe.MatchString(q),
		aggregation:  aggregationRe.MatchString(q),
		temporal:     temporalRe.MatchString(q),
		relationship: relationshipRe.MatchString(q),
		list:         listRe.MatchString(q),
	}
}

// ClassifyQueryType assigns the query type deterministically from the surface
// text. Comparison and aggregation cues win, then list cues, then question
// words; short queries without a question mark count as keyword lookups and
// everything else defaults to semantic.
func ClassifyQueryType(query string, maxKeywordWords int) QueryType {
	c := detectCues(query)
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	switch {
	case c.comparison:
		return TypeComparison
	case c.aggregation:
		return TypeAggregation
	case c.list:
		return TypeNavigation
	case questionRe.MatchString(lower):
		return TypeSemantic
	}

	words := strings.Fields(trimmed)
	if len(words) <= maxKeywordWords && !strings.Contains(trimmed, "?") && keywordRe.MatchString(trimmed) {
		return TypeKeyword
	}
	return TypeSemantic
}

// stopwords excluded from extracted specific terms.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"and": {}, "or": {}, "to": {}, "with": {}, "between": {}, "compare": {},
	"versus": {}, "vs": {}, "what": {}, "which": {}, "how": {}, "is": {},
	"are": {}, "show": {}, "me": {}, "all": {}, "list": {}, "find": {},
}

// extractSpecificTerms pulls quoted phrases and capitalized runs out of the
// query, preferring quotes. Used to name the sides of a comparison.
func extractSpecificTerms(query string) []string {
	var terms []string
	seen := map[string]struct{}{}

	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, stop := stopwords[strings.ToLower(t)]; stop {
			return
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		terms = append(terms, t)
	}

	for _, m := range quotedRe.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	if len(terms) > 0 {
		return terms
	}

	// Fall back to capitalized runs, skipping a leading sentence-case word.
	matches := capitalizedRe.FindAllStringIndex(query, -1)
	for _, idx := range matches {
		if idx[0] == 0 {
			continue
		}
		add(query[idx[0]:idx[1]])
	}
	return terms
}

// comparisonTerms splits the query around comparison connectives and returns
// the candidate sides, using specific terms when they exist.
func comparisonTerms(query string, max int) []string {
	terms := extractSpecificTerms(query)
	if len(terms) == 0 {
		stripped := comparisonRe.ReplaceAllString(strings.ToLower(query), "|")
		for _, part := range comparisonSplitRe.Split(stripped, -1) {
			for _, side := range strings.Split(part, "|") {
				side = strings.Trim(side, " ?.!,")
				if side == "" {
					continue
				}
				if _, stop := stopwords[side]; stop {
					continue
				}
				terms = append(terms, side)
			}
		}
	}
	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}
