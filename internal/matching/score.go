package matching

import (
	"sort"
	"strings"
)

// Policy selects how two names are compared.
type Policy int

const (
	// Strict treats equal names, or one name contained in the other, as the
	// same product. Scores are 0 or 1.
	Strict Policy = iota
	// Ranked grades similarity in [0,1] for did-you-mean suggestions.
	Ranked
	// NumericAware asks which stock item an extracted name refers to. It
	// rewards shared dosage numbers and is not symmetric: the second argument
	// is the stock name.
	NumericAware
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Ranked:
		return "ranked"
	case NumericAware:
		return "numeric-aware"
	}
	return "unknown"
}

// Weights holds every constant the policies use.
type Weights struct {
	RankedContainment float64
	RankedThreshold   float64

	NumericExact        float64
	NumericContains     float64
	NumericSharedToken  float64
	NumericSharedNumber float64
	NumericThreshold    float64
}

var DefaultWeights = Weights{
	RankedContainment: 0.8,
	RankedThreshold:   0.55,

	NumericExact:        20,
	NumericContains:     10,
	NumericSharedToken:  3,
	NumericSharedNumber: 5,
	NumericThreshold:    5,
}

// Scorer scores pairs of medication names under a Policy.
type Scorer struct {
	w Weights
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

var defaultScorer = NewScorer(DefaultWeights)

// Default returns the scorer configured with DefaultWeights.
func Default() *Scorer { return defaultScorer }

// Score compares a and b with the default weights.
func Score(a, b string, p Policy) float64 {
	return defaultScorer.Score(a, b, p)
}

// IsDuplicate reports whether a and b name the same product under Strict.
func IsDuplicate(a, b string) bool {
	return defaultScorer.Accepts(Strict, defaultScorer.Score(a, b, Strict))
}

// Match is an accepted candidate and its score.
type Match struct {
	Index int
	Score float64
}

type analyzed struct {
	norm     string
	key      string
	keywords []string
	numbers  []string
}

func analyze(text string) analyzed {
	norm := Normalize(text)
	tokens := Tokenize(norm)
	if len(tokens) == 0 {
		return analyzed{norm: norm}
	}
	return analyzed{
		norm:     norm,
		key:      strings.Join(tokens, " "),
		keywords: Keywords(text),
		numbers:  numbers(tokens),
	}
}

func (s *Scorer) Score(a, b string, p Policy) float64 {
	return s.score(analyze(a), analyze(b), p)
}

// Threshold is the minimum score a policy accepts as a match.
func (s *Scorer) Threshold(p Policy) float64 {
	switch p {
	case Ranked:
		return s.w.RankedThreshold
	case NumericAware:
		return s.w.NumericThreshold
	}
	return 1
}

func (s *Scorer) Accepts(p Policy, score float64) bool {
	return score > 0 && score >= s.Threshold(p)
}

func (s *Scorer) score(a, b analyzed, p Policy) float64 {
	if a.key == "" || b.key == "" {
		// Names made only of symbols still match themselves.
		if a.norm != "" && a.norm == b.norm {
			return 1
		}
		return 0
	}
	switch p {
	case Strict:
		if a.key == b.key || strings.Contains(a.key, b.key) || strings.Contains(b.key, a.key) {
			return 1
		}
		return 0
	case Ranked:
		if a.key == b.key {
			return 1
		}
		if strings.Contains(a.key, b.key) || strings.Contains(b.key, a.key) {
			return s.w.RankedContainment
		}
		return jaccard(a.keywords, b.keywords)
	case NumericAware:
		var total float64
		if a.key == b.key {
			total += s.w.NumericExact
		} else if strings.Contains(b.key, a.key) {
			total += s.w.NumericContains
		}
		total += float64(sharedCount(a.keywords, b.keywords)) * s.w.NumericSharedToken
		total += float64(sharedCount(a.numbers, b.numbers)) * s.w.NumericSharedNumber
		return total
	}
	return 0
}

// Rank scores every candidate against query and returns the accepted ones by
// descending score, keeping input order among ties. limit <= 0 means no cap.
func (s *Scorer) Rank(query string, candidates []string, p Policy, limit int) []Match {
	q := analyze(query)
	if q.norm == "" {
		return nil
	}
	var matches []Match
	for i, c := range candidates {
		score := s.score(q, analyze(c), p)
		if s.Accepts(p, score) {
			matches = append(matches, Match{Index: i, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Best returns the highest scoring accepted candidate; the earliest wins ties.
func (s *Scorer) Best(query string, candidates []string, p Policy) (Match, bool) {
	q := analyze(query)
	if q.norm == "" {
		return Match{}, false
	}
	best := Match{Index: -1}
	for i, c := range candidates {
		score := s.score(q, analyze(c), p)
		if s.Accepts(p, score) && score > best.Score {
			best = Match{Index: i, Score: score}
		}
	}
	return best, best.Index >= 0
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for _, t := range a {
		union[t] = struct{}{}
	}
	inter := sharedCount(a, b)
	for _, t := range b {
		union[t] = struct{}{}
	}
	return float64(inter) / float64(len(union))
}

// sharedCount counts the distinct entries of a that also appear in b.
func sharedCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	n := 0
	for _, t := range a {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}
