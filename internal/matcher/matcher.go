package matcher

import (
	"math"
	"sort"

	"lesson-reconciliation-service/internal/names"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/agnivade/levenshtein"
)

// Engine scores payer names against student names.
type Engine struct {
	Config *Config

	logger logger.Logger
}

// Candidate is a scored student name produced by RankCandidates.
type Candidate struct {
	Name  string    `json:"name"`
	Score int       `json:"score"`
	Type  MatchType `json:"type"`
}

// NewEngine creates a matching engine with the given configuration.
// A nil config falls back to DefaultConfig.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	return &Engine{
		Config: config,
		logger: logger.WithComponent("matcher"),
	}
}

// Similarity scores two names 0..100 as the maximum of the enabled
// ratios, computed on canonical forms. Returns 0 when either name
// canonicalizes to nothing.
func (e *Engine) Similarity(a, b string) int {
	ca, cb := names.Canonical(a), names.Canonical(b)
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 100
	}

	score := ratio(ca, cb)

	if e.Config.EnablePartialRatio {
		if partial := partialRatio(ca, cb); partial > score {
			score = partial
		}
	}

	if e.Config.EnableTokenSortRatio {
		if tokenSort := tokenSortRatio(a, b); tokenSort > score {
			score = tokenSort
		}
	}

	return score
}

// Classify maps a score to its confidence classification.
func (e *Engine) Classify(score int) MatchType {
	switch {
	case score >= 100:
		return MatchExact
	case score >= e.Config.HighConfidenceThreshold:
		return MatchHighConfidence
	case score >= e.Config.LowConfidenceThreshold:
		return MatchLowConfidence
	default:
		return MatchNone
	}
}

// RankCandidates scores the payer name against every student and returns
// candidates at or above the low-confidence threshold, best first.
// Equal scores keep their input order.
func (e *Engine) RankCandidates(payerName string, studentNames []string) []Candidate {
	candidates := make([]Candidate, 0, len(studentNames))

	for _, student := range studentNames {
		score := e.Similarity(payerName, student)
		matchType := e.Classify(score)
		if matchType == MatchNone {
			continue
		}
		candidates = append(candidates, Candidate{
			Name:  student,
			Score: score,
			Type:  matchType,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > e.Config.MaxCandidates {
		candidates = candidates[:e.Config.MaxCandidates]
	}

	return candidates
}

// BestMatch returns the top candidate when it is unambiguous. A match is
// ambiguous when a second candidate reaches the high-confidence
// threshold with the same score; those cases need manual review.
func (e *Engine) BestMatch(payerName string, studentNames []string) (*Candidate, bool) {
	candidates := e.RankCandidates(payerName, studentNames)
	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	if len(candidates) > 1 &&
		candidates[1].Score == best.Score &&
		best.Type != MatchLowConfidence {
		e.logger.WithFields(logger.Fields{
			"payer":  payerName,
			"first":  best.Name,
			"second": candidates[1].Name,
			"score":  best.Score,
		}).Warn("Ambiguous best match, deferring to review")
		return nil, true
	}

	return &best, false
}

// ratio is the plain edit-distance ratio of two canonical strings.
func ratio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return int(math.Round((1 - float64(distance)/float64(longer)) * 100))
}

// partialRatio slides the shorter string over the longer one and keeps
// the best windowed ratio. "daria" inside "daria m." scores 100.
func partialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	shorter, longer := ra, rb
	if len(rb) < len(ra) {
		shorter, longer = rb, ra
	}

	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return ratio(string(shorter), string(longer))
	}

	best := 0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		window := string(longer[start : start+len(shorter)])
		if score := ratio(string(shorter), window); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// tokenSortRatio compares names with their tokens sorted, so word order
// does not matter ("Петрова Мария" vs "Мария Петрова").
func tokenSortRatio(a, b string) int {
	ta, tb := names.Tokens(a), names.Tokens(b)
	sort.Strings(ta)
	sort.Strings(tb)

	return ratio(joinTokens(ta), joinTokens(tb))
}

func joinTokens(tokens []string) string {
	joined := ""
	for i, t := range tokens {
		if i > 0 {
			joined += " "
		}
		joined += t
	}
	return joined
}
