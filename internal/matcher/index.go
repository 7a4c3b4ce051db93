package matcher

import (
	"sort"

	"lesson-reconciliation-service/internal/names"
)

// Roster indexes the known student names for fast candidate lookups.
// Scoring every payer against the full roster is fine for small rosters,
// but exact canonical and primary-token hits short-circuit the scan.
type Roster struct {
	// students holds the distinct names in insertion order
	students []string

	// byCanonical maps canonical forms to original names
	byCanonical map[string][]string

	// byPrimaryToken maps primary tokens to original names
	byPrimaryToken map[string][]string
}

// NewRoster builds a roster index from student names, dropping duplicates
// and names that canonicalize to nothing.
func NewRoster(studentNames []string) *Roster {
	r := &Roster{
		byCanonical:    make(map[string][]string),
		byPrimaryToken: make(map[string][]string),
	}

	seen := make(map[string]bool)
	for _, name := range studentNames {
		canonical := names.Canonical(name)
		if canonical == "" || seen[name] {
			continue
		}
		seen[name] = true

		r.students = append(r.students, name)
		r.byCanonical[canonical] = append(r.byCanonical[canonical], name)

		if token := names.PrimaryToken(name); token != "" {
			r.byPrimaryToken[token] = append(r.byPrimaryToken[token], name)
		}
	}

	return r
}

// Names returns the indexed student names.
func (r *Roster) Names() []string {
	return r.students
}

// Size returns the number of indexed students.
func (r *Roster) Size() int {
	return len(r.students)
}

// ExactMatches returns students whose canonical form equals the payer's.
func (r *Roster) ExactMatches(payerName string) []string {
	return r.byCanonical[names.Canonical(payerName)]
}

// TokenMatches returns students sharing the payer's primary token,
// sorted for deterministic output.
func (r *Roster) TokenMatches(payerName string) []string {
	token := names.PrimaryToken(payerName)
	if token == "" {
		return nil
	}

	matches := append([]string(nil), r.byPrimaryToken[token]...)
	sort.Strings(matches)
	return matches
}

// RankAgainstRoster ranks roster students for a payer name. Exact
// canonical hits bypass scoring entirely.
func (e *Engine) RankAgainstRoster(payerName string, roster *Roster) []Candidate {
	if exact := roster.ExactMatches(payerName); len(exact) > 0 {
		candidates := make([]Candidate, 0, len(exact))
		for _, name := range exact {
			candidates = append(candidates, Candidate{
				Name:  name,
				Score: 100,
				Type:  MatchExact,
			})
		}
		return candidates
	}

	return e.RankCandidates(payerName, roster.Names())
}
