package matcher

import (
	"testing"
)

func TestNewRoster(t *testing.T) {
	roster := NewRoster([]string{"Sofia", "Ekaterina", "Sofia", "  ", ""})

	if roster.Size() != 2 {
		t.Errorf("expected 2 distinct students, got %d", roster.Size())
	}

	names := roster.Names()
	if len(names) != 2 || names[0] != "Sofia" || names[1] != "Ekaterina" {
		t.Errorf("unexpected roster names: %v", names)
	}
}

func TestRosterExactMatches(t *testing.T) {
	roster := NewRoster([]string{"Ekaterina", "Sofia"})

	matches := roster.ExactMatches("Екатерина")
	if len(matches) != 1 || matches[0] != "Ekaterina" {
		t.Errorf("expected transliterated exact match, got %v", matches)
	}

	if matches := roster.ExactMatches("Наили"); len(matches) != 0 {
		t.Errorf("expected no exact matches, got %v", matches)
	}
}

func TestRosterTokenMatches(t *testing.T) {
	roster := NewRoster([]string{"Daria Ivanova", "Daria Petrova", "Sofia"})

	matches := roster.TokenMatches("Дарья М.")
	if len(matches) != 2 {
		t.Fatalf("expected 2 token matches, got %v", matches)
	}
	// Sorted for determinism
	if matches[0] != "Daria Ivanova" || matches[1] != "Daria Petrova" {
		t.Errorf("unexpected token matches: %v", matches)
	}

	if matches := roster.TokenMatches(""); matches != nil {
		t.Errorf("expected nil for empty payer, got %v", matches)
	}
}

func TestRankAgainstRoster(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	roster := NewRoster([]string{"Ekaterina", "Sofia", "Daria"})

	// Exact canonical hit short-circuits scoring
	candidates := engine.RankAgainstRoster("Екатерина", roster)
	if len(candidates) != 1 {
		t.Fatalf("expected single exact candidate, got %d", len(candidates))
	}
	if candidates[0].Name != "Ekaterina" || candidates[0].Score != 100 || candidates[0].Type != MatchExact {
		t.Errorf("unexpected exact candidate: %+v", candidates[0])
	}

	// No exact hit falls back to full ranking
	candidates = engine.RankAgainstRoster("Dariya", roster)
	if len(candidates) == 0 {
		t.Fatal("expected fuzzy candidates")
	}
	if candidates[0].Name != "Daria" {
		t.Errorf("expected Daria first, got %s", candidates[0].Name)
	}
}
