package reconciler

import (
	"path/filepath"
	"testing"

	"lesson-reconciliation-service/internal/matcher"
	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	apperrors "lesson-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	service, err := NewService(s, nil)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, s
}

func addPayment(t *testing.T, s *store.Store, payer, day string, amount int64) *models.Payment {
	t.Helper()

	p := models.NewPayment(payer, day, "14:30:00", decimal.NewFromInt(amount))
	if err := s.Payments.Create(p); err != nil {
		t.Fatalf("failed to create payment: %v", err)
	}
	return p
}

func addLesson(t *testing.T, s *store.Store, student, day string, cost int64) *models.Lesson {
	t.Helper()

	l := models.NewLesson(student, day, "16:00:00", decimal.NewFromInt(cost))
	if err := s.Lessons.Create(l); err != nil {
		t.Fatalf("failed to create lesson: %v", err)
	}
	return l
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	_, s := newTestService(t)

	config := DefaultConfig()
	config.Matcher.HighConfidenceThreshold = 200
	if _, err := NewService(s, config); err == nil {
		t.Fatal("expected error for invalid matcher config")
	}
}

func TestServiceAllocationRoundTrip(t *testing.T) {
	service, s := newTestService(t)
	p := addPayment(t, s, "Мария", "2024-03-15", 4000)
	l := addLesson(t, s, "Sofia", "2024-03-15", 2000)

	if _, err := service.Allocate(p.ID, l.ID, decimal.NewFromInt(2000)); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	got, _ := s.Payments.GetByID(p.ID)
	if got.Status != models.StatusAssociated {
		t.Errorf("expected associated, got %s", got.Status)
	}

	if err := service.Deallocate(p.ID, l.ID); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}
	got, _ = s.Payments.GetByID(p.ID)
	if got.Status != models.StatusPending {
		t.Errorf("expected pending after deallocate, got %s", got.Status)
	}
}

func TestServiceIdentityLadder(t *testing.T) {
	service, s := newTestService(t)

	addLesson(t, s, "Sofia", "2024-03-15", 2000)
	addLesson(t, s, "Daria", "2024-03-15", 2000)

	// No association yet: fuzzy fallback resolves the transliterated name
	student, confident, err := service.ResolvePayer("СОФЬЯ")
	if err != nil {
		t.Fatalf("ResolvePayer failed: %v", err)
	}
	if student != "Sofia" || !confident {
		t.Errorf("expected confident Sofia, got %s (confident=%v)", student, confident)
	}

	// Unknown payer: no candidates, needs a human
	student, confident, err = service.ResolvePayer("Совершенно Неизвестный")
	if err != nil {
		t.Fatalf("ResolvePayer failed: %v", err)
	}
	if student != "" || confident {
		t.Errorf("expected unresolved payer, got %s (confident=%v)", student, confident)
	}

	// Cache entry takes precedence over fuzzy matching
	if _, err := service.UpsertIdentity("Daria", "Совершенно Неизвестный", "manual"); err != nil {
		t.Fatalf("UpsertIdentity failed: %v", err)
	}
	student, confident, err = service.ResolvePayer("Совершенно Неизвестный")
	if err != nil {
		t.Fatalf("ResolvePayer failed: %v", err)
	}
	if student != "Daria" || !confident {
		t.Errorf("expected cached Daria, got %s (confident=%v)", student, confident)
	}
}

func TestResolvePayerPropagatesStorageErrors(t *testing.T) {
	service, s := newTestService(t)

	// A broken store must surface as an error, not as a cache miss that
	// silently falls through to fuzzy matching.
	s.Close()

	if _, _, err := service.ResolvePayer("Мария Петрова"); err == nil {
		t.Fatal("expected error from closed store")
	} else if apperrors.IsNotFound(err) {
		t.Fatalf("expected storage error, got not-found: %v", err)
	}
}

func TestServiceIdentitySupersedes(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.UpsertIdentity("Sofia", "София Петрова", "manual"); err != nil {
		t.Fatalf("first UpsertIdentity failed: %v", err)
	}
	if _, err := service.UpsertIdentity("Sofia", "Мария Петрова", "parent switched accounts"); err != nil {
		t.Fatalf("second UpsertIdentity failed: %v", err)
	}

	assoc, err := service.LookupIdentity("Мария Петрова")
	if err != nil {
		t.Fatalf("LookupIdentity failed: %v", err)
	}
	if assoc.StudentName != "Sofia" {
		t.Errorf("expected Sofia, got %s", assoc.StudentName)
	}

	if _, err := service.LookupIdentity("Никто"); !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found for unknown payer, got %v", err)
	}

	if err := service.DeleteIdentity("Sofia"); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
}

func TestServiceFuzzyCandidates(t *testing.T) {
	service, s := newTestService(t)

	addLesson(t, s, "Sofia", "2024-03-15", 2000)
	addLesson(t, s, "Ekaterina", "2024-03-15", 2000)

	candidates, err := service.FuzzyCandidates("Екатерина А.")
	if err != nil {
		t.Fatalf("FuzzyCandidates failed: %v", err)
	}
	if len(candidates) == 0 || candidates[0].Name != "Ekaterina" {
		t.Fatalf("expected Ekaterina first, got %v", candidates)
	}
	if candidates[0].Type != matcher.MatchExact && candidates[0].Type != matcher.MatchHighConfidence {
		t.Errorf("expected confident match, got %s", candidates[0].Type)
	}
}

func TestServiceSuggestionFlow(t *testing.T) {
	service, s := newTestService(t)

	p := addPayment(t, s, "Мария Петрова", "2024-03-15", 2000)
	l := addLesson(t, s, "Sofia", "2024-03-16", 2000)

	if _, err := service.UpsertIdentity("Sofia", "Мария Петрова", "manual"); err != nil {
		t.Fatalf("UpsertIdentity failed: %v", err)
	}

	suggestions, err := service.GenerateSuggestions()
	if err != nil {
		t.Fatalf("GenerateSuggestions failed: %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(suggestions))
	}

	sug := suggestions[0]
	if sug.LessonID != l.ID || sug.PaymentID != p.ID {
		t.Fatalf("unexpected pair: lesson %d, payment %d", sug.LessonID, sug.PaymentID)
	}
	if _, err := service.AcceptSuggestion(sug.LessonID, sug.PaymentID, sug.Quota); err != nil {
		t.Fatalf("AcceptSuggestion failed: %v", err)
	}

	got, _ := s.Payments.GetByID(p.ID)
	if got.Status != models.StatusUsed {
		t.Errorf("expected used after accept, got %s", got.Status)
	}

	// A second payment for the same student can be rejected and revived
	p2 := addPayment(t, s, "Мария Петрова", "2024-03-16", 2000)
	l2 := addLesson(t, s, "Sofia", "2024-03-17", 2000)

	if err := service.RejectSuggestion(l2.ID, p2.ID); err != nil {
		t.Fatalf("RejectSuggestion failed: %v", err)
	}
	suggestions, _ = service.GenerateSuggestions()
	if len(suggestions) != 0 {
		t.Errorf("expected rejected pair suppressed, got %d", len(suggestions))
	}

	if err := service.UnrejectSuggestion(l2.ID, p2.ID); err != nil {
		t.Fatalf("UnrejectSuggestion failed: %v", err)
	}
	suggestions, _ = service.GenerateSuggestions()
	if len(suggestions) != 1 || suggestions[0].LessonID != l2.ID {
		t.Errorf("expected pair restored, got %v", suggestions)
	}
}

func TestServiceReviewQueue(t *testing.T) {
	service, s := newTestService(t)

	p1 := addPayment(t, s, "Мария", "2024-03-15", 2000)
	p2 := addPayment(t, s, "Анна", "2024-03-15", 2000)

	if err := service.MarkSkipped(p2.ID); err != nil {
		t.Fatalf("MarkSkipped failed: %v", err)
	}

	queue, err := service.ReviewQueue()
	if err != nil {
		t.Fatalf("ReviewQueue failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != p1.ID {
		t.Errorf("expected only payment %d in queue, got %v", p1.ID, queue)
	}

	if err := service.ReopenSkipped(p2.ID); err != nil {
		t.Fatalf("ReopenSkipped failed: %v", err)
	}
	queue, _ = service.ReviewQueue()
	if len(queue) != 2 {
		t.Errorf("expected 2 payments after reopen, got %d", len(queue))
	}
}

func TestServiceBuildReport(t *testing.T) {
	service, s := newTestService(t)

	p := addPayment(t, s, "Мария Петрова", "2024-03-15", 4000)
	l1 := addLesson(t, s, "Sofia", "2024-03-15", 2000)
	addLesson(t, s, "Daria", "2024-03-16", 2000)

	if _, err := service.UpsertIdentity("Sofia", "Мария Петрова", "manual"); err != nil {
		t.Fatalf("UpsertIdentity failed: %v", err)
	}
	if _, err := service.Allocate(p.ID, l1.ID, decimal.NewFromInt(2000)); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	report, err := service.BuildReport("2024-03-10", "2024-03-20")
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	if len(report.Payments) != 4 {
		t.Fatalf("expected 4 status breakdowns, got %d", len(report.Payments))
	}

	var associated *StatusBreakdown
	for _, b := range report.Payments {
		if b.Status == models.StatusAssociated {
			associated = b
		}
	}
	if associated == nil || associated.Count != 1 {
		t.Fatalf("expected one associated payment, got %+v", associated)
	}
	if !associated.Residual.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected residual 2000, got %s", associated.Residual.String())
	}
	if !report.OpenResidual.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected open residual 2000, got %s", report.OpenResidual.String())
	}

	if len(report.Unpaid) != 1 || report.Unpaid[0].StudentName != "Daria" {
		t.Errorf("expected Daria's lesson unpaid, got %v", report.Unpaid)
	}

	// Sofia's lesson is paid and Daria's payer is unknown, so the
	// suggestion queue stays empty.
	if len(report.Suggestions) != 0 {
		t.Errorf("expected no suggestions, got %d", len(report.Suggestions))
	}
}
