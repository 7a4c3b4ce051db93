package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	apperrors "lesson-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestMessageParserExtractsPayment(t *testing.T) {
	parser := NewMessageParser()

	msg := Message{
		Channel:   100,
		MessageID: 42,
		Day:       "2024-03-15",
		Text:      "СЧЁТ2538 17:41 Перевод 2000р от ЕКАТЕРИНА А. Баланс: 12 345р",
	}

	payment, err := parser.Parse(msg)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if payment.PayerName != "Екатерина А." {
		t.Errorf("expected title-cased payer, got %q", payment.PayerName)
	}
	if payment.Day != "2024-03-15" {
		t.Errorf("expected day 2024-03-15, got %s", payment.Day)
	}
	if payment.TimeOfDay != "17:41:00" {
		t.Errorf("expected time 17:41:00, got %s", payment.TimeOfDay)
	}
	if !payment.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected amount 2000, got %s", payment.Amount.String())
	}
	if payment.SourceID.String != "tg_100_42" {
		t.Errorf("expected source id tg_100_42, got %s", payment.SourceID.String)
	}
	if payment.Currency != models.DefaultCurrency {
		t.Errorf("expected currency %s, got %s", models.DefaultCurrency, payment.Currency)
	}
}

func TestMessageParserHandlesSpacedAmounts(t *testing.T) {
	parser := NewMessageParser()

	payment, err := parser.Parse(Message{
		Channel: 1, MessageID: 1, Day: "2024-03-15",
		Text: "СЧЁТ2538 9:05 Перевод 10 500р от МАРИЯ",
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !payment.Amount.Equal(decimal.NewFromInt(10500)) {
		t.Errorf("expected amount 10500, got %s", payment.Amount.String())
	}
	if payment.TimeOfDay != "09:05:00" {
		t.Errorf("expected zero-padded time, got %s", payment.TimeOfDay)
	}
	if payment.PayerName != "Мария" {
		t.Errorf("expected Мария, got %q", payment.PayerName)
	}
}

func TestMessageParserRejectsNoise(t *testing.T) {
	parser := NewMessageParser()

	tests := []struct {
		name string
		text string
	}{
		{"chatter", "привет, занятие завтра в 17:00?"},
		{"service notice", "СЧЁТ2538 Недостаточно средств"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(Message{Channel: 1, MessageID: 1, Day: "2024-03-15", Text: tt.text})
			if !apperrors.HasCode(err, apperrors.CodeUnparsableMessage) {
				t.Errorf("expected unparsable-message error, got %v", err)
			}
		})
	}
}

func TestMessageParserRejectsBadDay(t *testing.T) {
	parser := NewMessageParser()

	_, err := parser.Parse(Message{
		Channel: 1, MessageID: 1, Day: "not-a-day",
		Text: "СЧЁТ2538 17:41 Перевод 2000р от МАРИЯ",
	})
	if !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Errorf("expected invalid-date error, got %v", err)
	}
}

func TestMessageImporterDeduplicates(t *testing.T) {
	s := openTestStore(t)
	imp := NewMessageImporter(s, nil)

	messages := []Message{
		{Channel: 100, MessageID: 1, Day: "2024-03-15", Text: "СЧЁТ2538 17:41 Перевод 2000р от МАРИЯ"},
		{Channel: 100, MessageID: 1, Day: "2024-03-15", Text: "СЧЁТ2538 17:41 Перевод 2000р от МАРИЯ"},
		{Channel: 100, MessageID: 2, Day: "2024-03-15", Text: "СЧЁТ2538 18:00 Перевод 6 600р от ЕКАТЕРИНА А."},
		{Channel: 100, MessageID: 3, Day: "2024-03-15", Text: "не платёж, просто сообщение"},
	}

	stats, collector, err := imp.Import(messages)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if stats.Created != 2 {
		t.Errorf("expected 2 created, got %d", stats.Created)
	}
	if stats.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	if !collector.HasErrors() || len(collector.GetErrors()) != 1 {
		t.Errorf("expected 1 collected error, got %d", len(collector.GetErrors()))
	}

	// Re-running the whole batch is a no-op
	stats, _, err = imp.Import(messages)
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if stats.Created != 0 || stats.Duplicates != 3 {
		t.Errorf("expected rerun to dedupe everything, got created=%d duplicates=%d",
			stats.Created, stats.Duplicates)
	}
}

func TestMessageImporterAppliesWhitelist(t *testing.T) {
	s := openTestStore(t)

	path := writeTestFile(t, "whitelist.csv",
		"nome_pagante,studente\nМария,1\nЕкатерина А.,1\nАрендодатель,0\n")
	whitelist, err := LoadWhitelist(path, nil)
	if err != nil {
		t.Fatalf("LoadWhitelist failed: %v", err)
	}
	if whitelist.Size() != 2 {
		t.Fatalf("expected 2 whitelisted payers, got %d", whitelist.Size())
	}

	imp := NewMessageImporter(s, whitelist)
	stats, _, err := imp.Import([]Message{
		{Channel: 1, MessageID: 1, Day: "2024-03-15", Text: "СЧЁТ2538 17:41 Перевод 2000р от МАРИЯ"},
		{Channel: 1, MessageID: 2, Day: "2024-03-15", Text: "СЧЁТ2538 17:42 Перевод 30 000р от АРЕНДОДАТЕЛЬ"},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if stats.Created != 1 {
		t.Errorf("expected 1 created, got %d", stats.Created)
	}
	if stats.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", stats.Skipped)
	}
}

func TestWhitelistMatchesInsensitively(t *testing.T) {
	path := writeTestFile(t, "whitelist.csv", "nome_pagante\nМария Петрова\n")
	whitelist, err := LoadWhitelist(path, nil)
	if err != nil {
		t.Fatalf("LoadWhitelist failed: %v", err)
	}

	if !whitelist.Allows("МАРИЯ ПЕТРОВА") {
		t.Error("expected case-insensitive match")
	}
	if !whitelist.Allows("  Мария   Петрова ") {
		t.Error("expected whitespace-insensitive match")
	}
	if whitelist.Allows("Анна") {
		t.Error("expected unknown payer rejected")
	}
}

func TestWhitelistMissingColumn(t *testing.T) {
	path := writeTestFile(t, "whitelist.csv", "name\nМария\n")
	if _, err := LoadWhitelist(path, nil); !apperrors.HasCode(err, apperrors.CodeMissingColumn) {
		t.Errorf("expected missing-column error, got %v", err)
	}
}

func TestLessonImporterSyncsSchedule(t *testing.T) {
	s := openTestStore(t)
	imp := NewLessonImporter(s, nil, decimal.NewFromInt(2000))

	path := writeTestFile(t, "schedule.csv",
		"event_id,student,date,time,cost\n"+
			"ev_1,Sofia,2024-03-15,16:00,\n"+
			"ev_2,Daria,2024-03-16,17:00,2500\n"+
			"ev_3,prova Anna,2024-03-17,18:00,\n")

	stats, collector, err := imp.ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if collector.HasErrors() {
		t.Fatalf("unexpected errors: %v", collector.GetErrors())
	}
	if stats.Created != 3 || stats.Updated != 0 {
		t.Errorf("expected 3 created, got created=%d updated=%d", stats.Created, stats.Updated)
	}

	sofia, err := s.Lessons.GetBySourceID("ev_1")
	if err != nil {
		t.Fatalf("GetBySourceID failed: %v", err)
	}
	if !sofia.Cost.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected default cost 2000, got %s", sofia.Cost.String())
	}
	if sofia.TimeOfDay != "16:00:00" {
		t.Errorf("expected normalized time, got %s", sofia.TimeOfDay)
	}

	daria, _ := s.Lessons.GetBySourceID("ev_2")
	if !daria.Cost.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("expected explicit cost 2500, got %s", daria.Cost.String())
	}

	trial, _ := s.Lessons.GetBySourceID("ev_3")
	if !trial.Free {
		t.Error("expected trial lesson flagged free")
	}
	if trial.StudentName != "Anna" {
		t.Errorf("expected trial prefix stripped, got %q", trial.StudentName)
	}
}

func TestLessonImporterRerunUpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	imp := NewLessonImporter(s, nil, decimal.NewFromInt(2000))

	first := writeTestFile(t, "first.csv",
		"event_id,student,date,time\nev_1,Sofia,2024-03-15,16:00\n")
	if _, _, err := imp.ImportFile(first); err != nil {
		t.Fatalf("first ImportFile failed: %v", err)
	}

	lesson, _ := s.Lessons.GetBySourceID("ev_1")
	if err := s.Lessons.SetCost(lesson.ID, decimal.NewFromInt(3000)); err != nil {
		t.Fatalf("SetCost failed: %v", err)
	}

	// The lesson moved a day later in the calendar
	second := writeTestFile(t, "second.csv",
		"event_id,student,date,time\nev_1,Sofia,2024-03-16,17:00\n")
	stats, _, err := imp.ImportFile(second)
	if err != nil {
		t.Fatalf("second ImportFile failed: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 1 {
		t.Errorf("expected 1 updated, got created=%d updated=%d", stats.Created, stats.Updated)
	}

	got, _ := s.Lessons.GetBySourceID("ev_1")
	if got.ID != lesson.ID {
		t.Errorf("expected same lesson row, got ids %d and %d", lesson.ID, got.ID)
	}
	if got.Day != "2024-03-16" {
		t.Errorf("expected rescheduled day, got %s", got.Day)
	}
	if !got.Cost.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("expected operator cost preserved, got %s", got.Cost.String())
	}
}

func TestLessonImporterCollectsBadRows(t *testing.T) {
	s := openTestStore(t)
	imp := NewLessonImporter(s, nil, decimal.NewFromInt(2000))

	path := writeTestFile(t, "schedule.csv",
		"event_id,student,date,time\n"+
			"ev_1,Sofia,2024-03-15,16:00\n"+
			",Daria,2024-03-16,17:00\n"+
			"ev_3,Anna,not-a-date,18:00\n")

	stats, collector, err := imp.ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if stats.Created != 1 {
		t.Errorf("expected 1 created, got %d", stats.Created)
	}
	if stats.Failed != 2 {
		t.Errorf("expected 2 failed, got %d", stats.Failed)
	}
	if len(collector.GetErrors()) != 2 {
		t.Errorf("expected 2 collected errors, got %d", len(collector.GetErrors()))
	}
}

func TestLessonImporterMissingColumns(t *testing.T) {
	s := openTestStore(t)
	imp := NewLessonImporter(s, nil, decimal.NewFromInt(2000))

	path := writeTestFile(t, "schedule.csv", "student,date\nSofia,2024-03-15\n")
	if _, _, err := imp.ImportFile(path); !apperrors.HasCode(err, apperrors.CodeMissingColumn) {
		t.Errorf("expected missing-column error, got %v", err)
	}
}

func TestOpenCSVMissingFile(t *testing.T) {
	if _, err := openCSV("/nonexistent/file.csv", nil, nil); !apperrors.HasCode(err, apperrors.CodeSourceUnreadable) {
		t.Errorf("expected source-unreadable error, got %v", err)
	}
}
