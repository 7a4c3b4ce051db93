package ingest

import (
	"io"
	"strings"

	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// trialPrefix marks calendar events that are trial lessons; they are
// ingested with the free flag set and stay out of reconciliation.
const trialPrefix = "prova"

// Calendar column names in the exported schedule file.
const (
	columnEventID = "event_id"
	columnStudent = "student"
	columnDay     = "date"
	columnTime    = "time"
	columnCost    = "cost"
)

// LessonImporter syncs a calendar export into the lesson table.
type LessonImporter struct {
	store       *store.Store
	config      *CSVConfig
	defaultCost decimal.Decimal
	logger      logger.Logger
}

// NewLessonImporter creates an importer. Lessons without an explicit
// cost column get defaultCost.
func NewLessonImporter(s *store.Store, config *CSVConfig, defaultCost decimal.Decimal) *LessonImporter {
	if config == nil {
		config = DefaultCSVConfig()
	}

	return &LessonImporter{
		store:       s,
		config:      config,
		defaultCost: defaultCost,
		logger:      logger.WithComponent("lesson_importer"),
	}
}

// ImportFile syncs one schedule export. Re-running the same file is
// safe: known event ids refresh student/day/time and leave
// operator-set cost and free flags alone.
func (imp *LessonImporter) ImportFile(path string) (*Stats, *apperrors.IngestErrorCollector, error) {
	source, err := openCSV(path, imp.config, []string{columnEventID, columnStudent, columnDay, columnTime})
	if err != nil {
		return nil, nil, err
	}
	defer source.Close()

	stats := &Stats{}
	collector := apperrors.NewIngestErrorCollector(1000)

	for {
		record, err := source.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return stats, collector, apperrors.SourceError(path, err)
		}
		stats.Processed++

		lesson, err := imp.parseRecord(source, record)
		if err != nil {
			stats.Failed++
			collector.Add(apperrors.NewIngestError(
				apperrors.CodeUnparsableMessage,
				&apperrors.MessageContext{MessageID: int64(source.line), Snippet: strings.Join(record, ",")},
				"schedule row rejected",
				err,
			))
			continue
		}

		created, err := imp.upsert(lesson)
		if err != nil {
			return stats, collector, err
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	imp.logger.WithFields(logger.Fields{
		"source":  path,
		"created": stats.Created,
		"updated": stats.Updated,
		"failed":  stats.Failed,
	}).Info("Lesson import finished")

	return stats, collector, nil
}

func (imp *LessonImporter) parseRecord(source *csvSource, record []string) (*models.Lesson, error) {
	eventID := source.field(record, columnEventID)
	if eventID == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, columnEventID, "", nil)
	}

	student := source.field(record, columnStudent)
	if student == "" {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, columnStudent, "", nil)
	}

	day, err := models.ParseDay(source.field(record, columnDay))
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidDate, columnDay, source.field(record, columnDay), err)
	}

	timeOfDay := source.field(record, columnTime)
	if len(timeOfDay) == 5 {
		timeOfDay += ":00"
	}

	cost := imp.defaultCost
	if raw := source.field(record, columnCost); raw != "" {
		cost, err = models.ParseDecimalFromString(raw)
		if err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeInvalidAmount, columnCost, raw, err)
		}
	}

	lesson := models.NewLesson(student, day, timeOfDay, cost)
	lesson.SourceID = models.NullString(eventID)

	if strings.HasPrefix(strings.ToLower(student), trialPrefix) {
		lesson.Free = true
		lesson.StudentName = strings.TrimSpace(student[len(trialPrefix):])
		if lesson.StudentName == "" {
			lesson.StudentName = student
		}
	}

	return lesson, nil
}

// upsert writes the lesson, reporting whether the event id was new.
// Cost and free flag only apply on first sight; afterwards they belong
// to the operator.
func (imp *LessonImporter) upsert(lesson *models.Lesson) (bool, error) {
	_, err := imp.store.Lessons.GetBySourceID(lesson.SourceID.String)
	switch {
	case err == nil:
		return false, imp.store.Lessons.UpsertBySourceID(lesson)
	case apperrors.IsNotFound(err):
		return true, imp.store.Lessons.UpsertBySourceID(lesson)
	default:
		return false, err
	}
}
