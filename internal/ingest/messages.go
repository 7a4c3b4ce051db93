package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"lesson-reconciliation-service/internal/models"
	"lesson-reconciliation-service/internal/store"
	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Message is one forwarded bank notification as it arrives from the
// chat channel. Channel and MessageID form the idempotency key; Day is
// the date the message was posted, since the notification text itself
// carries only a time of day.
type Message struct {
	Channel   int64  `json:"channel"`
	MessageID int64  `json:"message_id"`
	Day       string `json:"day"`
	Text      string `json:"text"`
}

// SourceID returns the payment idempotency key for the message.
func (m Message) SourceID() string {
	return fmt.Sprintf("tg_%d_%d", m.Channel, m.MessageID)
}

// LoadMessages reads a JSON export of forwarded chat messages.
func LoadMessages(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.SourceError(path, err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, apperrors.SourceError(path, err)
	}
	return messages, nil
}

// transferPattern matches the bank's transfer notification grammar:
// account token, time, "Перевод" keyword, amount with embedded spaces
// and a trailing "р", "от" and the sender name with an optional initial.
var transferPattern = regexp.MustCompile(
	`СЧЁТ\d+\s+(\d{1,2}):(\d{2})\s+Перевод.*?([\d\s]+)р\s+от\s+([А-Яа-яЁёA-Za-z]+(?:\s+[А-Яа-яЁёA-Za-z]\.?)?)`)

// MessageParser extracts payments from notification text.
type MessageParser struct {
	titler cases.Caser
	logger logger.Logger
}

// NewMessageParser creates a parser for bank notification messages.
func NewMessageParser() *MessageParser {
	return &MessageParser{
		titler: cases.Title(language.Russian),
		logger: logger.WithComponent("message_parser"),
	}
}

// Parse extracts a payment from one message. Messages that do not match
// the transfer grammar (service notices, chatter) return an
// unparsable-message error; the caller decides whether that is noise or
// worth reporting.
func (p *MessageParser) Parse(msg Message) (*models.Payment, error) {
	matches := transferPattern.FindStringSubmatch(msg.Text)
	if matches == nil {
		return nil, apperrors.UnparsableMessageError("no transfer pattern in text")
	}

	day, err := models.ParseDay(msg.Day)
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidDate, "day", msg.Day, err)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	if hour > 23 || minute > 59 {
		return nil, apperrors.UnparsableMessageError(
			fmt.Sprintf("implausible time %s:%s", matches[1], matches[2]))
	}

	amount, err := models.ParseDecimalFromString(matches[3])
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidAmount, "amount", matches[3], err)
	}

	payment := models.NewPayment(
		p.titleCase(matches[4]),
		day,
		fmt.Sprintf("%02d:%02d:00", hour, minute),
		amount,
	)
	payment.SourceID = models.NullString(msg.SourceID())

	if err := payment.Validate(); err != nil {
		return nil, err
	}

	return payment, nil
}

// titleCase normalizes sender casing; the bank shouts names in capitals.
func (p *MessageParser) titleCase(name string) string {
	return p.titler.String(strings.ToLower(strings.TrimSpace(name)))
}

// MessageImporter parses a message batch and persists the payments.
type MessageImporter struct {
	store     *store.Store
	parser    *MessageParser
	whitelist *Whitelist
	logger    logger.Logger
}

// NewMessageImporter creates an importer. A nil whitelist admits every
// payer.
func NewMessageImporter(s *store.Store, whitelist *Whitelist) *MessageImporter {
	return &MessageImporter{
		store:     s,
		parser:    NewMessageParser(),
		whitelist: whitelist,
		logger:    logger.WithComponent("message_importer"),
	}
}

// Import runs a message batch. Unparsable messages are collected, not
// fatal; duplicate source ids count as already-ingested no-ops.
func (imp *MessageImporter) Import(messages []Message) (*Stats, *apperrors.IngestErrorCollector, error) {
	stats := &Stats{}
	collector := apperrors.NewIngestErrorCollector(len(messages) + 1)

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "import_messages",
		Total:     int64(len(messages)),
		Logger:    imp.logger,
	})

	for _, msg := range messages {
		stats.Processed++
		tracker.Increment()

		payment, err := imp.parser.Parse(msg)
		if err != nil {
			stats.Failed++
			collector.Add(apperrors.NewIngestError(
				apperrors.CodeUnparsableMessage,
				&apperrors.MessageContext{
					Channel:   msg.Channel,
					MessageID: msg.MessageID,
					Snippet:   snippet(msg.Text),
				},
				"message rejected",
				err,
			))
			continue
		}

		if imp.whitelist != nil && !imp.whitelist.Allows(payment.PayerName) {
			imp.logger.WithField("payer", payment.PayerName).Debug("Payer not whitelisted, skipping")
			stats.Skipped++
			continue
		}

		if err := imp.store.Payments.Create(payment); err != nil {
			if apperrors.IsDuplicateIngestion(err) {
				stats.Duplicates++
				continue
			}
			tracker.CompleteWithError(err)
			return stats, collector, err
		}
		stats.Created++
	}

	tracker.Complete()
	imp.logger.WithFields(logger.Fields{
		"created":    stats.Created,
		"duplicates": stats.Duplicates,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	}).Info("Message import finished")

	return stats, collector, nil
}

func snippet(text string) string {
	const max = 60
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
