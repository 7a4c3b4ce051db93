package ingest

import (
	"io"

	"lesson-reconciliation-service/internal/names"
	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"
)

// Whitelist column names. The roster file is inherited from the old
// bookkeeping spreadsheet, hence the Italian headers.
const (
	columnPayerName   = "nome_pagante"
	columnStudentFlag = "studente"
)

// Whitelist filters ingested payments down to known payers, keeping
// one-off transfers (rent, refunds, strangers) out of the review queue.
type Whitelist struct {
	payers map[string]bool
	logger logger.Logger
}

// LoadWhitelist reads the payer roster. Rows with the student flag
// cleared are ignored; payer names match case- and
// punctuation-insensitively.
func LoadWhitelist(path string, config *CSVConfig) (*Whitelist, error) {
	source, err := openCSV(path, config, []string{columnPayerName})
	if err != nil {
		return nil, err
	}
	defer source.Close()

	w := &Whitelist{
		payers: make(map[string]bool),
		logger: logger.WithComponent("whitelist"),
	}

	hasFlag := false
	if _, ok := source.headers[columnStudentFlag]; ok {
		hasFlag = true
	}

	for {
		record, err := source.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, apperrors.SourceError(path, err)
		}

		if hasFlag && source.field(record, columnStudentFlag) != "1" {
			continue
		}

		normalized := names.Normalize(source.field(record, columnPayerName))
		if normalized == "" {
			continue
		}
		w.payers[normalized] = true
	}

	w.logger.WithFields(logger.Fields{
		"source": path,
		"payers": len(w.payers),
	}).Info("Loaded payer whitelist")

	return w, nil
}

// Allows reports whether a payer name is on the roster.
func (w *Whitelist) Allows(payerName string) bool {
	return w.payers[names.Normalize(payerName)]
}

// Size returns the number of whitelisted payers.
func (w *Whitelist) Size() int {
	return len(w.payers)
}
