// Package ingest turns the two external feeds into store records: bank
// transfer notifications become payments and calendar exports become
// lessons. Both feeds carry idempotency keys, so re-running an import is
// safe; duplicates are counted and skipped, never errors.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	apperrors "lesson-reconciliation-service/pkg/errors"
	"lesson-reconciliation-service/pkg/logger"
)

// CSVConfig holds configuration shared by the CSV-backed feeds.
type CSVConfig struct {
	HasHeader        bool
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
}

// DefaultCSVConfig returns a configuration with sensible defaults.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		HasHeader:        true,
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}
}

// csvSource wraps a CSV file with header-aware record access.
type csvSource struct {
	path    string
	file    *os.File
	reader  *csv.Reader
	headers map[string]int
	line    int

	config *CSVConfig
	logger logger.Logger
}

// openCSV opens a CSV source and resolves its header row against the
// required column names.
func openCSV(path string, config *CSVConfig, required []string) (*csvSource, error) {
	if config == nil {
		config = DefaultCSVConfig()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.SourceError(path, err)
	}

	reader := csv.NewReader(file)
	reader.Comma = config.Delimiter
	reader.TrimLeadingSpace = config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	s := &csvSource{
		path:    path,
		file:    file,
		reader:  reader,
		headers: make(map[string]int),
		config:  config,
		logger:  logger.WithComponent("ingest").WithField("source", path),
	}

	if err := s.readHeaders(required); err != nil {
		file.Close()
		return nil, err
	}

	return s, nil
}

func (s *csvSource) readHeaders(required []string) error {
	if !s.config.HasHeader {
		for i, name := range required {
			s.headers[strings.ToLower(name)] = i
		}
		return nil
	}

	row, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			return apperrors.MissingColumnError(s.path, required)
		}
		return apperrors.SourceError(s.path, err)
	}
	s.line++

	for i, name := range row {
		s.headers[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := s.headers[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return apperrors.MissingColumnError(s.path, missing)
	}

	return nil
}

// next returns the following non-empty record, or io.EOF.
func (s *csvSource) next() ([]string, error) {
	for {
		record, err := s.reader.Read()
		if err != nil {
			return nil, err
		}
		s.line++

		if s.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		return record, nil
	}
}

// field retrieves a trimmed value by column name; absent cells read as "".
func (s *csvSource) field(record []string, name string) string {
	index, ok := s.headers[strings.ToLower(name)]
	if !ok || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// Stats summarizes an import run. Duplicates are expected on re-runs
// and never fail the batch.
type Stats struct {
	Processed  int `json:"processed"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}
