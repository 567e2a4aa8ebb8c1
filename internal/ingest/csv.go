package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/platformbuilds/hindsight/internal/models"
)

// csvHeaderAliases maps common column spellings onto the canonical
// record keys the normalizer understands.
var csvHeaderAliases = map[string]string{
	"timestamp":  "timestamp",
	"time":       "timestamp",
	"ts":         "timestamp",
	"@timestamp": "timestamp",
	"datetime":   "timestamp",
	"service":    "service",
	"component":  "component",
	"app":        "service",
	"level":      "level",
	"severity":   "severity",
	"loglevel":   "level",
	"log_level":  "level",
	"message":    "message",
	"msg":        "message",
	"log":        "message",
	"text":       "message",
}

// CSVAdapter parses delimited files with a mandatory header row.
type CSVAdapter struct {
	normalizer *Normalizer
}

func NewCSVAdapter(n *Normalizer) *CSVAdapter {
	return &CSVAdapter{normalizer: n}
}

func (a *CSVAdapter) Format() string { return "csv" }

func (a *CSVAdapter) Parse(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.CSVDelimiter != 0 {
		reader.Comma = opts.CSVDelimiter
	}

	header, err := a.readHeader(reader)
	if err != nil {
		return nil, err
	}

	result := &Result{Events: []*models.Event{}}
	row := 1
	for {
		row++
		if row%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			perr := &ParseError{Line: row, Reason: err.Error()}
			if opts.Strict {
				return nil, perr
			}
			result.skip(perr.Error())
			result.Total++
			continue
		}
		if isBlankRow(fields) {
			row--
			continue
		}
		result.Total++

		event, err := a.parseRow(row, header, fields, opts)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			result.skip(err.Error())
			continue
		}
		result.Events = append(result.Events, event)
	}
}

// readHeader consumes the first row and resolves column names. A file
// with no rows, or a header naming none of the known columns, is not
// usable as event input.
func (a *CSVAdapter) readHeader(reader *csv.Reader) ([]string, error) {
	fields, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &InvalidFormatError{Format: "csv", Reason: "missing header row"}
	}
	if err != nil {
		return nil, &InvalidFormatError{Format: "csv", Reason: fmt.Sprintf("bad header row: %v", err)}
	}

	header := make([]string, len(fields))
	known := 0
	for i, cell := range fields {
		name := strings.ToLower(strings.TrimSpace(cell))
		if canonical, ok := csvHeaderAliases[name]; ok {
			header[i] = canonical
			known++
		} else {
			header[i] = strings.TrimSpace(cell)
		}
	}
	if known == 0 {
		return nil, &InvalidFormatError{
			Format: "csv",
			Reason: "header row has no recognized columns (timestamp, service, level, message)",
		}
	}
	return header, nil
}

func (a *CSVAdapter) parseRow(row int, header, fields []string, opts Options) (*models.Event, error) {
	if len(fields) != len(header) {
		return nil, &ParseError{
			Line:   row,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(fields)),
		}
	}
	record := make(Record, len(header))
	for i, cell := range fields {
		value := strings.TrimSpace(cell)
		if value == "" {
			continue
		}
		record[header[i]] = value
	}
	if _, ok := record["service"]; !ok && opts.DefaultService != "" {
		record["service"] = opts.DefaultService
	}
	event, err := a.normalizer.Normalize(record)
	if err != nil {
		return nil, &ParseError{Line: row, Reason: err.Error()}
	}
	return event, nil
}

func isBlankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
