package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/platformbuilds/hindsight/internal/models"
)

// maxLineBytes caps a single input line at 1 MiB.
const maxLineBytes = 1 << 20

// ctxCheckInterval is how many lines to process between context checks.
const ctxCheckInterval = 256

// JSONLAdapter parses newline-delimited JSON, one object per line.
type JSONLAdapter struct {
	normalizer *Normalizer
}

func NewJSONLAdapter(n *Normalizer) *JSONLAdapter {
	return &JSONLAdapter{normalizer: n}
}

func (a *JSONLAdapter) Format() string { return "jsonl" }

func (a *JSONLAdapter) Parse(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	result := &Result{Events: []*models.Event{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if line%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		result.Total++

		event, err := a.parseLine(line, raw)
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			result.skip(err.Error())
			continue
		}
		result.Events = append(result.Events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, &InvalidFormatError{Format: a.Format(), Reason: err.Error()}
	}
	return result, nil
}

func (a *JSONLAdapter) parseLine(line int, raw string) (*models.Event, error) {
	if !utf8.ValidString(raw) {
		return nil, &ParseError{Line: line, Reason: "invalid UTF-8"}
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, &ParseError{Line: line, Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	event, err := a.normalizer.Normalize(record)
	if err != nil {
		return nil, &ParseError{Line: line, Reason: err.Error()}
	}
	return event, nil
}
