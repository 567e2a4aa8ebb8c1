package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/platformbuilds/hindsight/internal/models"
)

// TextFormatAuto tries every built-in pattern per line, in order.
const TextFormatAuto = "auto"

type textPattern struct {
	name string
	re   *regexp.Regexp
}

// Built-in line patterns, tried in this order under auto-detection.
// NGINX before Apache: the Apache shape also matches NGINX's "- -"
// ident/user placeholders.
var builtinTextPatterns = []textPattern{
	{
		name: "syslog",
		re: regexp.MustCompile(`^(?P<timestamp>[A-Z][a-z]{2}\s+\d{1,2} \d{2}:\d{2}:\d{2}) (?P<host>\S+) ` +
			`(?P<service>[\w.\-/]+)(?:\[(?P<pid>\d+)\])?: (?P<message>.*)$`),
	},
	{
		name: "nginx",
		re: regexp.MustCompile(`^(?P<ip>\S+) - - \[(?P<timestamp>[^\]]+)\] ` +
			`"(?P<method>\S+) (?P<path>\S+) (?P<proto>[^"]*)" (?P<status>\d{3}) (?P<size>\d+|-)`),
	},
	{
		name: "apache",
		re: regexp.MustCompile(`^(?P<ip>\S+) (?P<ident>\S+) (?P<user>\S+) \[(?P<timestamp>[^\]]+)\] ` +
			`"(?P<method>\S+) (?P<path>\S+) (?P<proto>[^"]*)" (?P<status>\d{3}) (?P<size>\d+|-)`),
	},
	{
		name: "generic",
		re: regexp.MustCompile(`^(?P<timestamp>\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+` +
			`\[?(?P<level>[A-Za-z]+)\]?\s+(?:\[(?P<service>[^\]]+)\]\s+)?(?P<message>.*)$`),
	},
}

// TextAdapter parses plain-text logs with named regex patterns.
type TextAdapter struct {
	normalizer *Normalizer
}

func NewTextAdapter(n *Normalizer) *TextAdapter {
	return &TextAdapter{normalizer: n}
}

func (a *TextAdapter) Format() string { return "text" }

func (a *TextAdapter) Parse(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	patterns, err := a.resolvePatterns(opts)
	if err != nil {
		return nil, err
	}

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
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		result.Total++

		event, err := a.parseLine(line, raw, patterns, opts)
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

func (a *TextAdapter) resolvePatterns(opts Options) ([]textPattern, error) {
	if opts.CustomPattern != "" {
		re, err := ValidateRegex(opts.CustomPattern)
		if err != nil {
			return nil, err
		}
		if !hasKnownGroup(re) {
			return nil, &InvalidFormatError{
				Format: "text",
				Reason: "custom pattern defines none of the named groups timestamp, service, level, message",
			}
		}
		return []textPattern{{name: "custom", re: re}}, nil
	}
	format := strings.ToLower(strings.TrimSpace(opts.TextFormat))
	if format == "" || format == TextFormatAuto {
		return builtinTextPatterns, nil
	}
	for _, p := range builtinTextPatterns {
		if p.name == format {
			return []textPattern{p}, nil
		}
	}
	return nil, &InvalidFormatError{Format: opts.TextFormat, Reason: "unknown text pattern"}
}

func (a *TextAdapter) parseLine(line int, raw string, patterns []textPattern, opts Options) (*models.Event, error) {
	if !utf8.ValidString(raw) {
		return nil, &ParseError{Line: line, Reason: "invalid UTF-8"}
	}
	for _, p := range patterns {
		match := p.re.FindStringSubmatch(raw)
		if match == nil {
			continue
		}
		record := recordFromMatch(p, match)
		fillDefaults(record, p.name, opts)
		event, err := a.normalizer.Normalize(record)
		if err != nil {
			return nil, &ParseError{Line: line, Reason: err.Error()}
		}
		return event, nil
	}
	return nil, &ParseError{Line: line, Reason: "no pattern matched"}
}

func recordFromMatch(p textPattern, match []string) Record {
	record := make(Record)
	for i, name := range p.re.SubexpNames() {
		if i == 0 || name == "" || i >= len(match) {
			continue
		}
		if value := strings.TrimSpace(match[i]); value != "" {
			record[name] = value
		}
	}
	record["pattern"] = p.name
	return record
}

// fillDefaults derives the fields access-log lines do not carry. The
// level comes from the HTTP status when present, the message from the
// request line, and the service falls back to the pattern name so the
// events still group somewhere sensible.
func fillDefaults(record Record, patternName string, opts Options) {
	if _, ok := record["level"]; !ok {
		if status, ok := record["status"].(string); ok {
			if level := statusLevel(status); level != "" {
				record["level"] = level
			}
		}
	}
	if _, ok := record["message"]; !ok {
		method, _ := record["method"].(string)
		path, _ := record["path"].(string)
		status, _ := record["status"].(string)
		if method != "" && path != "" {
			record["message"] = strings.TrimSpace(fmt.Sprintf("%s %s %s", method, path, status))
		}
	}
	if _, ok := record["service"]; !ok {
		if opts.DefaultService != "" {
			record["service"] = opts.DefaultService
		} else if patternName == "nginx" || patternName == "apache" {
			record["service"] = patternName
		}
	}
}

// statusLevel maps an HTTP status code onto a severity: 5xx is ERROR,
// 4xx is WARN, everything else INFO.
func statusLevel(status string) string {
	code, err := strconv.Atoi(status)
	if err != nil {
		return ""
	}
	switch {
	case code >= 500:
		return string(models.LevelError)
	case code >= 400:
		return string(models.LevelWarn)
	default:
		return string(models.LevelInfo)
	}
}

func hasKnownGroup(re *regexp.Regexp) bool {
	for _, name := range re.SubexpNames() {
		switch name {
		case "timestamp", "service", "level", "message":
			return true
		}
	}
	return false
}
