package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// DefaultMaxFileSize caps file-based ingestion at 100 MiB.
const DefaultMaxFileSize = 100 << 20

// maxSkipReasons bounds the per-load diagnostic list; skips beyond it
// are still counted.
const maxSkipReasons = 25

// Options tunes one ingestion run.
type Options struct {
	// Strict aborts on the first malformed record instead of skipping.
	Strict bool

	// MaxFileSize overrides DefaultMaxFileSize when positive.
	MaxFileSize int64

	// DefaultService stamps events from formats that carry no service
	// of their own, like access logs.
	DefaultService string

	// TextFormat picks the text pattern: syslog, nginx, apache,
	// generic, or auto.
	TextFormat string

	// CustomPattern is a caller-supplied regex for text input. It is
	// safety-validated before use.
	CustomPattern string

	// CSVDelimiter overrides the comma.
	CSVDelimiter rune
}

func (o Options) maxFileSize() int64 {
	if o.MaxFileSize > 0 {
		return o.MaxFileSize
	}
	return DefaultMaxFileSize
}

// Result accumulates one ingestion run.
type Result struct {
	Events  []*models.Event `json:"events"`
	Total   int             `json:"total"`
	Skipped int             `json:"skipped"`
	Reasons []string        `json:"reasons,omitempty"`
}

func (r *Result) skip(reason string) {
	r.Skipped++
	if len(r.Reasons) < maxSkipReasons {
		r.Reasons = append(r.Reasons, reason)
	}
}

// Adapter decodes one input format into normalized events.
type Adapter interface {
	// Format returns the adapter's registry name.
	Format() string

	// Parse reads records from r until EOF, normalizing each. Lenient
	// runs skip malformed records and count them; strict runs return
	// the first failure.
	Parse(ctx context.Context, r io.Reader, opts Options) (*Result, error)
}

// Registry resolves adapters by format name or file extension.
type Registry struct {
	normalizer *Normalizer
	log        logging.Logger
	adapters   map[string]Adapter
	extensions map[string]string
}

// NewRegistry builds a registry with the jsonl, csv and text adapters
// installed, all sharing one normalizer.
func NewRegistry(log logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	r := &Registry{
		normalizer: NewNormalizer(),
		log:        log,
		adapters:   make(map[string]Adapter),
		extensions: make(map[string]string),
	}
	r.Register(NewJSONLAdapter(r.normalizer), ".jsonl", ".ndjson")
	r.Register(NewCSVAdapter(r.normalizer), ".csv", ".tsv")
	r.Register(NewTextAdapter(r.normalizer), ".log", ".txt")
	return r
}

// Normalizer returns the registry's shared normalizer.
func (r *Registry) Normalizer() *Normalizer { return r.normalizer }

// Register installs an adapter under its format name and the given
// file extensions.
func (r *Registry) Register(a Adapter, extensions ...string) {
	r.adapters[a.Format()] = a
	for _, ext := range extensions {
		r.extensions[strings.ToLower(ext)] = a.Format()
	}
}

// Formats lists the registered format names, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Adapter resolves a format name.
func (r *Registry) Adapter(format string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, &InvalidFormatError{
			Format: format,
			Reason: fmt.Sprintf("unknown format, expected one of %s", strings.Join(r.Formats(), ", ")),
		}
	}
	return a, nil
}

// ForPath resolves an adapter from a file extension.
func (r *Registry) ForPath(path string) (Adapter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := r.extensions[ext]
	if !ok {
		return nil, &InvalidFormatError{
			Format: ext,
			Reason: "no adapter registered for this extension, pass an explicit format",
		}
	}
	return r.adapters[format], nil
}

// LoadFile validates the path and size caps, then parses the file with
// the named adapter, or one picked by extension when format is empty.
func (r *Registry) LoadFile(ctx context.Context, path, format string, opts Options) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &PathValidationError{Path: path, Reason: "no such file"}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &PathValidationError{Path: path, Reason: "is a directory"}
	}
	if info.Size() > opts.maxFileSize() {
		return nil, &FileTooLargeError{Path: path, Size: info.Size(), Limit: opts.maxFileSize()}
	}

	var adapter Adapter
	if format != "" {
		adapter, err = r.Adapter(format)
	} else {
		adapter, err = r.ForPath(path)
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	result, err := adapter.Parse(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	r.log.Info("file ingested",
		"path", path, "format", adapter.Format(),
		"events", len(result.Events), "skipped", result.Skipped)
	return result, nil
}
