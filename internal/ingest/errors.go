package ingest

import "fmt"

// FileTooLargeError rejects inputs above the configured size cap.
type FileTooLargeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s is %d bytes, above the %d byte limit", e.Path, e.Size, e.Limit)
}

// InvalidFormatError rejects inputs the adapter cannot decode at all,
// such as non-UTF-8 bytes or an unknown format name.
type InvalidFormatError struct {
	Format string
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid %s input: %s", e.Format, e.Reason)
}

// ParseError marks one undecodable record. Line is 1-based and zero
// for non-line inputs.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

// ValidationError marks a decoded record that fails the event
// contract, such as missing both service and message.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UnsafeRegexError rejects caller-supplied patterns that fail safety
// validation.
type UnsafeRegexError struct {
	Pattern string
	Reason  string
}

func (e *UnsafeRegexError) Error() string {
	return fmt.Sprintf("unsafe pattern %q: %s", e.Pattern, e.Reason)
}

// PathValidationError rejects unusable input paths before any read.
type PathValidationError struct {
	Path   string
	Reason string
}

func (e *PathValidationError) Error() string {
	return fmt.Sprintf("path %s: %s", e.Path, e.Reason)
}
