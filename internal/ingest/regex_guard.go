package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// maxPatternLength caps caller-supplied patterns.
	maxPatternLength = 2048

	// regexProbeTimeout bounds the compile-and-match probe.
	regexProbeTimeout = 100 * time.Millisecond
)

var regexProbeInput = strings.Repeat("aaaa aaaa 1234 !", 64)

// ValidateRegex vets a caller-supplied pattern before it is allowed
// near input data. Patterns with nested quantifiers, the classic
// catastrophic-backtracking shape, are rejected outright, and the
// compile plus a probe match must finish under a timeout.
func ValidateRegex(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, &UnsafeRegexError{Pattern: pattern, Reason: "empty pattern"}
	}
	if len(pattern) > maxPatternLength {
		return nil, &UnsafeRegexError{
			Pattern: pattern,
			Reason:  fmt.Sprintf("pattern exceeds %d bytes", maxPatternLength),
		}
	}
	if hasNestedQuantifier(pattern) {
		return nil, &UnsafeRegexError{Pattern: pattern, Reason: "nested quantifiers"}
	}

	type outcome struct {
		re  *regexp.Regexp
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		re, err := regexp.Compile(pattern)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		re.MatchString(regexProbeInput)
		done <- outcome{re: re}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, &UnsafeRegexError{
				Pattern: pattern,
				Reason:  fmt.Sprintf("does not compile: %v", out.err),
			}
		}
		return out.re, nil
	case <-time.After(regexProbeTimeout):
		return nil, &UnsafeRegexError{Pattern: pattern, Reason: "validation probe timed out"}
	}
}

// hasNestedQuantifier scans for a repetition applied to a group that
// itself contains a repetition, e.g. (a+)+ or (a*)* or (\d+){2,}.
// Escapes and character classes are skipped; (?: and (?P<> prefixes
// are group syntax, not quantifiers.
func hasNestedQuantifier(pattern string) bool {
	var stack []bool // per open group: quantifier seen inside
	inClass := false
	escaped := false
	closedHadQuant := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if escaped {
			escaped = false
			closedHadQuant = false
			continue
		}
		if c == '\\' {
			escaped = true
			closedHadQuant = false
			continue
		}
		if inClass {
			if c == ']' {
				inClass = false
			}
			continue
		}
		switch c {
		case '[':
			inClass = true
			closedHadQuant = false
		case '(':
			stack = append(stack, false)
			closedHadQuant = false
		case ')':
			closedHadQuant = false
			if n := len(stack); n > 0 {
				closedHadQuant = stack[n-1]
				stack = stack[:n-1]
				if closedHadQuant && len(stack) > 0 {
					stack[len(stack)-1] = true
				}
			}
		case '+', '*':
			if closedHadQuant {
				return true
			}
			if len(stack) > 0 {
				stack[len(stack)-1] = true
			}
			closedHadQuant = false
		case '?':
			if i == 0 || pattern[i-1] != '(' {
				if len(stack) > 0 {
					stack[len(stack)-1] = true
				}
			}
			closedHadQuant = false
		case '{':
			if i+1 < len(pattern) && pattern[i+1] >= '0' && pattern[i+1] <= '9' {
				if closedHadQuant {
					return true
				}
				if len(stack) > 0 {
					stack[len(stack)-1] = true
				}
			}
			closedHadQuant = false
		default:
			closedHadQuant = false
		}
	}
	return false
}
