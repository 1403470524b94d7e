package core

// sanitize.go cleans the numeric and unit columns of the nutrition dataset.
//
// Public nutrition exports mix units, thousands separators and placeholders
// into numeric columns ("1,200", "250ml", "N/A", "-"). ParseNumber reduces a
// token to its digits and decimal points and never fails the caller: tokens it
// cannot read become 0 and are reported as MalformedNumericToken diagnostics.
// The explicit placeholders "-" and "N/A" also become 0; they mark a value the
// dataset does not have, and are reported as MissingNumericToken so a run can
// tell how many zeros are not real measurements. Empty cells are silent.
//
// The sign is discarded with every other non-digit character, so "-5" reads
// as 5.

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

// Diagnostic kinds reported by Sanitizer.
const (
	DiagMalformedNumericToken = "MalformedNumericToken"
	DiagMissingNumericToken   = "MissingNumericToken"
)

// Unit values inferred from the serving size column.
const (
	UnitGram       = "g"
	UnitMilliliter = "ml"
)

// ParseNumber converts a raw numeric token to a non-negative float.
//
// Empty tokens and the placeholders "-" and "N/A" yield 0 with ok=true.
// Otherwise commas are removed, then every character other than 0-9 and '.'
// is dropped. An empty remainder yields 0 with ok=true. A remainder that is
// still not a finite number ("1.2.3", ".") yields 0 with ok=false.
func ParseNumber(token string) (value float64, ok bool) {
	t := strings.TrimSpace(token)
	if t == "" || isPlaceholder(t) {
		return 0, true
	}

	t = strings.ReplaceAll(t, ",", "")
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, t)
	if cleaned == "" {
		return 0, true
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func isPlaceholder(trimmed string) bool {
	return trimmed == "-" || trimmed == "N/A"
}

// InferUnit returns "ml" when the raw serving size token mentions ml in any
// letter case, and "g" otherwise.
func InferUnit(servingSizeToken string) string {
	if strings.Contains(strings.ToLower(servingSizeToken), UnitMilliliter) {
		return UnitMilliliter
	}
	return UnitGram
}

// Diagnostic describes a data quality problem that did not stop the run.
type Diagnostic struct {
	Kind  string
	Field string
	Token string
	Line  int
}

// Reporter receives sanitizer diagnostics.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Diagnostic)

// Report calls f(d).
func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// LogReporter writes diagnostics as warnings.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (r LogReporter) Report(d Diagnostic) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("numeric token read as 0",
		"kind", d.Kind,
		"field", d.Field,
		"token", d.Token,
		"line", d.Line,
	)
}

// MultiReporter fans a diagnostic out to several reporters.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(d Diagnostic) {
	for _, r := range m {
		if r != nil {
			r.Report(d)
		}
	}
}

// Sanitizer applies ParseNumber and reports tokens it had to degrade.
// A Sanitizer is scoped to one run; Degraded counts that run only.
type Sanitizer struct {
	reporter Reporter
	degraded atomic.Int64
}

// NewSanitizer returns a sanitizer reporting to r. A nil r logs through slog.
func NewSanitizer(r Reporter) *Sanitizer {
	if r == nil {
		r = LogReporter{}
	}
	return &Sanitizer{reporter: r}
}

// Number parses token for the named field. Placeholder and unreadable
// tokens return 0 and are reported; control flow is never affected.
func (s *Sanitizer) Number(field, token string, line int) float64 {
	v, ok := ParseNumber(token)

	kind := ""
	switch {
	case !ok:
		kind = DiagMalformedNumericToken
	case isPlaceholder(strings.TrimSpace(token)):
		kind = DiagMissingNumericToken
	}
	if kind != "" {
		s.degraded.Add(1)
		s.reporter.Report(Diagnostic{
			Kind:  kind,
			Field: field,
			Token: token,
			Line:  line,
		})
	}
	return v
}

// Degraded returns how many tokens have been reported so far.
func (s *Sanitizer) Degraded() int {
	return int(s.degraded.Load())
}
