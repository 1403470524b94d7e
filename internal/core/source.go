package core

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// RecordSource is a lazy, forward-only sequence of raw records.
// Next returns io.EOF once the input is exhausted.
type RecordSource interface {
	Next() (RawRecord, error)
	BytesRead() int64
	// Progress is the share of the input consumed, 0-100, or 0 when the
	// input size is unknown.
	Progress() int
	Close() error
}

// SourceOpener starts a fresh pass over the input. Each call re-reads from
// the first data line.
type SourceOpener interface {
	Open(ctx context.Context) (RecordSource, error)
}

// FileSource opens a CSV file on disk.
type FileSource struct {
	Path   string
	Layout Layout
}

// Open implements SourceOpener. Failure to open the file is reported as
// ErrSourceUnavailable.
func (s FileSource) Open(ctx context.Context) (RecordSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	var size int64
	if st, err := f.Stat(); err == nil {
		if st.IsDir() {
			f.Close()
			return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, s.Path)
		}
		size = st.Size()
	}

	return NewCSVSource(f, size, s.Layout), nil
}

// ReaderSource serves a single in-memory or streamed input. It can be opened
// once; later opens report ErrSourceUnavailable.
type ReaderSource struct {
	r      io.Reader
	layout Layout
	opened bool
}

// NewReaderSource wraps r.
func NewReaderSource(r io.Reader, layout Layout) *ReaderSource {
	return &ReaderSource{r: r, layout: layout}
}

// Open implements SourceOpener.
func (s *ReaderSource) Open(ctx context.Context) (RecordSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.opened || s.r == nil {
		return nil, fmt.Errorf("%w: reader already consumed", ErrSourceUnavailable)
	}
	s.opened = true
	return NewCSVSource(s.r, 0, s.layout), nil
}

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// CSVSource reads comma-delimited lines and extracts fields by position.
// Every physical line is one record: a quote never joins lines.
type CSVSource struct {
	counter *CountingReader
	scanner *bufio.Scanner
	closer  io.Closer
	layout  Layout
	line    int
}

// NewCSVSource reads from r. When r is an io.Closer, Close closes it.
// size is the input length if known, used only for progress.
func NewCSVSource(r io.Reader, size int64, layout Layout) *CSVSource {
	counter := WrapForStreaming(r, size)

	sc := bufio.NewScanner(counter)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	src := &CSVSource{
		counter: counter,
		scanner: sc,
		layout:  layout,
	}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// Next implements RecordSource. The first line is treated as a header and
// discarded. Blank lines are skipped.
func (s *CSVSource) Next() (RawRecord, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSuffix(s.scanner.Text(), "\r")
		if s.line == 1 || strings.TrimSpace(text) == "" {
			continue
		}
		return s.layout.Extract(splitLine(text), s.line), nil
	}
	if err := s.scanner.Err(); err != nil {
		return RawRecord{}, fmt.Errorf("%w: line %d: %w", ErrSourceUnavailable, s.line+1, err)
	}
	return RawRecord{}, io.EOF
}

// splitLine splits one line into fields. Well-formed quoting is honored, so
// "1,200" stays one field. A line whose quotes do not parse as CSV, such as
// a name that starts with a quoted word, is split on every comma instead.
func splitLine(line string) []string {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	if fields, err := cr.Read(); err == nil {
		if _, err := cr.Read(); errors.Is(err, io.EOF) {
			return fields
		}
	}
	return strings.Split(line, ",")
}

// BytesRead implements RecordSource.
func (s *CSVSource) BytesRead() int64 { return s.counter.BytesRead() }

// Progress implements RecordSource.
func (s *CSVSource) Progress() int { return s.counter.Progress() }

// Close implements RecordSource.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
