package analyzer

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"hash"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const utf8BOM = "\uFEFF"

// Row is one decoded CSV record keyed by header name.
type Row struct {
	Line   int
	Fields map[string]string
	// Extra counts values past the end of the header. They are kept in Fields
	// under "_<index>".
	Extra int
}

// Blank reports whether every value in the row is empty.
func (r Row) Blank() bool {
	for _, v := range r.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// RowSource streams rows from a CSV byte stream. It is a finite,
// non-restartable sequence: call Next until it returns io.EOF.
type RowSource struct {
	cr     *csv.Reader
	header []string
	hasher hash.Hash
	size   *countingReader
	done   bool
}

func NewRowSource(r io.Reader) *RowSource {
	counter := &countingReader{r: r}
	hasher := sha256.New()
	cr := csv.NewReader(io.TeeReader(counter, hasher))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return &RowSource{cr: cr, hasher: hasher, size: counter}
}

// Header returns the decoded header, reading it if needed.
func (s *RowSource) Header() ([]string, error) {
	if s.header != nil {
		return s.header, nil
	}
	rec, err := s.cr.Read()
	if err == io.EOF {
		s.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, s.decodeError(err)
	}
	header := make([]string, len(rec))
	for i, h := range rec {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		if !utf8.ValidString(h) {
			return nil, &DecodeError{Line: 1, Err: errors.Errorf("header column %d is not valid UTF-8", i+1)}
		}
		header[i] = h
	}
	s.header = header
	return header, nil
}

// Next returns the next row, io.EOF at the end of the stream, or a *DecodeError.
func (s *RowSource) Next() (Row, error) {
	if s.done {
		return Row{}, io.EOF
	}
	header, err := s.Header()
	if err != nil {
		return Row{}, err
	}
	rec, err := s.cr.Read()
	if err == io.EOF {
		s.done = true
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, s.decodeError(err)
	}
	line, _ := s.cr.FieldPos(0)

	row := Row{Line: line, Fields: make(map[string]string, len(header))}
	for i, v := range rec {
		if !utf8.ValidString(v) {
			return Row{}, &DecodeError{Line: line, Err: errors.Errorf("field %d is not valid UTF-8", i+1)}
		}
		if i < len(header) {
			row.Fields[header[i]] = v
			continue
		}
		row.Fields["_"+strconv.Itoa(i)] = v
		row.Extra++
	}
	return row, nil
}

// Digest is the hex SHA-256 of every byte consumed so far. After io.EOF it
// covers the whole stream.
func (s *RowSource) Digest() string {
	return hex.EncodeToString(s.hasher.Sum(nil))
}

// Size is the number of bytes consumed so far.
func (s *RowSource) Size() int64 {
	return s.size.n
}

func (s *RowSource) decodeError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &DecodeError{Line: pe.Line, Err: pe.Err}
	}
	return &DecodeError{Err: err}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
