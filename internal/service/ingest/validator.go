package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ignite/campaign-ingest/internal/domain"
)

// fieldDelimiter is the only separator recognised. Quoted delimiters are not
// supported: a comma inside a name or an errors payload shifts the column
// count.
const fieldDelimiter = ","

// ColumnSpec constrains the number of comma-separated fields on every data
// line. Exact specs require Count columns; minimum specs require at least
// Count columns.
type ColumnSpec struct {
	Count   int
	Minimum bool
}

// Exactly returns a spec requiring n columns.
func Exactly(n int) ColumnSpec { return ColumnSpec{Count: n} }

// AtLeast returns a spec requiring n or more columns.
func AtLeast(n int) ColumnSpec { return ColumnSpec{Count: n, Minimum: true} }

// Allows reports whether a line with found columns satisfies the spec.
func (c ColumnSpec) Allows(found int) bool {
	if c.Minimum {
		return found >= c.Count
	}
	return found == c.Count
}

func (c ColumnSpec) String() string {
	if c.Minimum {
		return fmt.Sprintf("at least %d", c.Count)
	}
	return fmt.Sprintf("%d", c.Count)
}

// ColumnSpecFor returns the column rule for a record kind.
func ColumnSpecFor(kind domain.RecordKind) (ColumnSpec, error) {
	switch kind {
	case domain.KindContactList:
		return Exactly(2), nil
	case domain.KindAnalyticsReport:
		return AtLeast(4), nil
	}
	return ColumnSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// ParsedLine is one non-blank data line split into raw fields. Index is
// 1-based and counts data rows only (the header is excluded).
type ParsedLine struct {
	Index  int
	Fields []string
}

// Validate decodes raw upload bytes, drops blank lines and checks the column
// count of every data line. It returns at the first violation. The header
// line is required but not inspected or returned.
func Validate(raw []byte, spec ColumnSpec) ([]ParsedLine, error) {
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) < 2 {
		return nil, &ValidationError{Kind: EmptyPayload}
	}

	parsed := make([]ParsedLine, 0, len(lines)-1)
	for i, l := range lines[1:] {
		fields := strings.Split(l, fieldDelimiter)
		if !spec.Allows(len(fields)) {
			return nil, &ValidationError{
				Kind:     ColumnCountMismatch,
				Line:     i + 1,
				Found:    len(fields),
				Expected: spec.String(),
			}
		}
		parsed = append(parsed, ParsedLine{Index: i + 1, Fields: fields})
	}
	return parsed, nil
}

// decodeText strips a byte-order mark (transcoding UTF-16 input when one is
// present) and rejects anything that is not plain UTF-8 text.
func decodeText(raw []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		return "", &ValidationError{Kind: NotDecodable}
	}
	if !utf8.Valid(out) || bytes.IndexByte(out, 0) >= 0 {
		return "", &ValidationError{Kind: NotDecodable}
	}
	return string(out), nil
}
