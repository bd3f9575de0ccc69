package canvas

import (
	"fmt"
	"strconv"
	"strings"
)

// CorruptGridError reports a persisted grid that fails structural validation.
type CorruptGridError struct {
	Name   string
	Line   int
	Reason string
}

func (e *CorruptGridError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("canvas %q is corrupt at line %d: %s", e.Name, e.Line, e.Reason)
	}
	return fmt.Sprintf("canvas %q is corrupt: %s", e.Name, e.Reason)
}

// Encode serialises the grid one row per line, cells separated by commas.
func Encode(c *Canvas) string {
	var b strings.Builder
	for _, row := range c.cells {
		for j, owner := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(owner, 10))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Decode parses the output of Encode. Ragged rows, empty grids and
// non-integer tokens are reported as *CorruptGridError.
func Decode(name, data string) (*Canvas, error) {
	lines := strings.Split(strings.TrimRight(data, "\r\n"), "\n")
	if len(lines) == 1 && strings.TrimSpace(lines[0]) == "" {
		return nil, &CorruptGridError{Name: name, Reason: "empty grid"}
	}

	cells := make([][]int64, 0, len(lines))
	for i, line := range lines {
		tokens := strings.Split(strings.TrimSpace(line), ",")
		if i > 0 && len(tokens) != len(cells[0]) {
			return nil, &CorruptGridError{
				Name:   name,
				Line:   i + 1,
				Reason: fmt.Sprintf("row has %d cells, want %d", len(tokens), len(cells[0])),
			}
		}
		row := make([]int64, len(tokens))
		for j, tok := range tokens {
			v, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
			if err != nil {
				return nil, &CorruptGridError{
					Name:   name,
					Line:   i + 1,
					Reason: fmt.Sprintf("cell %d: %q is not an integer", j, tok),
				}
			}
			row[j] = v
		}
		cells = append(cells, row)
	}
	return fromCells(name, cells), nil
}
