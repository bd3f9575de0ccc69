package canvas

import (
	"fmt"
)

// Unclaimed is the owner id of an empty cell.
const Unclaimed int64 = 0

// MaxSide bounds both dimensions of a canvas.
const MaxSide = 256

// Canvas is a fixed-shape grid of cell owners. It is not safe for
// concurrent use; Manager serialises access per canvas name.
type Canvas struct {
	Name  string
	Rows  int
	Cols  int
	cells [][]int64
}

// New returns an all-unclaimed canvas.
func New(name string, rows, cols int) (*Canvas, error) {
	if rows <= 0 || cols <= 0 || rows > MaxSide || cols > MaxSide {
		return nil, fmt.Errorf("canvas %q: invalid shape %dx%d", name, rows, cols)
	}
	cells := make([][]int64, rows)
	for i := range cells {
		cells[i] = make([]int64, cols)
	}
	return &Canvas{Name: name, Rows: rows, Cols: cols, cells: cells}, nil
}

func fromCells(name string, cells [][]int64) *Canvas {
	return &Canvas{Name: name, Rows: len(cells), Cols: len(cells[0]), cells: cells}
}

// Resolve maps signed coordinates to grid indexes. Each axis is clamped to
// [-N, N-1]; negative values then count from the end, so -1 is the last
// index and -N the first.
func (c *Canvas) Resolve(x, y int) (row, col int) {
	return resolveAxis(x, c.Rows), resolveAxis(y, c.Cols)
}

func resolveAxis(v, n int) int {
	if v < -n {
		v = -n
	}
	if v > n-1 {
		v = n - 1
	}
	if v < 0 {
		v += n
	}
	return v
}

// At returns the owner of the cell addressed by (x, y).
func (c *Canvas) At(x, y int) int64 {
	r, col := c.Resolve(x, y)
	return c.cells[r][col]
}

// Toggle claims the cell for userID, or clears it when userID already owns
// it. Another user's tile is overwritten. Returns the new cell value.
func (c *Canvas) Toggle(x, y int, userID int64) int64 {
	r, col := c.Resolve(x, y)
	if c.cells[r][col] == userID {
		c.cells[r][col] = Unclaimed
	} else {
		c.cells[r][col] = userID
	}
	return c.cells[r][col]
}

func (c *Canvas) set(row, col int, owner int64) {
	c.cells[row][col] = owner
}

// CountByOwner returns the number of cells held by each owner.
func (c *Canvas) CountByOwner() map[int64]int {
	count := make(map[int64]int)
	for _, row := range c.cells {
		for _, owner := range row {
			if owner != Unclaimed {
				count[owner]++
			}
		}
	}
	return count
}

// Cells returns a copy of the grid, row-major.
func (c *Canvas) Cells() [][]int64 {
	out := make([][]int64, len(c.cells))
	for i, row := range c.cells {
		out[i] = append([]int64(nil), row...)
	}
	return out
}

// Clone returns a deep copy.
func (c *Canvas) Clone() *Canvas {
	return &Canvas{Name: c.Name, Rows: c.Rows, Cols: c.Cols, cells: c.Cells()}
}
