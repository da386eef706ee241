package oscilloscope

import (
	"math"
	"strings"
)

// Braille cells pack a 2x4 dot grid per terminal rune, giving the
// waveform four times the vertical resolution of plain characters.
const (
	brailleBase = 0x2800
	cellWidth   = 2
	cellHeight  = 4
)

// brailleDotBits maps (dx, dy) within a cell to its bit in the braille
// pattern, per the Unicode braille block layout.
var brailleDotBits = [cellWidth][cellHeight]rune{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// Canvas rasterizes waveform points into braille text. Coordinates are
// in dot space: width*2 by height*4 dots for a width-by-height cell
// area.
type Canvas struct {
	cellsWide int
	cellsHigh int
	cells     []rune
}

func NewCanvas(cellsWide, cellsHigh int) *Canvas {
	if cellsWide < 1 {
		cellsWide = 1
	}
	if cellsHigh < 1 {
		cellsHigh = 1
	}
	c := &Canvas{cellsWide: cellsWide, cellsHigh: cellsHigh}
	c.cells = make([]rune, cellsWide*cellsHigh)
	return c
}

func (c *Canvas) DotWidth() int  { return c.cellsWide * cellWidth }
func (c *Canvas) DotHeight() int { return c.cellsHigh * cellHeight }

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = 0
	}
}

// SetDot marks one dot. Out-of-range coordinates are ignored.
func (c *Canvas) SetDot(x, y int) {
	if x < 0 || y < 0 || x >= c.DotWidth() || y >= c.DotHeight() {
		return
	}
	cell := (y/cellHeight)*c.cellsWide + x/cellWidth
	c.cells[cell] |= brailleDotBits[x%cellWidth][y%cellHeight]
}

// DrawLine rasterizes a segment between two dots.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := int(math.Abs(float64(x1 - x0)))
	dy := -int(math.Abs(float64(y1 - y0)))
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		c.SetDot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Plot clears the canvas and draws the waveform. Point coordinates are
// expected in dot space; consecutive points are connected.
func (c *Canvas) Plot(points []Point) {
	c.Clear()
	if len(points) == 0 {
		return
	}

	previousX := int(math.Round(points[0].X))
	previousY := int(math.Round(points[0].Y))
	c.SetDot(previousX, previousY)

	for _, point := range points[1:] {
		x := int(math.Round(point.X))
		y := int(math.Round(point.Y))
		c.DrawLine(previousX, previousY, x, y)
		previousX, previousY = x, y
	}
}

// String renders the cell grid as terminal text, one line per cell row.
// Empty cells render as spaces so the background shows through.
func (c *Canvas) String() string {
	var builder strings.Builder
	builder.Grow((c.cellsWide + 1) * c.cellsHigh)

	for row := 0; row < c.cellsHigh; row++ {
		for col := 0; col < c.cellsWide; col++ {
			cell := c.cells[row*c.cellsWide+col]
			if cell == 0 {
				builder.WriteRune(' ')
				continue
			}
			builder.WriteRune(brailleBase + cell)
		}
		if row < c.cellsHigh-1 {
			builder.WriteRune('\n')
		}
	}
	return builder.String()
}
