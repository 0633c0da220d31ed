package mcpserver

import (
	"math"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

const (
	GridSize = 20.0
	Padding  = 40.0 // 2 grid cells between stacks
	MaxRowW  = 1200.0

	rowHeight = 30.0
	baseWidth = 180.0
	indentW   = 30.0
)

// LayoutEngine places top-level block stacks so that stacks created through
// MCP don't overlap existing ones. Nothing is rendered, so stack sizes are
// estimated from their structure.
type LayoutEngine struct {
	gridSize float64
	padding  float64
	maxRowW  float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		gridSize: GridSize,
		padding:  Padding,
		maxRowW:  MaxRowW,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.gridSize) * le.gridSize
}

// rect is a simple axis-aligned bounding box.
type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

// Box is the estimated footprint of one top-level stack.
type Box struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// measureStack counts the rows of the stack starting at b and the deepest
// statement nesting inside it.
func measureStack(b *blocks.Block, depth int) (rows, maxDepth int) {
	maxDepth = depth
	for ; b != nil; b = b.NextBlock() {
		rows++
		for _, in := range b.Inputs() {
			if in.Type() != blocks.InputTypeStatement {
				continue
			}
			r, d := measureStack(in.TargetBlock(), depth+1)
			// an empty arm still takes a row, plus one for the closing edge
			rows += max(r, 1) + 1
			maxDepth = max(maxDepth, d)
		}
	}
	return rows, maxDepth
}

// BoxOf estimates the footprint of the stack rooted at top.
func BoxOf(top *blocks.Block) Box {
	x, y := top.XY()
	rows, depth := measureStack(top, 0)
	return Box{
		ID:     top.ID(),
		Type:   top.Type(),
		X:      x,
		Y:      y,
		Width:  baseWidth + float64(depth)*indentW,
		Height: float64(rows) * rowHeight,
	}
}

// TopBoxes returns the footprints of every top-level stack in ws, top to
// bottom.
func TopBoxes(ws *blocks.Workspace) []Box {
	tops := ws.TopBlocks(true)
	out := make([]Box, len(tops))
	for i, b := range tops {
		out[i] = BoxOf(b)
	}
	return out
}

// NextPosition finds the next non-overlapping grid position for a stack
// of size (newW, newH) given the existing stacks.
func (le *LayoutEngine) NextPosition(existing []Box, newW, newH float64) (float64, float64) {
	if len(existing) == 0 {
		return 0, 0
	}

	occupied := make([]rect, len(existing))
	for i, b := range existing {
		occupied[i] = rect{b.X, b.Y, b.Width, b.Height}
	}

	// Scan rows top-to-bottom, columns left-to-right
	candidate := rect{w: newW, h: newH}
	for y := 0.0; y < 100000; y += le.gridSize {
		for x := 0.0; x < le.maxRowW; x += le.gridSize {
			candidate.x = le.snap(x)
			candidate.y = le.snap(y)

			overlaps := false
			for _, occ := range occupied {
				padded := rect{
					x: occ.x - le.padding,
					y: occ.y - le.padding,
					w: occ.w + le.padding*2,
					h: occ.h + le.padding*2,
				}
				if candidate.intersects(padded) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return candidate.x, candidate.y
			}
		}
	}

	maxY := 0.0
	for _, b := range existing {
		if b.Y+b.Height > maxY {
			maxY = b.Y + b.Height
		}
	}
	return 0, le.snap(maxY + le.padding)
}

// ArrangeGroup lays boxes out in rows starting from (startX, startY). It
// modifies positions in place and returns the slice.
func (le *LayoutEngine) ArrangeGroup(boxes []Box, startX, startY float64) []Box {
	x := le.snap(startX)
	y := le.snap(startY)
	rowH := 0.0

	for i := range boxes {
		if x > le.snap(startX) && x+boxes[i].Width > le.maxRowW {
			x = le.snap(startX)
			y += le.snap(rowH + le.padding)
			rowH = 0
		}
		boxes[i].X = x
		boxes[i].Y = y
		if boxes[i].Height > rowH {
			rowH = boxes[i].Height
		}
		x += le.snap(boxes[i].Width + le.padding)
	}
	return boxes
}

// Arrange moves every top-level stack of ws into a tidy grid and returns
// the new footprints.
func (le *LayoutEngine) Arrange(ws *blocks.Workspace, startX, startY float64) []Box {
	boxes := le.ArrangeGroup(TopBoxes(ws), startX, startY)
	for _, b := range boxes {
		if blk := ws.Block(b.ID); blk != nil {
			blk.MoveTo(b.X, b.Y)
		}
	}
	return boxes
}

// Place moves top to the next free position among the other stacks of ws.
func (le *LayoutEngine) Place(ws *blocks.Workspace, top *blocks.Block) (float64, float64) {
	var others []Box
	for _, b := range TopBoxes(ws) {
		if b.ID != top.ID() {
			others = append(others, b)
		}
	}
	box := BoxOf(top)
	x, y := le.NextPosition(others, box.Width, box.Height)
	top.MoveTo(x, y)
	return x, y
}
