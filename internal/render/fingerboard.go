package render

import (
	"image"
	"image/color"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Fingerboard geometry. The board is a fixed-size panel centered on the
// canvas; strings run horizontally and positions advance left to right.
const (
	boardWidth         = 800
	boardHeight        = 300
	stringSpacing      = 60
	fretSpacing        = 50
	positionsPerString = 16
	markerRadius       = 14
)

type violinString struct {
	Name     string
	OpenMIDI int
	Color    color.RGBA
}

// stringSet is ordered low to high; drawing places G at the top row.
var stringSet = [4]violinString{
	{Name: "G", OpenMIDI: 55, Color: color.RGBA{139, 69, 19, 255}},
	{Name: "D", OpenMIDI: 62, Color: color.RGBA{165, 42, 42, 255}},
	{Name: "A", OpenMIDI: 69, Color: color.RGBA{205, 133, 63, 255}},
	{Name: "E", OpenMIDI: 76, Color: color.RGBA{210, 180, 140, 255}},
}

var (
	backgroundColor = color.RGBA{255, 255, 255, 255}
	boardColor      = color.RGBA{40, 26, 13, 255}
	fretColor       = color.RGBA{120, 120, 120, 255}
	labelColor      = color.RGBA{20, 20, 20, 255}
	inactiveColor   = color.RGBA{0, 191, 255, 255}
	activeColor     = color.RGBA{255, 0, 0, 255}
)

// PlacementFor maps a MIDI note onto the highest string that can play it
// within the first sixteen positions. ok is false for notes the fingerboard
// cannot show.
func PlacementFor(midi int) (stringIdx, position int, ok bool) {
	for i := len(stringSet) - 1; i >= 0; i-- {
		offset := midi - stringSet[i].OpenMIDI
		if offset >= 0 && offset < positionsPerString {
			return i, offset, true
		}
	}
	return 0, 0, false
}

// PositionLabel renders the label printed under a fingerboard position.
// Position 1 is the low first finger ("-1") and position 4 the extended
// second ("2+"); from position five onward labels continue numerically.
func PositionLabel(position int) string {
	switch position {
	case 0:
		return "0"
	case 1:
		return "-1"
	case 2:
		return "1"
	case 3:
		return "2"
	case 4:
		return "2+"
	default:
		return strconv.Itoa(position - 2)
	}
}

type boardLayout struct {
	originX int
	originY int
}

func layoutFor(width, height int) boardLayout {
	return boardLayout{
		originX: (width - boardWidth) / 2,
		originY: (height - boardHeight) / 2,
	}
}

func (l boardLayout) stringY(stringIdx int) int {
	top := l.originY + (boardHeight-(len(stringSet)-1)*stringSpacing)/2
	return top + stringIdx*stringSpacing
}

func (l boardLayout) positionX(position int) int {
	return l.originX + position*fretSpacing + fretSpacing/2
}

func drawBoard(img *image.RGBA, layout boardLayout) {
	fillRect(img, layout.originX, layout.originY, boardWidth, boardHeight, boardColor)
	for pos := 0; pos <= positionsPerString; pos++ {
		x := layout.originX + pos*fretSpacing
		drawVLine(img, x, layout.originY, boardHeight, fretColor)
	}
	for idx, str := range stringSet {
		y := layout.stringY(idx)
		drawHLine(img, layout.originX, y, boardWidth, str.Color)
		drawHLine(img, layout.originX, y+1, boardWidth, str.Color)
		drawText(img, layout.originX-24, y+4, str.Name, labelColor)
	}
	labelY := layout.originY + boardHeight + 20
	for pos := 0; pos < positionsPerString; pos++ {
		label := PositionLabel(pos)
		x := layout.positionX(pos) - len(label)*basicfont.Face7x13.Advance/2
		drawText(img, x, labelY, label, labelColor)
	}
}

func drawMarker(img *image.RGBA, layout boardLayout, stringIdx, position int, fill color.RGBA, label string) {
	cx := layout.positionX(position)
	cy := layout.stringY(stringIdx)
	fillCircle(img, cx, cy, markerRadius, fill)
	if label == "" {
		return
	}
	x := cx - len(label)*basicfont.Face7x13.Advance/2
	drawText(img, x, cy-markerRadius-6, label, labelColor)
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	bounds := img.Bounds()
	for yy := y; yy < y+h; yy++ {
		if yy < bounds.Min.Y || yy >= bounds.Max.Y {
			continue
		}
		for xx := x; xx < x+w; xx++ {
			if xx < bounds.Min.X || xx >= bounds.Max.X {
				continue
			}
			img.SetRGBA(xx, yy, c)
		}
	}
}

func drawHLine(img *image.RGBA, x, y, length int, c color.RGBA) {
	fillRect(img, x, y, length, 1, c)
}

func drawVLine(img *image.RGBA, x, y, length int, c color.RGBA) {
	fillRect(img, x, y, 1, length, c)
}

func fillCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	drawer := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
