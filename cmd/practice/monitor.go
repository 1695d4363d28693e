package main

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/metalblueberry/plectrum/pkg/listen"
)

const (
	screenWidth  = 640
	screenHeight = 480
)

var (
	whiteImage = ebiten.NewImage(3, 3)

	// whiteSubImage avoids bleeding edges when used with DrawTriangles.
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

// monitor plots the last captured frame on top and the measured versus
// expected chroma vectors below it.
type monitor struct {
	ctx      context.Context
	listener *listen.Listener

	vertices []ebiten.Vertex
	indices  []uint16
}

func newMonitor(ctx context.Context, listener *listen.Listener) *monitor {
	return &monitor{ctx: ctx, listener: listener}
}

func (m *monitor) Update() error {
	return m.ctx.Err()
}

func (m *monitor) Draw(screen *ebiten.Image) {
	up := screen.SubImage(image.Rect(0, 0, screen.Bounds().Dx(), screen.Bounds().Dy()/2)).(*ebiten.Image)
	down := screen.SubImage(image.Rect(0, screen.Bounds().Dy()/2, screen.Bounds().Dx(), screen.Bounds().Dy())).(*ebiten.Image)

	signals := m.listener.SignalHistory()
	if len(signals) > 0 {
		m.drawWave(up, signals[len(signals)-1], 1)
	}

	inputs := m.listener.Comparator().InputHistory()
	expected := m.listener.Comparator().ExpectedHistory()
	if len(inputs) > 0 {
		m.drawWave(down, inputs[len(inputs)-1], 1)
	}
	if len(expected) > 0 {
		m.drawWave(down, expected[len(expected)-1], -1)
	}

	ebitenutil.DebugPrint(screen, fmt.Sprintf("frames: %d", len(inputs)))
}

func (m *monitor) drawWave(screen *ebiten.Image, data []float64, size float64) {
	if len(data) == 0 {
		return
	}
	var path vector.Path
	mid := screen.Bounds().Min.Y + screen.Bounds().Dy()/2
	width := screen.Bounds().Dx()

	path.MoveTo(0, float32(mid))

	scale := float64(screen.Bounds().Dy()/2) / size
	for i := range data {
		y := float32((data[i] * scale) + float64(mid))
		path.LineTo(float32(i*width)/float32(len(data)), y)
	}

	op := &vector.StrokeOptions{}
	op.Width = 1
	vs, is := path.AppendVerticesAndIndicesForStroke(m.vertices[:0], m.indices[:0], op)
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = 1
		vs[i].ColorG = 1
		vs[i].ColorB = 1
		vs[i].ColorA = 1
	}
	screen.DrawTriangles(vs, is, whiteSubImage, &ebiten.DrawTrianglesOptions{
		AntiAlias: false,
	})
}

func (m *monitor) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
