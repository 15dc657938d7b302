//go:build !tinygo

package main

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"gopixel/core"
	"gopixel/sim"
)

type game struct {
	strip  *simStrip
	pixels []byte
	scale  core.RGB
	start  time.Time

	shown  []byte
	frame  sim.Frame
	err    error
	frames int

	img  *ebiten.Image
	rgba []byte
}

func (g *game) Update() error {
	t := time.Since(g.start)
	n := len(g.pixels) / 3
	offset := int(t.Milliseconds() / 8)
	for i := 0; i < n; i++ {
		c := hue(uint8(offset + i*256/n))
		g.pixels[i*3], g.pixels[i*3+1], g.pixels[i*3+2] = c.R, c.G, c.B
	}
	g.shown, g.frame, g.err = g.strip.show(g.pixels, g.scale)
	g.frames++
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	n := len(g.pixels) / 3
	if g.img == nil {
		g.img = ebiten.NewImage(n, 1)
		g.rgba = make([]byte, n*4)
	}
	for i := 0; i < n && i*3+2 < len(g.shown); i++ {
		g.rgba[i*4] = g.shown[i*3]
		g.rgba[i*4+1] = g.shown[i*3+1]
		g.rgba[i*4+2] = g.shown[i*3+2]
		g.rgba[i*4+3] = 0xFF
	}
	g.img.WritePixels(g.rgba)

	w := screen.Bounds().Dx()
	cell := float64(w) / float64(n)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(cell, cell)
	op.GeoM.Translate(0, 32)
	screen.DrawImage(g.img, op)

	status := fmt.Sprintf("frame %d  %d bits  %d ticks/bit", g.frames, len(g.frame.Pulses), g.strip.ctrl.Ticks().Period())
	if g.err != nil {
		status = "error: " + g.err.Error()
	}
	ebitenutil.DebugPrint(screen, status)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// hue maps 0..255 around the colour wheel at full saturation.
func hue(h uint8) core.RGB {
	region := h / 43
	rem := (h - region*43) * 6
	up, down := rem, 255-rem
	switch region {
	case 0:
		return core.RGB{R: 255, G: up}
	case 1:
		return core.RGB{R: down, G: 255}
	case 2:
		return core.RGB{G: 255, B: up}
	case 3:
		return core.RGB{G: down, B: 255}
	case 4:
		return core.RGB{R: up, B: 255}
	default:
		return core.RGB{R: 255, B: down}
	}
}
