//go:build !tinygo

// Command gopixel-sim previews a strip on the desktop. Frames are generated
// by the same clockless engine the firmware runs, against a simulated pulse
// timer, and the recorded waveform is decoded back into colours.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"gopixel/core"
)

var (
	pixels     = flag.Int("pixels", 60, "Number of pixels")
	chipset    = flag.String("chipset", "WS2812", "Timing preset")
	order      = flag.String("order", "GRB", "Colour order on the wire")
	brightness = flag.Uint("brightness", 255, "Global brightness 0-255")
	dither     = flag.Bool("dither", false, "Enable temporal dithering")
	timerFreq  = flag.Uint("freq", 125_000_000, "Simulated pulse timer frequency in Hz")
	cell       = flag.Int("cell", 12, "On-screen size of one pixel")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	timing, ok := core.PresetByName(*chipset)
	if !ok {
		return fmt.Errorf("unknown chipset %q (have %v)", *chipset, core.PresetNames())
	}
	o, ok := core.ParseColorOrder(*order)
	if !ok {
		return fmt.Errorf("unknown colour order %q", *order)
	}
	if *pixels <= 0 || *pixels*3 > core.ClocklessMaxBytes {
		return fmt.Errorf("pixels must be 1..%d", core.ClocklessMaxBytes/3)
	}

	strip, err := newSimStrip(uint32(*timerFreq), timing, o)
	if err != nil {
		return err
	}
	if *dither {
		strip.ctrl.SetDither(core.DitherBinary)
	}
	b := uint8(*brightness)
	g := &game{
		strip:  strip,
		pixels: make([]byte, *pixels*3),
		scale:  core.RGB{R: b, G: b, B: b},
		start:  time.Now(),
	}

	ebiten.SetWindowTitle(fmt.Sprintf("gopixel sim: %d x %s %s", *pixels, *chipset, *order))
	ebiten.SetWindowSize(*pixels**cell, *cell+32)
	ebiten.SetTPS(30)
	return ebiten.RunGame(g)
}
