package main

import (
	"testing"

	"gopixel/core"
)

func TestParseRGB(t *testing.T) {
	c, err := parseRGB([]string{"255", "0x10", "0"})
	if err != nil {
		t.Fatal(err)
	}
	if c != (core.RGB{R: 255, G: 16}) {
		t.Fatalf("got %+v", c)
	}
	for _, bad := range [][]string{{"1", "2"}, {"256", "0", "0"}, {"a", "b", "c"}} {
		if _, err := parseRGB(bad); err == nil {
			t.Errorf("parseRGB(%v) succeeded", bad)
		}
	}
}

func TestHueWheel(t *testing.T) {
	cases := map[uint8]core.RGB{
		0:   {R: 255},
		86:  {G: 255},
		172: {B: 255},
	}
	for h, want := range cases {
		if got := hue(h); got != want {
			t.Errorf("hue(%d) = %+v, want %+v", h, got, want)
		}
	}
}
