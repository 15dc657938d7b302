package mcu

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"

	"gopixel/protocol"
)

func TestParseFormat(t *testing.T) {
	f, err := parseFormat(7, "clockless_update oid=%c pos=%hu data=%*s")
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 7 || f.Name != "clockless_update" || len(f.params) != 3 {
		t.Fatalf("parsed %+v", f)
	}
	if f.params[2].kind != kindBytes {
		t.Fatalf("data kind %d", f.params[2].kind)
	}

	for _, bad := range []string{"", "x oid", "x oid=%f"} {
		if _, err := parseFormat(0, bad); err == nil {
			t.Errorf("parseFormat(%q) succeeded", bad)
		}
	}
}

func TestFormatEncodeDecode(t *testing.T) {
	f, err := parseFormat(3, "demo a=%u b=%i c=%*s d=%s e=%c")
	if err != nil {
		t.Fatal(err)
	}
	out := protocol.NewScratchOutput()
	if err := f.Encode(out, 1000, -5, []byte{1, 2}, "hi", true); err != nil {
		t.Fatal(err)
	}
	data := out.Result()
	p, err := f.Decode(&data)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("%d bytes left over", len(data))
	}
	if p.Uint("a") != 1000 || p["b"] != int32(-5) || !bytes.Equal(p.Bytes("c"), []byte{1, 2}) ||
		p["d"] != "hi" || p.Uint("e") != 1 {
		t.Fatalf("decoded %v", p)
	}
	if got := f.String(p); got != "demo a=1000 b=-5 c=0102 d=hi e=1" {
		t.Fatalf("String = %q", got)
	}
}

func TestFormatEncodeErrors(t *testing.T) {
	f, _ := parseFormat(3, "demo a=%u c=%*s")
	out := protocol.NewScratchOutput()
	if err := f.Encode(out, 1); !errors.Is(err, ErrArgCount) {
		t.Fatalf("short args: %v", err)
	}
	if err := f.Encode(out, "x", []byte{}); err == nil {
		t.Fatal("string accepted for an integer field")
	}
	if err := f.Encode(out, 1, "x"); err == nil {
		t.Fatal("string accepted for a bytes field")
	}
}

func TestParseDictionaryPlainAndWrapped(t *testing.T) {
	raw := []byte(`{"version":"v","config":{"CLOCK_FREQ":1000000,"MCU":"rp2040"},` +
		`"commands":{"get_clock":2},"responses":{"clock clock=%u":5},` +
		`"enumerations":{"order":{"RGB":0,"GRB":2,"RBG":1}}}`)

	var wrapped bytes.Buffer
	zw := zlib.NewWriter(&wrapped)
	zw.Write(raw)
	zw.Close()

	for name, blob := range map[string][]byte{"plain": raw, "zlib": wrapped.Bytes()} {
		d, err := ParseDictionary(blob)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if f, ok := d.Command("get_clock"); !ok || f.ID != 2 {
			t.Errorf("%s: get_clock = %+v", name, f)
		}
		if f, ok := d.Response(5); !ok || f.Name != "clock" {
			t.Errorf("%s: response 5 = %+v", name, f)
		}
		if v, ok := d.ConfigUint("CLOCK_FREQ"); !ok || v != 1000000 {
			t.Errorf("%s: CLOCK_FREQ = %d", name, v)
		}
		if got := d.EnumNames("order"); len(got) != 3 || got[0] != "RGB" || got[2] != "GRB" {
			t.Errorf("%s: order = %v", name, got)
		}
	}
}
