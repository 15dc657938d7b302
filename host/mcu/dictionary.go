package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
)

// Dictionary is the parsed data dictionary the firmware serves in identify
// chunks.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]any            `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`

	commands     map[string]*MessageFormat
	responses    map[uint16]*MessageFormat
	responseName map[string]*MessageFormat
}

// identify and identify_response have fixed ids so the dictionary itself can
// be fetched.
func bootstrapDictionary() *Dictionary {
	d := &Dictionary{
		Commands:  map[string]int{"identify offset=%u count=%c": 1},
		Responses: map[string]int{"identify_response offset=%u data=%*s": 0},
	}
	if err := d.index(); err != nil {
		panic(err)
	}
	return d
}

// ParseDictionary decodes a dictionary blob. Zlib wrapped data is inflated
// first; plain JSON is accepted as is.
func ParseDictionary(data []byte) (*Dictionary, error) {
	raw, err := inflate(data)
	if err != nil {
		return nil, err
	}
	d := &Dictionary{}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("unmarshal dictionary: %w", err)
	}
	if err := d.index(); err != nil {
		return nil, err
	}
	return d, nil
}

func inflate(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate dictionary: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate dictionary: %w", err)
	}
	return raw, nil
}

func (d *Dictionary) index() error {
	d.commands = make(map[string]*MessageFormat, len(d.Commands))
	d.responses = make(map[uint16]*MessageFormat, len(d.Responses))
	d.responseName = make(map[string]*MessageFormat, len(d.Responses))
	for msg, id := range d.Commands {
		f, err := parseFormat(uint16(id), msg)
		if err != nil {
			return err
		}
		d.commands[f.Name] = f
	}
	for msg, id := range d.Responses {
		f, err := parseFormat(uint16(id), msg)
		if err != nil {
			return err
		}
		d.responses[f.ID] = f
		d.responseName[f.Name] = f
	}
	return nil
}

// Command returns the format of a host to MCU command.
func (d *Dictionary) Command(name string) (*MessageFormat, bool) {
	f, ok := d.commands[name]
	return f, ok
}

// Response returns the format of an MCU message by id.
func (d *Dictionary) Response(id uint16) (*MessageFormat, bool) {
	f, ok := d.responses[id]
	return f, ok
}

// ResponseByName returns the format of an MCU message by name.
func (d *Dictionary) ResponseByName(name string) (*MessageFormat, bool) {
	f, ok := d.responseName[name]
	return f, ok
}

// Enum returns the wire value of an enumeration entry.
func (d *Dictionary) Enum(name, value string) (int, bool) {
	v, ok := d.Enumerations[name][value]
	return v, ok
}

// EnumNames lists an enumeration's entries in wire order.
func (d *Dictionary) EnumNames(name string) []string {
	values := d.Enumerations[name]
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	slices.SortFunc(names, func(a, b string) int { return values[a] - values[b] })
	return names
}

// ConfigUint returns a numeric constant. Constants sent as strings are
// parsed.
func (d *Dictionary) ConfigUint(name string) (uint32, bool) {
	switch v := d.Config[name].(type) {
	case float64:
		return uint32(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 32)
		return uint32(n), err == nil
	}
	return 0, false
}

// ConfigString returns a constant rendered as text.
func (d *Dictionary) ConfigString(name string) string {
	switch v := d.Config[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
