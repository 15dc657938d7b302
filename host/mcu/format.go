package mcu

import (
	"errors"
	"fmt"
	"strings"

	"gopixel/protocol"
)

var ErrArgCount = errors.New("argument count does not match message format")

// paramKind is how one message parameter travels on the wire.
type paramKind uint8

const (
	kindUint   paramKind = iota // %u %hu %c
	kindInt                     // %i %hi
	kindBytes                   // %*s
	kindString                  // %s %.*s
)

type param struct {
	name string
	kind paramKind
}

// MessageFormat is a parsed dictionary entry such as
// "clockless_send oid=%c".
type MessageFormat struct {
	ID     uint16
	Name   string
	params []param
}

// Params holds decoded response fields keyed by parameter name. Integers are
// uint32 or int32, %*s fields are []byte and %s fields are string.
type Params map[string]any

func (p Params) Uint(name string) uint32 {
	switch v := p[name].(type) {
	case uint32:
		return v
	case int32:
		return uint32(v)
	}
	return 0
}

func (p Params) Bytes(name string) []byte {
	b, _ := p[name].([]byte)
	return b
}

func parseFormat(id uint16, msg string) (*MessageFormat, error) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return nil, errors.New("empty message format")
	}
	f := &MessageFormat{ID: id, Name: fields[0]}
	for _, field := range fields[1:] {
		name, spec, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("%s: malformed parameter %q", f.Name, field)
		}
		var kind paramKind
		switch spec {
		case "%u", "%hu", "%c":
			kind = kindUint
		case "%i", "%hi":
			kind = kindInt
		case "%*s":
			kind = kindBytes
		case "%s", "%.*s":
			kind = kindString
		default:
			return nil, fmt.Errorf("%s: unsupported parameter type %q", f.Name, spec)
		}
		f.params = append(f.params, param{name: name, kind: kind})
	}
	return f, nil
}

// Encode writes args in format order.
func (f *MessageFormat) Encode(output protocol.OutputBuffer, args ...any) error {
	if len(args) != len(f.params) {
		return fmt.Errorf("%s: %w: got %d, want %d", f.Name, ErrArgCount, len(args), len(f.params))
	}
	for i, p := range f.params {
		if err := encodeParam(output, p, args[i]); err != nil {
			return fmt.Errorf("%s %s: %w", f.Name, p.name, err)
		}
	}
	return nil
}

func encodeParam(output protocol.OutputBuffer, p param, arg any) error {
	switch p.kind {
	case kindBytes:
		b, ok := arg.([]byte)
		if !ok {
			return fmt.Errorf("want []byte, got %T", arg)
		}
		protocol.EncodeVLQBytes(output, b)
	case kindString:
		s, ok := arg.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", arg)
		}
		protocol.EncodeVLQString(output, s)
	default:
		v, err := toInt64(arg)
		if err != nil {
			return err
		}
		if p.kind == kindInt {
			protocol.EncodeVLQInt(output, int32(v))
		} else {
			protocol.EncodeVLQUint(output, uint32(v))
		}
	}
	return nil
}

func toInt64(arg any) (int64, error) {
	switch v := arg.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("want integer, got %T", arg)
}

// Decode consumes this message's parameters from *data.
func (f *MessageFormat) Decode(data *[]byte) (Params, error) {
	out := make(Params, len(f.params))
	for _, p := range f.params {
		var err error
		switch p.kind {
		case kindUint:
			out[p.name], err = protocol.DecodeVLQUint(data)
		case kindInt:
			out[p.name], err = protocol.DecodeVLQInt(data)
		case kindBytes:
			var b []byte
			b, err = protocol.DecodeVLQBytes(data)
			out[p.name] = append([]byte(nil), b...)
		case kindString:
			out[p.name], err = protocol.DecodeVLQString(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", f.Name, p.name, err)
		}
	}
	return out, nil
}

// String renders decoded params in dictionary order, for logs.
func (f *MessageFormat) String(p Params) string {
	var b strings.Builder
	b.WriteString(f.Name)
	for _, prm := range f.params {
		b.WriteByte(' ')
		b.WriteString(prm.name)
		b.WriteByte('=')
		switch v := p[prm.name].(type) {
		case []byte:
			fmt.Fprintf(&b, "%x", v)
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
