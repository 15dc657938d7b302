package core

import (
	"slices"
	"strconv"
	"sync"

	"gopixel/tinycompress"
)

// Dictionary is the data dictionary the host fetches with identify. It is
// built once, after every command and constant is registered.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]any
	enumerations  map[string][]string
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]any),
		enumerations:  make(map[string][]string),
		commandReg:    cmdReg,
		version:       "gopixel-0.2.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant adds a constant to the global dictionary. Values are
// strings or integers.
func RegisterConstant(name string, value any) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration adds an enumeration whose values map to their index.
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = slices.Clone(values)
	d.cached = nil
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// BuildDictionary renders and compresses the dictionary and caches it.
func (d *Dictionary) BuildDictionary() {
	// Snapshot the registry before taking our own lock.
	cmds := d.commandReg.Commands()

	d.mu.Lock()
	defer d.mu.Unlock()
	raw := d.appendJSON(make([]byte, 0, 2048), cmds)
	d.cached = tinycompress.Compress(raw)
	DebugPrintln("[dict] " + strconv.Itoa(len(raw)) + " bytes json, " + strconv.Itoa(len(d.cached)) + " bytes wrapped")
}

// Generate returns the compressed dictionary, building it if needed.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached == nil {
		d.BuildDictionary()
		d.mu.RLock()
		cached = d.cached
		d.mu.RUnlock()
	}
	return cached
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	cmds := d.commandReg.Commands()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.appendJSON(nil, cmds)
}

func (d *Dictionary) appendJSON(b []byte, cmds []*Command) []byte {
	b = append(b, `{"version":`...)
	b = strconv.AppendQuote(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = strconv.AppendQuote(b, d.buildVersions)

	b = append(b, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendQuote(b, name)
		b = append(b, ':')
		b = appendValue(b, d.constants[name])
	}

	b = append(b, `},"commands":`...)
	b = appendMessages(b, cmds, true)
	b = append(b, `,"responses":`...)
	b = appendMessages(b, cmds, false)

	b = append(b, `,"enumerations":{`...)
	for i, name := range sortedKeys(d.enumerations) {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendQuote(b, name)
		b = append(b, ":{"...)
		first := true
		for idx, v := range d.enumerations[name] {
			if v == "" {
				continue
			}
			if !first {
				b = append(b, ',')
			}
			first = false
			b = strconv.AppendQuote(b, v)
			b = append(b, ':')
			b = strconv.AppendInt(b, int64(idx), 10)
		}
		b = append(b, '}')
	}
	return append(b, "}}"...)
}

func appendMessages(b []byte, cmds []*Command, handlers bool) []byte {
	b = append(b, '{')
	first := true
	for _, c := range cmds {
		if (c.Handler != nil) != handlers {
			continue
		}
		if !first {
			b = append(b, ',')
		}
		first = false
		b = strconv.AppendQuote(b, c.Message())
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(c.ID), 10)
	}
	return append(b, '}')
}

func appendValue(b []byte, v any) []byte {
	switch v := v.(type) {
	case string:
		return strconv.AppendQuote(b, v)
	case int:
		return strconv.AppendInt(b, int64(v), 10)
	case int32:
		return strconv.AppendInt(b, int64(v), 10)
	case int64:
		return strconv.AppendInt(b, v, 10)
	case uint8:
		return strconv.AppendUint(b, uint64(v), 10)
	case uint16:
		return strconv.AppendUint(b, uint64(v), 10)
	case uint32:
		return strconv.AppendUint(b, uint64(v), 10)
	case uint64:
		return strconv.AppendUint(b, v, 10)
	case bool:
		return strconv.AppendBool(b, v)
	default:
		return append(b, "null"...)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetChunk returns a copy of up to count bytes of the compressed dictionary
// from offset; past the end it returns an empty chunk.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := min(offset+uint32(count), uint32(len(data)))
	return slices.Clone(data[offset:end])
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
