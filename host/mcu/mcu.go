package mcu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gopixel/host/serial"
	"gopixel/protocol"
)

var (
	ErrNotConnected   = errors.New("not connected to MCU")
	ErrNoDictionary   = errors.New("dictionary not loaded")
	ErrUnknownMessage = errors.New("unknown message")
)

const (
	identifyChunk          = 40
	DefaultResponseTimeout = time.Second
)

// MCU is a connection to one gopixel firmware.
type MCU struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser

	mu      sync.RWMutex
	dict    *Dictionary
	rawDict []byte

	out             io.Writer
	verbose         bool
	responseTimeout time.Duration
}

func NewMCU() *MCU {
	return &MCU{
		dict:            bootstrapDictionary(),
		out:             io.Discard,
		responseTimeout: DefaultResponseTimeout,
	}
}

// SetOutput directs progress messages, and every decoded response when
// verbose, to w.
func (m *MCU) SetOutput(w io.Writer, verbose bool) {
	m.out = w
	m.verbose = verbose
}

func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("flush %s: %w", cfg.Device, err)
	}
	m.Attach(port)
	// A freshly enumerated USB CDC device drops the first bytes.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach runs the protocol over an already open stream.
func (m *MCU) Attach(port io.ReadWriteCloser) {
	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(m.handleResponse)
}

func (m *MCU) Close() error {
	if m.transport == nil {
		return nil
	}
	err := m.transport.Close()
	m.transport = nil
	return err
}

func (m *MCU) IsConnected() bool {
	return m.transport != nil
}

// handleResponse consumes one message's arguments so several messages in a
// block split correctly.
func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	m.mu.RLock()
	f, ok := m.dict.Response(cmdID)
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownMessage, cmdID)
	}
	params, err := f.Decode(data)
	if err != nil {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.out, "<- %s\n", f.String(params))
	}
	return nil
}

// RetrieveDictionary fetches the dictionary with identify and replaces the
// bootstrap one.
func (m *MCU) RetrieveDictionary() error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	fmt.Fprintln(m.out, "Retrieving dictionary from MCU...")

	var buf bytes.Buffer
	for {
		offset := uint32(buf.Len())
		resp, err := m.Query("identify", "identify_response", offset, identifyChunk)
		if err != nil {
			return fmt.Errorf("dictionary chunk at %d: %w", offset, err)
		}
		if got := resp.Uint("offset"); got != offset {
			return fmt.Errorf("dictionary chunk offset %d, want %d", got, offset)
		}
		chunk := resp.Bytes("data")
		buf.Write(chunk)
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(buf.Bytes())
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Dictionary retrieved: %d bytes, %d commands, %d responses\n",
		buf.Len(), len(dict.Commands), len(dict.Responses))

	m.mu.Lock()
	m.dict = dict
	m.rawDict = buf.Bytes()
	m.mu.Unlock()
	return nil
}

func (m *MCU) GetDictionary() *Dictionary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dict
}

// GetDictionaryRaw returns the dictionary as fetched, still compressed.
func (m *MCU) GetDictionaryRaw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rawDict
}

func (m *MCU) lookupCommand(name string) (*MessageFormat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.dict.Command(name)
	if !ok {
		return nil, fmt.Errorf("%w: command %s", ErrUnknownMessage, name)
	}
	return f, nil
}

// SendCommand encodes args by the command's dictionary format and waits for
// the ACK.
func (m *MCU) SendCommand(name string, args ...any) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	f, err := m.lookupCommand(name)
	if err != nil {
		return err
	}
	// Encode first so a bad argument never puts a partial block on the wire.
	scratch := protocol.NewScratchOutput()
	if err := f.Encode(scratch, args...); err != nil {
		return err
	}
	body := scratch.Result()
	err = m.transport.SendCommand(f.ID, func(output protocol.OutputBuffer) {
		output.Output(body)
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

// Query sends a command and returns the next response named response.
func (m *MCU) Query(command, response string, args ...any) (Params, error) {
	m.mu.RLock()
	rf, ok := m.dict.ResponseByName(response)
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: response %s", ErrUnknownMessage, response)
	}
	if err := m.SendCommand(command, args...); err != nil {
		return nil, err
	}
	resp, err := m.transport.WaitResponse(rf.ID, m.responseTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", response, err)
	}
	data := resp.Args
	return rf.Decode(&data)
}

// PrintDictionary writes a summary of the dictionary to w.
func (m *MCU) PrintDictionary(w io.Writer) {
	d := m.GetDictionary()
	if d == nil || d.Version == "" {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}
	fmt.Fprintln(w, "=== MCU Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %v\n", k, d.Config[k])
	}
	fmt.Fprintf(w, "\nCommands (%d):\n", len(d.Commands))
	for _, msg := range sortedByID(d.Commands) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Commands[msg], msg)
	}
	fmt.Fprintf(w, "\nResponses (%d):\n", len(d.Responses))
	for _, msg := range sortedByID(d.Responses) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Responses[msg], msg)
	}
	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		for _, name := range sortedKeys(d.Enumerations) {
			fmt.Fprintf(w, "  %s: %v\n", name, d.EnumNames(name))
		}
	}
}
