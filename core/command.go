package core

import (
	"errors"
	"strconv"
	"sync"
)

// CommandHandler decodes its own arguments from *data and runs the command.
type CommandHandler func(data *[]byte) error

// Command is one entry of the data dictionary. Responses (MCU to host) have
// a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "oid=%c pin=%u"
	Handler CommandHandler
}

// Message returns the dictionary key, the name followed by its format.
func (c *Command) Message() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// CommandRegistry assigns ids in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
}

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// RegisterCommand registers a host to MCU command on the global registry.
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers an MCU to host message on the global registry.
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command and returns its id. Registering a name twice
// returns the first id.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.nameToID[name] = id
	return id
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for id.
func (r *CommandRegistry) Dispatch(id uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(id)
	if !ok {
		return errors.New("unknown command id " + strconv.Itoa(int(id)))
	}
	if cmd.Handler == nil {
		return errors.New(cmd.Name + " is a response, not a command")
	}
	return cmd.Handler(data)
}

// Commands returns a snapshot in id order.
func (r *CommandRegistry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Command(nil), r.commands...)
}

// DispatchCommand dispatches on the global registry.
func DispatchCommand(id uint16, data *[]byte) error {
	return globalRegistry.Dispatch(id, data)
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
