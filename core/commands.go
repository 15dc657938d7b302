package core

import (
	"errors"
	"sync/atomic"

	"gopixel/protocol"
)

// FirmwareState is the Klipper configuration and shutdown state.
type FirmwareState struct {
	configCRC  atomic.Uint32
	isShutdown atomic.Bool
	moveCount  uint16
}

var globalState = &FirmwareState{moveCount: 16}

// ResponseSender frames MCU to host messages; *protocol.Transport is one.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

var (
	globalTransport    ResponseSender
	globalResetHandler func()
	resetPending       atomic.Bool
	shutdownHooks      []func()
	resetHooks         []func()
)

// InitCoreCommands registers the protocol level commands. Klipper's
// bootstrap dictionary hardcodes identify_response as id 0 and identify as
// id 1, so they must be registered first.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("config_reset", "", handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)
	RegisterCommand("set_debug", "enable=%c", handleSetDebug)
	RegisterCommand("dump_frames", "", handleDumpFrames)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")

	RegisterConstant("CLOCK_FREQ", uint32(ClockFreq))
	RegisterConstant("STATS_SUMSQ_BASE", uint32(256))
}

func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(*[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

func handleGetClock(*[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetConfig(*[]byte) error {
	crc := globalState.configCRC.Load()
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(crc != 0))
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, boolArg(globalState.isShutdown.Load()))
		protocol.EncodeVLQUint(output, uint32(globalState.moveCount))
	})
	return nil
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// handleConfigReset drops the configuration. Strips are only released when
// not shut down, as in Klipper where config_reset follows a clean restart.
func handleConfigReset(*[]byte) error {
	if IsShutdown() {
		return errors.New("config_reset while shut down")
	}
	globalState.configCRC.Store(0)
	resetStrips()
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	globalState.configCRC.Store(crc)
	return nil
}

// handleAllocateOids accepts any count; strips are kept in a map.
func handleAllocateOids(data *[]byte) error {
	_, err := protocol.DecodeVLQUint(data)
	return err
}

func handleEmergencyStop(*[]byte) error {
	TryShutdown("emergency stop")
	return nil
}

func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

func handleDumpFrames(*[]byte) error {
	DumpFrameRing()
	return nil
}

// RegisterShutdownHook adds a function run once when the firmware shuts
// down. Hooks run in registration order.
func RegisterShutdownHook(fn func()) {
	shutdownHooks = append(shutdownHooks, fn)
}

// TryShutdown enters the shutdown state and runs the hooks. Later calls do
// nothing until ResetFirmwareState.
func TryShutdown(reason string) {
	if globalState.isShutdown.Swap(true) {
		return
	}
	DebugPrintln("[shutdown] " + reason)
	for _, fn := range shutdownHooks {
		fn()
	}
}

func IsShutdown() bool {
	return globalState.isShutdown.Load()
}

// RegisterResetHook adds a function run by ResetFirmwareState. Subsystems
// release their configured objects here; a cleared CRC means none remain.
func RegisterResetHook(fn func()) {
	resetHooks = append(resetHooks, fn)
}

// ResetFirmwareState clears the configuration and shutdown flag on host
// reconnect, releasing every configured object.
func ResetFirmwareState() {
	for _, fn := range resetHooks {
		fn()
	}
	globalState.configCRC.Store(0)
	globalState.isShutdown.Store(false)
}

// SendResponse frames a registered response on the global transport.
// Unregistered names panic; every response is declared at init.
func SendResponse(name string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("response not registered: " + name)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

func SetGlobalTransport(transport ResponseSender) {
	globalTransport = transport
}

// SetResetHandler sets the platform reset, typically a watchdog reset.
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset defers the reset so the ACK goes out first.
func handleReset(*[]byte) error {
	resetPending.Store(true)
	return nil
}

// CheckPendingReset runs the reset handler once a reset was requested. The
// main loop calls it after flushing output.
func CheckPendingReset() {
	if resetPending.Load() && globalResetHandler != nil {
		globalResetHandler()
	}
}
