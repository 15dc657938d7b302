//go:build rp2040

package main

import (
	"machine"
	"time"

	"gopixel/core"
	"gopixel/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	link         hostLink

	gpioDriver *RPGPIODriver
	pulseTimer *pwmTimer

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32

	linkWasDisconnected      bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear any watchdog state left from a reset request.
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	mode := GetMode()
	var err error
	if link, err = openLink(mode); err != nil {
		return
	}

	initDebugUART(mode)
	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitClocklessCommands()
	registerRP2040Pins()

	gpioDriver = NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)
	pulseTimer = newPWMTimer(mode.TimerSlice)
	core.SetPulseTimer(pulseTimer)
	core.RegisterConstant("CLOCKLESS_TIMER_FREQ", pulseTimer.Frequency())
	registerStripBackends()

	// Every command and constant is registered; freeze the dictionary.
	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	// The host expects the ACK before any response to the same block.
	transport.SetFlushCallback(writeLink)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
			return
		}
		if err := machine.Watchdog.Start(); err != nil {
			return
		}
		for {
			time.Sleep(time.Millisecond)
		}
	})

	go linkReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				messagesReceived++
			}

			if len(outputBuffer.Result()) > 0 {
				writeLink()
				messagesSent++
			}

			// Only after the ACK for the reset command is out.
			core.CheckPendingReset()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// linkReaderLoop moves bytes from the host link into inputBuffer.
func linkReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go linkReaderLoop()
		}
	}()

	for {
		for link.Buffered() > 0 {
			b, err := link.ReadByte()
			if err != nil {
				msgerrors++
				break
			}

			// First traffic after a dead link is a new host session.
			if linkWasDisconnected {
				linkWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{b}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeLink sends outputBuffer. After repeated failures the host is taken
// as gone and stale output is dropped.
func writeLink() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := link.Write(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				linkWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
