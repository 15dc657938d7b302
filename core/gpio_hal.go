package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// FastPort is a whole output register. Writers compute complete port values
// up front so each edge is a single store.
type FastPort interface {
	Get() uint32
	Set(value uint32)
}

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output driven low
	ConfigureOutput(pin GPIOPin) error

	// FastPort returns the output register holding pin and the pin's bit
	// within it.
	FastPort(pin GPIOPin) (FastPort, uint32, error)
}

var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
