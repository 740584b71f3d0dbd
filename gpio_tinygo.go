//go:build tinygo

package softuart

import "machine"

// GPIO adapts a machine.Pin to OutputPin and InputPin.
type GPIO machine.Pin

// NewGPIOTx configures pin as an output idling high.
func NewGPIOTx(pin machine.Pin) GPIO {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.High()
	return GPIO(pin)
}

// NewGPIORx configures pin as an input. The pull-up keeps a disconnected
// line at the idle level so it does not raise spurious start edges.
func NewGPIORx(pin machine.Pin) GPIO {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return GPIO(pin)
}

func (g GPIO) Set(high bool) {
	machine.Pin(g).Set(high)
}

func (g GPIO) Get() bool {
	return machine.Pin(g).Get()
}

func (g GPIO) SetFallingInterrupt(handler func()) error {
	if handler == nil {
		return machine.Pin(g).SetInterrupt(machine.PinFalling, nil)
	}
	return machine.Pin(g).SetInterrupt(machine.PinFalling, func(machine.Pin) {
		handler()
	})
}
