//go:build rp2040

// echo sends every byte received on GP1 straight back out of GP0. Pair it
// with the softuartsh hw.roundtrip command and a USB serial adapter.
package main

import (
	"context"
	"machine"
	"time"

	"github.com/sparques/softuart"
)

func main() {
	u, err := softuart.New(softuart.Config{
		TX:    softuart.NewGPIOTx(machine.GP0),
		RX:    softuart.NewGPIORx(machine.GP1),
		Clock: softuart.NewTimerClock(),
	})
	if err != nil {
		panic(err.Error())
	}
	if err := u.Start(); err != nil {
		panic(err.Error())
	}

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	ctx := context.Background()
	last := time.Now()
	for {
		b, err := u.ReadByteContext(ctx)
		if err != nil {
			continue
		}
		u.WriteByte(b)
		if time.Since(last) > 100*time.Millisecond {
			led.Set(!led.Get())
			last = time.Now()
		}
	}
}
