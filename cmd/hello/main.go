//go:build rp2040

// hello sends "Hello\r\n" once a second on GP0 with the bit-banged UART.
package main

import (
	"machine"
	"time"

	"github.com/sparques/softuart"
)

const txPin = machine.GP0

func main() {
	u, err := softuart.New(softuart.Config{
		Baud:  softuart.DefaultBaud,
		TX:    softuart.NewGPIOTx(txPin),
		Clock: softuart.NewTimerClock(),
	})
	if err != nil {
		panic(err.Error())
	}
	if err := u.Start(); err != nil {
		panic(err.Error())
	}

	msg := []byte("Hello\r\n")
	for {
		u.Write(msg)
		time.Sleep(time.Second)
	}
}
