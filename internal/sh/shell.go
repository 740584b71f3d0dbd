// Package sh provides the softuart bench shell: an ishell front end over a
// simulated loopback UART, an injection probe and real serial ports.
package sh

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/tarm/serial"

	"github.com/sparques/softuart"
	"github.com/sparques/softuart/internal/hwcheck"
	"github.com/sparques/softuart/sim"
)

const shellKey = "$shell"

var (
	// flags

	evalOnly bool
	baud     = softuart.DefaultBaud
	port     = ""
	timeout  = 500 * time.Millisecond
)

func init() {
	if val := os.Getenv("SOFTUART_BAUD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			baud = n
		}
	}
	if val := os.Getenv("SOFTUART_PORT"); val != "" {
		port = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.IntVar(&baud, "baud", baud, "Baud rate of the simulated UART and of hardware checks.")
	flag.StringVar(&port, "port", port, "Serial port of a board running the echo firmware.")
	flag.DurationVar(&timeout, "timeout", timeout, "Idle timeout for hardware round trips.")
}

// Shell holds the simulated benches behind the commands.
type Shell struct {
	Interactive bool
	Port        string
	Timeout     time.Duration

	Shell *ishell.Shell
	Loop  *sim.Loopback
	Probe *sim.Probe
}

// New creates a shell with fresh benches at baud.
func New(baud int) (*Shell, error) {
	s := &Shell{
		Interactive: !evalOnly,
		Port:        port,
		Timeout:     timeout,
		Shell:       ishell.New(),
	}
	if err := s.SetBaud(baud); err != nil {
		return nil, err
	}
	s.Shell.Set(shellKey, s)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// SetBaud replaces both benches with new ones at baud.
func (s *Shell) SetBaud(baud int) error {
	loop, err := sim.NewLoopback(baud)
	if err != nil {
		return err
	}
	probe, err := sim.NewProbe(baud)
	if err != nil {
		return err
	}
	s.Loop, s.Probe = loop, probe
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("[%d] > ", baud))
	}
	glog.V(1).Infof("bench at %d baud, bit period %v", baud, loop.UART.Period())
	return nil
}

// Baud returns the benches' baud rate.
func (s *Shell) Baud() int {
	return s.Loop.UART.Baud()
}

// Send pushes p through the loopback and returns what was received.
func (s *Shell) Send(p []byte) ([]byte, error) {
	s.Loop.Wire.ResetTrace()
	return s.Loop.Send(p)
}

// Sweep round-trips every byte value and returns the ones that failed.
func (s *Shell) Sweep() ([]byte, error) {
	var bad []byte
	for b := 0; b < 256; b++ {
		got, err := s.Loop.RoundTrip(byte(b))
		if err != nil && err != sim.ErrNoFrame {
			return bad, err
		}
		if err != nil || got != byte(b) {
			glog.V(2).Infof("sweep %#02x: got %#02x err %v", b, got, err)
			bad = append(bad, byte(b))
		}
	}
	s.Loop.Wire.ResetTrace()
	return bad, nil
}

// Glitch pulls the probe line low for d.
func (s *Shell) Glitch(d time.Duration) (byte, bool) {
	return s.Probe.Glitch(d)
}

// BadStop injects b with its stop bit held low.
func (s *Shell) BadStop(b byte) (byte, bool) {
	f := softuart.MarshalFrame(b)
	f[softuart.FrameBits-1] = false
	return s.Probe.Inject(f)
}

// Inject injects a well-formed frame carrying b.
func (s *Shell) Inject(b byte) (byte, bool) {
	return s.Probe.Inject(softuart.MarshalFrame(b))
}

// HWRoundTrip opens a serial port and checks that the board echoes payload.
func (s *Shell) HWRoundTrip(name string, payload []byte) (*hwcheck.Report, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        s.Baud(),
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer p.Close()
	if err := p.Flush(); err != nil {
		return nil, fmt.Errorf("flush %s: %w", name, err)
	}
	return hwcheck.RoundTrip(p, payload, s.Timeout)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	defer glog.Flush()
	s, err := New(baud)
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
