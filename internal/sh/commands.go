package sh

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/sparques/softuart"
	"github.com/sparques/softuart/internal/hwcheck"
)

var commands = []*ishell.Cmd{
	&BaudCmd,
	&SendCmd,
	&SweepCmd,
	&GlitchCmd,
	&InjectCmd,
	&BadStopCmd,
	&TraceCmd,
	&StatsCmd,
	&ResetCmd,
	&HWRoundTripCmd,
}

// parseByte accepts decimal, 0x hex or a single quoted character.
func parseByte(s string) (byte, error) {
	if len(s) == 3 && s[0] == '\'' && s[2] == '\'' {
		return s[1], nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid BYTE %q: %v", s, err)
	}
	return byte(v), nil
}

func printStats(c *ishell.Context, name string, st softuart.Stats) {
	c.Printf("%s: tx %d rx %d glitches %d framing %d overruns %d\n",
		name, st.TxFrames, st.RxFrames, st.RxGlitches, st.RxFramingErrors, st.RxOverruns)
}

var (
	// BaudCmd shows or changes the bench baud rate.
	BaudCmd = ishell.Cmd{
		Name: "baud",
		Help: "[BAUD]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("Invalid BAUD: %v", err))
					return
				}
				if err := s.SetBaud(n); err != nil {
					c.Err(err)
					return
				}
			}
			c.Printf("%d baud, bit period %v\n", s.Baud(), s.Loop.UART.Period())
		},
	}

	// SendCmd sends text through the loopback.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TEXT required"))
				return
			}
			got, err := ShellFrom(c).Send([]byte(strings.Join(c.Args, " ")))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%q % x\n", got, got)
		},
	}

	// SweepCmd round-trips all byte values.
	SweepCmd = ishell.Cmd{
		Name: "sweep",
		Help: "",
		Func: func(c *ishell.Context) {
			bad, err := ShellFrom(c).Sweep()
			if err != nil {
				c.Err(err)
				return
			}
			if len(bad) == 0 {
				c.Println("OK")
				return
			}
			c.Printf("%d failed: % x\n", len(bad), bad)
		},
	}

	// GlitchCmd pulls the probe line low briefly.
	GlitchCmd = ishell.Cmd{
		Name:    "glitch",
		Aliases: []string{"g"},
		Help:    "DURATION (e.g. 3us)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("DURATION required"))
				return
			}
			d, err := time.ParseDuration(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid DURATION: %v", err))
				return
			}
			s := ShellFrom(c)
			if b, ok := s.Glitch(d); ok {
				c.Printf("received %#02x\n", b)
			} else {
				c.Println("rejected")
			}
			c.Printf("receiver %v\n", s.Probe.UART.Rx.State())
		},
	}

	// InjectCmd plays a well-formed frame onto the probe line.
	InjectCmd = ishell.Cmd{
		Name: "inject",
		Help: "BYTE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("BYTE required"))
				return
			}
			v, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if b, ok := ShellFrom(c).Inject(v); ok {
				c.Printf("received %#02x\n", b)
			} else {
				c.Println("dropped")
			}
		},
	}

	// BadStopCmd plays a frame with a low stop bit onto the probe line.
	BadStopCmd = ishell.Cmd{
		Name: "badstop",
		Help: "BYTE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("BYTE required"))
				return
			}
			v, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if b, ok := ShellFrom(c).BadStop(v); ok {
				c.Printf("received %#02x\n", b)
			} else {
				c.Println("dropped")
			}
		},
	}

	// TraceCmd prints the loopback line since the last send.
	TraceCmd = ishell.Cmd{
		Name:    "trace",
		Aliases: []string{"t"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			for _, tr := range s.Loop.Wire.Trace() {
				level := "low"
				if tr.High {
					level = "high"
				}
				c.Printf("%10v %s\n", tr.At, level)
			}
			for _, f := range s.Loop.Wire.Decode(s.Loop.UART.Period()) {
				c.Printf("frame %#02x valid=%v\n", f.Byte(), f.Valid())
			}
		},
	}

	// StatsCmd prints the bench counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			printStats(c, "loopback", s.Loop.UART.Stats())
			printStats(c, "probe", s.Probe.UART.Stats())
		},
	}

	// ResetCmd rebuilds both benches.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.SetBaud(s.Baud()); err != nil {
				c.Err(err)
			}
		},
	}

	// HWRoundTripCmd checks a board running the echo firmware.
	HWRoundTripCmd = ishell.Cmd{
		Name:    "hw.roundtrip",
		Aliases: []string{"hwrt"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			name := s.Port
			if len(c.Args) > 0 {
				name = c.Args[0]
			}
			if name == "" {
				c.Err(fmt.Errorf("PORT required"))
				return
			}
			r, err := s.HWRoundTrip(name, hwcheck.Sweep())
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(r.String())
			for _, m := range r.Mismatches {
				c.Printf("  offset %d: sent %#02x got %#02x\n", m.Offset, m.Sent, m.Got)
			}
		},
	}
)
