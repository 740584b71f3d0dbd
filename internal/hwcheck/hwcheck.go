// Package hwcheck verifies a board running the softuart echo firmware from
// the host side of a serial link.
package hwcheck

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Mismatch is a byte that came back different.
type Mismatch struct {
	Offset int
	Sent   byte
	Got    byte
}

// Report is the outcome of a RoundTrip.
type Report struct {
	Sent        int
	Received    int
	Mismatches  []Mismatch
	SentCRC     uint16
	ReceivedCRC uint16
	Elapsed     time.Duration
}

// OK reports whether every byte came back unchanged.
func (r *Report) OK() bool {
	return r.Sent == r.Received && len(r.Mismatches) == 0
}

func (r *Report) String() string {
	status := "ok"
	if !r.OK() {
		status = "FAIL"
	}
	return fmt.Sprintf("%s: sent %d received %d mismatches %d crc %04x/%04x in %v",
		status, r.Sent, r.Received, len(r.Mismatches), r.SentCRC, r.ReceivedCRC, r.Elapsed)
}

// Sweep returns every byte value once, in order.
func Sweep() []byte {
	p := make([]byte, 256)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

// RoundTrip writes payload to rw and reads back until as many bytes have
// arrived or timeout passes without progress. Reads that return no data or
// time out, as serial ports configured with a read timeout do, are retried.
func RoundTrip(rw io.ReadWriter, payload []byte, timeout time.Duration) (*Report, error) {
	start := time.Now()
	r := &Report{Sent: len(payload), SentCRC: crc16.Checksum(payload, crcTable)}

	if _, err := rw.Write(payload); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}

	got := make([]byte, 0, len(payload))
	buf := make([]byte, 64)
	deadline := time.Now().Add(timeout)
	for len(got) < len(payload) && time.Now().Before(deadline) {
		n, err := rw.Read(buf[:min(len(buf), len(payload)-len(got))])
		if n > 0 {
			got = append(got, buf[:n]...)
			deadline = time.Now().Add(timeout)
		}
		if err != nil && !errors.Is(err, io.EOF) && !os.IsTimeout(err) {
			return nil, fmt.Errorf("read echo: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	r.Received = len(got)
	r.ReceivedCRC = crc16.Checksum(got, crcTable)
	for i, b := range got {
		if b != payload[i] {
			r.Mismatches = append(r.Mismatches, Mismatch{Offset: i, Sent: payload[i], Got: b})
			glog.V(2).Infof("offset %d: sent %#02x got %#02x", i, payload[i], b)
		}
	}
	r.Elapsed = time.Since(start)
	if !r.OK() {
		glog.Warningf("round trip: %v", r)
	}
	return r, nil
}
