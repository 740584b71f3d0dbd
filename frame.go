package softuart

// Frame holds the line level of every bit of one character as it appears on
// the wire: index 0 is the start bit, 1..8 the data bits LSB first and 9 the
// stop bit.
type Frame [FrameBits]bool

// MarshalFrame encodes b as an 8-N-1 frame.
func MarshalFrame(b byte) Frame {
	var f Frame
	f[0] = false
	for bit := 0; bit < DataBits; bit++ {
		f[bit+1] = (b>>bit)&1 == 1
	}
	f[FrameBits-1] = true
	return f
}

// Byte decodes the data bits.
func (f Frame) Byte() byte {
	var b byte
	for bit := 0; bit < DataBits; bit++ {
		if f[bit+1] {
			b |= 1 << bit
		}
	}
	return b
}

// Valid reports whether the start bit is low and the stop bit high.
func (f Frame) Valid() bool {
	return !f[0] && f[FrameBits-1]
}
