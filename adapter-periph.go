//go:build !tinygo

package stm32f4hal

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// ModeFromPeriph converts a periph.io SPI mode number to a polarity/phase
// pair. CPOL is the high bit of the mode number, CPHA the low bit.
func ModeFromPeriph(m spi.Mode) Mode {
	switch m & 0x3 {
	case spi.Mode1:
		return Mode1
	case spi.Mode2:
		return Mode2
	case spi.Mode3:
		return Mode3
	default:
		return Mode0
	}
}

// PeriphMode converts a polarity/phase pair back to a periph.io mode number.
func PeriphMode(m Mode) spi.Mode {
	var p spi.Mode
	if m.Polarity == IdleHigh {
		p |= spi.Mode2
	}
	if m.Phase == CaptureOnSecondTransition {
		p |= spi.Mode1
	}
	return p
}

// HertzFromPeriph converts a periph.io frequency to Hertz.
func HertzFromPeriph(f physic.Frequency) Hertz {
	return Hertz(f / physic.Hertz)
}

// PeriphConn adapts a full-duplex master driver to the periph.io spi.Conn
// interface, so device drivers written against periph.io run on this HAL.
type PeriphConn struct {
	spi *Spi
}

var _ spi.Conn = (*PeriphConn)(nil)

// NewPeriphConn wraps s. Only Normal-mode master drivers qualify: periph.io
// connections are full-duplex and host-clocked.
func NewPeriphConn(s *Spi) (*PeriphConn, error) {
	if s.TransferMode() != TransferModeNormal || s.Operation() != Master {
		return nil, fmt.Errorf("periph.io conn requires a Normal-mode master, got %s %s",
			s.TransferMode(), s.Operation())
	}
	return &PeriphConn{spi: s}, nil
}

func (c *PeriphConn) String() string { return "stm32f4hal" }

func (c *PeriphConn) Duplex() conn.Duplex { return conn.Full }

// Tx performs a single transaction. Either buffer may be nil; when both are
// set they must be the same length.
func (c *PeriphConn) Tx(w, r []byte) error {
	switch {
	case len(w) == 0 && len(r) == 0:
		return nil
	case len(w) == 0:
		for i := range r {
			r[i] = 0
		}
		return c.spi.Transfer(r)
	case len(r) == 0:
		return c.spi.Write(w)
	case len(w) != len(r):
		return fmt.Errorf("tx and rx buffers must be the same length, got %d and %d", len(w), len(r))
	default:
		copy(r, w)
		return c.spi.Transfer(r)
	}
}

// TxPackets performs the transactions back to back.
func (c *PeriphConn) TxPackets(p []spi.Packet) error {
	for i := range p {
		if err := c.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}
