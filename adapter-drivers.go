package stm32f4hal

import (
	"fmt"

	"tinygo.org/x/drivers"
)

// Bus adapts a full-duplex master driver to the tinygo.org/x/drivers SPI
// contract, so the sensor and display drivers from that repository run on
// this HAL.
type Bus struct {
	spi *Spi
}

var _ drivers.SPI = (*Bus)(nil)

// NewBus wraps s. Only Normal-mode master drivers qualify.
func NewBus(s *Spi) (*Bus, error) {
	if s.TransferMode() != TransferModeNormal || s.Operation() != Master {
		return nil, fmt.Errorf("drivers bus requires a Normal-mode master, got %s %s",
			s.TransferMode(), s.Operation())
	}
	return &Bus{spi: s}, nil
}

// Transfer clocks one byte out and returns the byte clocked in.
func (b *Bus) Transfer(w byte) (byte, error) {
	buf := [1]byte{w}
	if err := b.spi.Transfer(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Tx clocks w out while reading into r. With both buffers set they must be
// the same length; a nil r discards the received bytes, a nil w transmits
// zeroes.
func (b *Bus) Tx(w, r []byte) error {
	switch {
	case len(w) == 0 && len(r) == 0:
		return nil
	case len(w) == 0:
		for i := range r {
			r[i] = 0
		}
		return b.spi.Transfer(r)
	case len(r) == 0:
		return b.spi.Write(w)
	case len(w) != len(r):
		return fmt.Errorf("tx and rx buffers must be the same length, got %d and %d", len(w), len(r))
	default:
		copy(r, w)
		return b.spi.Transfer(r)
	}
}
