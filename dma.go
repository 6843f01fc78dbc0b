package stm32f4hal

// UseDMA consumes the driver and returns a builder that hands the transmit
// and/or receive plumbing over to DMA. Direct blocking use of the peripheral
// ends here; the returned handles own the data-register address but not the
// control registers.
func (s *Spi) UseDMA() *DMABuilder {
	s.check()
	b := &DMABuilder{spi: s.spi}
	s.released = true
	s.spi = nil
	return b
}

// DMABuilder selects which directions are driven by DMA.
type DMABuilder struct {
	spi SPIInstance
}

// Tx enables DMA on the transmit side and returns its handle.
func (b *DMABuilder) Tx() *DMATx {
	b.spi.CR2().SetBits(_SPI_CR2_TXDMAEN)
	return &DMATx{dr: b.spi.DR()}
}

// Rx enables DMA on the receive side and returns its handle.
func (b *DMABuilder) Rx() *DMARx {
	b.spi.CR2().SetBits(_SPI_CR2_RXDMAEN)
	return &DMARx{dr: b.spi.DR()}
}

// TxRx enables DMA in both directions.
func (b *DMABuilder) TxRx() (*DMATx, *DMARx) {
	return b.Tx(), b.Rx()
}

// DMATx is the transmit half of a DMA-driven SPI. A DMA stream writes the
// peripheral's data register through it.
type DMATx struct {
	dr Register
}

// DataRegister returns the peripheral data register the stream targets.
func (t *DMATx) DataRegister() Register { return t.dr }

// DMARx is the receive half of a DMA-driven SPI.
type DMARx struct {
	dr Register
}

// DataRegister returns the peripheral data register the stream drains.
func (r *DMARx) DataRegister() Register { return r.dr }
