package stm32f4hal

import (
	"fmt"
	"io"
)

// Polarity is the clock idle level.
type Polarity byte

const (
	// IdleLow keeps the clock signal low when idle.
	IdleLow Polarity = iota
	// IdleHigh keeps the clock signal high when idle.
	IdleHigh
)

func (p Polarity) String() string {
	if p == IdleHigh {
		return "IdleHigh"
	}
	return "IdleLow"
}

// Phase selects the clock transition on which data is captured.
type Phase byte

const (
	// CaptureOnFirstTransition samples data on the first clock edge.
	CaptureOnFirstTransition Phase = iota
	// CaptureOnSecondTransition samples data on the second clock edge.
	CaptureOnSecondTransition
)

func (p Phase) String() string {
	if p == CaptureOnSecondTransition {
		return "CaptureOnSecondTransition"
	}
	return "CaptureOnFirstTransition"
}

// Mode is an SPI clock polarity/phase pair. Immutable once handed to a
// constructor.
type Mode struct {
	Polarity Polarity
	Phase    Phase
}

// The four conventional SPI modes. CPOL is the high bit of the mode number,
// CPHA the low bit.
var (
	Mode0 = Mode{IdleLow, CaptureOnFirstTransition}
	Mode1 = Mode{IdleLow, CaptureOnSecondTransition}
	Mode2 = Mode{IdleHigh, CaptureOnFirstTransition}
	Mode3 = Mode{IdleHigh, CaptureOnSecondTransition}
)

// TransferMode says whether RX and TX use independent lines or share one.
type TransferMode byte

const (
	// TransferModeNormal uses independent RX and TX lines (full-duplex).
	TransferModeNormal TransferMode = iota
	// TransferModeBidi uses the TX line for both directions, switched
	// under software control (half-duplex).
	TransferModeBidi
)

func (m TransferMode) String() string {
	if m == TransferModeBidi {
		return "Bidi"
	}
	return "Normal"
}

// Operation is the clock generation role.
type Operation byte

const (
	// Master generates the bus clock.
	Master Operation = iota
	// Slave receives the bus clock.
	Slave
)

func (o Operation) String() string {
	if o == Slave {
		return "Slave"
	}
	return "Master"
}

// Event is an SPI interrupt source.
type Event byte

const (
	// EventDataReceived fires when new data can be read (RXNE).
	EventDataReceived Event = iota
	// EventTransmitReady fires when new data can be written (TXE).
	EventTransmitReady
	// EventError fires on overrun, mode fault or CRC error.
	EventError
)

// SPI_CR1 bits.
const (
	_SPI_CR1_CPHA     = 1 << 0
	_SPI_CR1_CPOL     = 1 << 1
	_SPI_CR1_MSTR     = 1 << 2
	_SPI_CR1_BR_SHIFT = 3
	_SPI_CR1_BR_MASK  = 0b111 << _SPI_CR1_BR_SHIFT
	_SPI_CR1_SPE      = 1 << 6
	_SPI_CR1_LSBFIRST = 1 << 7
	_SPI_CR1_SSI      = 1 << 8
	_SPI_CR1_SSM      = 1 << 9
	_SPI_CR1_RXONLY   = 1 << 10
	_SPI_CR1_DFF      = 1 << 11
	_SPI_CR1_BIDIOE   = 1 << 14
	_SPI_CR1_BIDIMODE = 1 << 15
)

// SPI_CR2 bits.
const (
	_SPI_CR2_RXDMAEN = 1 << 0
	_SPI_CR2_TXDMAEN = 1 << 1
	_SPI_CR2_SSOE    = 1 << 2
	_SPI_CR2_ERRIE   = 1 << 5
	_SPI_CR2_RXNEIE  = 1 << 6
	_SPI_CR2_TXEIE   = 1 << 7
)

// SPI_SR bits.
const (
	_SPI_SR_RXNE   = 1 << 0
	_SPI_SR_TXE    = 1 << 1
	_SPI_SR_CRCERR = 1 << 4
	_SPI_SR_MODF   = 1 << 5
	_SPI_SR_OVR    = 1 << 6
)

const (
	errUseAfterRelease = "stm32f4hal: use of released SPI driver"
	errBadTransition   = "stm32f4hal: illegal SPI mode transition"
)

// Spi owns one SPI peripheral instance and its pin triple. The transfer mode
// and operation role are fixed per value; the To* transition methods consume
// the receiver and return a retyped driver, so a stale configuration can
// never be used again (the old value panics on any further call).
type Spi struct {
	spi          SPIInstance
	pins         Pins
	transferMode TransferMode
	operation    Operation
	released     bool
}

// NewSPI configures a peripheral as a full-duplex master and enables it:
// peripheral clock on, peripheral reset, pins to alternate function, clock
// divider and mode bits written, bus enabled.
func NewSPI(spi SPIInstance, pins Pins, mode Mode, freq Hertz, clk *Clocks) (*Spi, error) {
	return newSpi(spi, pins, mode, freq, clk, TransferModeNormal, Master)
}

// NewSPIBidi is NewSPI for half-duplex (single data line) master operation.
func NewSPIBidi(spi SPIInstance, pins Pins, mode Mode, freq Hertz, clk *Clocks) (*Spi, error) {
	return newSpi(spi, pins, mode, freq, clk, TransferModeBidi, Master)
}

// NewSPISlave is NewSPI for full-duplex slave operation.
func NewSPISlave(spi SPIInstance, pins Pins, mode Mode, freq Hertz, clk *Clocks) (*Spi, error) {
	return newSpi(spi, pins, mode, freq, clk, TransferModeNormal, Slave)
}

// NewSPIBidiSlave is NewSPI for half-duplex slave operation.
func NewSPIBidiSlave(spi SPIInstance, pins Pins, mode Mode, freq Hertz, clk *Clocks) (*Spi, error) {
	return newSpi(spi, pins, mode, freq, clk, TransferModeBidi, Slave)
}

func newSpi(spi SPIInstance, pins Pins, mode Mode, freq Hertz, clk *Clocks,
	tm TransferMode, op Operation) (*Spi, error) {
	if spi == nil {
		return nil, fmt.Errorf("SPI instance not configured")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock configuration not provided")
	}
	if freq == 0 {
		return nil, fmt.Errorf("requested SPI frequency must be non-zero")
	}
	if pins.SCK == nil || pins.MISO == nil || pins.MOSI == nil {
		return nil, fmt.Errorf("all three SPI pins must be set (use NoPin for unused positions)")
	}

	spi.EnableClock()
	spi.Reset()
	pins.setAltMode()

	s := &Spi{
		spi:          spi,
		pins:         pins,
		transferMode: tm,
		operation:    op,
	}
	s.preInit(mode, freq, spi.BusFrequency(clk))
	s.init()

	globalLogger.Info("SPI peripheral initialized")
	return s, nil
}

// preInit writes the mode-defining control bits while the peripheral is
// still disabled.
func (s *Spi) preInit(mode Mode, freq, clock Hertz) {
	// Disable hardware slave-select output.
	s.spi.CR2().Set(0)

	cr1 := baudRate(clock, freq) << _SPI_CR1_BR_SHIFT
	if mode.Phase == CaptureOnSecondTransition {
		cr1 |= _SPI_CR1_CPHA
	}
	if mode.Polarity == IdleHigh {
		cr1 |= _SPI_CR1_CPOL
	}
	// Software slave management is always on, freeing the NSS pin; the
	// internal slave-select bit mirrors the role. MSB first, 8-bit
	// frames, full-duplex transfers (RXONLY off).
	cr1 |= _SPI_CR1_SSM
	if s.operation == Master {
		cr1 |= _SPI_CR1_MSTR | _SPI_CR1_SSI
	}
	s.spi.CR1().Set(cr1)
}

// init applies the transfer-mode bits and enables the bus.
func (s *Spi) init() {
	cr1 := s.spi.CR1()
	if s.transferMode == TransferModeBidi {
		cr1.SetBits(_SPI_CR1_BIDIMODE | _SPI_CR1_BIDIOE)
	} else {
		cr1.ClearBits(_SPI_CR1_BIDIMODE | _SPI_CR1_BIDIOE)
	}
	cr1.SetBits(_SPI_CR1_SPE)
}

// baudRate returns the BR field value: the smallest power-of-two divider
// 2^(br+1) in 2..256 such that clock/2^(br+1) does not exceed freq. The
// resulting bus never runs faster than requested. When even 256 is too
// small the field saturates at its maximum.
func baudRate(clock, freq Hertz) uint32 {
	for br := uint32(0); br < 0b111; br++ {
		div := uint64(2) << br
		if uint64(clock) <= div*uint64(freq) {
			return br
		}
	}
	return 0b111
}

func (s *Spi) check() {
	if s.released {
		panic(errUseAfterRelease)
	}
}

// consume poisons the receiver and returns a copy that carries the hardware
// ownership forward.
func (s *Spi) consume() *Spi {
	n := &Spi{
		spi:          s.spi,
		pins:         s.pins,
		transferMode: s.transferMode,
		operation:    s.operation,
	}
	s.released = true
	s.spi = nil
	return n
}

// TransferMode returns the driver's current transfer mode.
func (s *Spi) TransferMode() TransferMode { return s.transferMode }

// Operation returns the driver's clock role.
func (s *Spi) Operation() Operation { return s.operation }

// ToBidiTransferMode consumes a full-duplex driver and returns a half-duplex
// one over the same hardware. The peripheral is disabled for the rewrite and
// re-enabled at the end. Panics if the driver is already in Bidi mode.
func (s *Spi) ToBidiTransferMode() *Spi {
	s.check()
	if s.transferMode != TransferModeNormal {
		panic(errBadTransition)
	}
	n := s.consume()
	n.transferMode = TransferModeBidi
	n.Enable(false)
	n.init()
	return n
}

// ToNormalTransferMode consumes a half-duplex driver and returns a
// full-duplex one. Panics if the driver is already in Normal mode.
func (s *Spi) ToNormalTransferMode() *Spi {
	s.check()
	if s.transferMode != TransferModeBidi {
		panic(errBadTransition)
	}
	n := s.consume()
	n.transferMode = TransferModeNormal
	n.Enable(false)
	n.init()
	return n
}

// ToSlaveOperation consumes a master driver and returns a slave one. Panics
// if the driver is already a slave.
func (s *Spi) ToSlaveOperation() *Spi {
	s.check()
	if s.operation != Master {
		panic(errBadTransition)
	}
	n := s.consume()
	n.operation = Slave
	n.Enable(false)
	n.spi.CR1().ClearBits(_SPI_CR1_MSTR | _SPI_CR1_SSI)
	n.init()
	return n
}

// ToMasterOperation consumes a slave driver and returns a master one. Panics
// if the driver is already a master.
func (s *Spi) ToMasterOperation() *Spi {
	s.check()
	if s.operation != Slave {
		panic(errBadTransition)
	}
	n := s.consume()
	n.operation = Master
	n.Enable(false)
	n.spi.CR1().SetBits(_SPI_CR1_MSTR | _SPI_CR1_SSI)
	n.init()
	return n
}

// Enable turns the peripheral on or off without touching its configuration.
func (s *Spi) Enable(enable bool) {
	s.check()
	if enable {
		s.spi.CR1().SetBits(_SPI_CR1_SPE)
	} else {
		s.spi.CR1().ClearBits(_SPI_CR1_SPE)
	}
}

// Listen enables the interrupt for the given event.
func (s *Spi) Listen(event Event) {
	s.check()
	s.spi.CR2().SetBits(eventBit(event))
}

// Unlisten disables the interrupt for the given event.
func (s *Spi) Unlisten(event Event) {
	s.check()
	s.spi.CR2().ClearBits(eventBit(event))
}

func eventBit(event Event) uint32 {
	switch event {
	case EventDataReceived:
		return _SPI_CR2_RXNEIE
	case EventTransmitReady:
		return _SPI_CR2_TXEIE
	default:
		return _SPI_CR2_ERRIE
	}
}

// IsTransmitEmpty reports whether new data can be written (TXE).
func (s *Spi) IsTransmitEmpty() bool {
	s.check()
	return s.spi.SR().HasBits(_SPI_SR_TXE)
}

// IsReceiveNotEmpty reports whether new data can be read (RXNE).
func (s *Spi) IsReceiveNotEmpty() bool {
	s.check()
	return s.spi.SR().HasBits(_SPI_SR_RXNE)
}

// IsModeFault reports whether the peripheral recorded a mode fault (MODF).
func (s *Spi) IsModeFault() bool {
	s.check()
	return s.spi.SR().HasBits(_SPI_SR_MODF)
}

// IsOverrun reports whether data was received while the data register was
// still full (OVR).
func (s *Spi) IsOverrun() bool {
	s.check()
	return s.spi.SR().HasBits(_SPI_SR_OVR)
}

// Read returns one received byte, or ErrWouldBlock if nothing is ready yet.
// Hardware faults take priority over data: Overrun, then ModeFault, then
// CRC. ModeFault and CRC flags are cleared at detection like in Send; an
// overrun is drained by the next data-register read. In Bidi mode the shared
// line is first switched to receive.
func (s *Spi) Read() (byte, error) {
	s.check()
	if s.transferMode == TransferModeBidi {
		s.spi.CR1().ClearBits(_SPI_CR1_BIDIOE)
	}
	return s.checkRead()
}

func (s *Spi) checkRead() (byte, error) {
	sr := s.spi.SR().Get()
	switch {
	case sr&_SPI_SR_OVR != 0:
		// No clearing here: the next data-register read drains it.
		return 0, ErrOverrun
	case sr&_SPI_SR_MODF != 0:
		// Any CR1 write after the SR read clears MODF.
		cr1 := s.spi.CR1()
		cr1.Set(cr1.Get())
		return 0, ErrModeFault
	case sr&_SPI_SR_CRCERR != 0:
		s.spi.SR().ClearBits(_SPI_SR_CRCERR)
		return 0, ErrCRC
	case sr&_SPI_SR_RXNE != 0:
		return byte(s.spi.DR().Get()), nil
	default:
		return 0, ErrWouldBlock
	}
}

// Send writes one byte to the shift register, or returns ErrWouldBlock if
// the transmit buffer is still full. Fault flags are cleared at detection:
// Overrun by draining the data register, ModeFault by rewriting CR1, CRC by
// clearing its status bit. In Bidi mode the shared line is first switched to
// transmit.
func (s *Spi) Send(b byte) error {
	s.check()
	if s.transferMode == TransferModeBidi {
		s.spi.CR1().SetBits(_SPI_CR1_BIDIOE)
	}
	return s.checkSend(b)
}

func (s *Spi) checkSend(b byte) error {
	sr := s.spi.SR().Get()
	switch {
	case sr&_SPI_SR_OVR != 0:
		// Read the data register to clear OVR; the byte is lost.
		s.spi.DR().Get()
		return ErrOverrun
	case sr&_SPI_SR_MODF != 0:
		// Any CR1 write after the SR read clears MODF.
		cr1 := s.spi.CR1()
		cr1.Set(cr1.Get())
		return ErrModeFault
	case sr&_SPI_SR_CRCERR != 0:
		s.spi.SR().ClearBits(_SPI_SR_CRCERR)
		return ErrCRC
	case sr&_SPI_SR_TXE != 0:
		s.spi.DR().Set(uint32(b))
		return nil
	default:
		return ErrWouldBlock
	}
}

// blockSend spins on Send until it stops reporting ErrWouldBlock.
func (s *Spi) blockSend(b byte) error {
	for {
		err := s.Send(b)
		if err != ErrWouldBlock {
			return err
		}
	}
}

// blockRead spins on Read until it stops reporting ErrWouldBlock.
func (s *Spi) blockRead() (byte, error) {
	for {
		b, err := s.Read()
		if err != ErrWouldBlock {
			return b, err
		}
	}
}

// Transfer clocks buf out and overwrites it in place with the bytes received
// in lockstep, preserving length and order. Blocks by spin-polling; there is
// no cancellation once a transfer has started.
func (s *Spi) Transfer(buf []byte) error {
	s.check()
	for i := range buf {
		if err := s.blockSend(buf[i]); err != nil {
			return err
		}
		b, err := s.blockRead()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

// Write clocks buf out. In Normal mode every received byte is read and
// discarded: the shift register runs full-duplex in lockstep, so skipping
// the drain would leave a stale byte and then overrun. In Bidi mode the
// single line only drives output and there is nothing to drain.
func (s *Spi) Write(buf []byte) error {
	s.check()
	for _, b := range buf {
		if err := s.writeByte(b); err != nil {
			return err
		}
	}
	return nil
}

// WriteFrom clocks out bytes from r until io.EOF.
func (s *Spi) WriteFrom(r io.ByteReader) error {
	s.check()
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.writeByte(b); err != nil {
			return err
		}
	}
}

func (s *Spi) writeByte(b byte) error {
	if err := s.blockSend(b); err != nil {
		return err
	}
	if s.transferMode == TransferModeNormal {
		if _, err := s.blockRead(); err != nil {
			return err
		}
	}
	return nil
}

// Release restores the pins to their default function and hands the raw
// peripheral and pins back to the caller. The driver must not be used
// afterwards.
func (s *Spi) Release() (SPIInstance, Pins) {
	s.check()
	s.pins.restoreMode()
	spi, pins := s.spi, s.pins
	s.released = true
	s.spi = nil
	globalLogger.Info("SPI peripheral released")
	return spi, pins
}
