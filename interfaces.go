package stm32f4hal

// Register is bit-level read/modify/write access to one 32-bit peripheral
// register. Memory-mapped implementations perform volatile accesses; the
// simulated implementations in sim.go model hardware side effects (flag
// clearing on data-register reads, counter advance) behind the same methods.
type Register interface {
	// Get returns the current register value.
	Get() uint32
	// Set replaces the whole register value.
	Set(v uint32)
	// SetBits sets every bit present in mask.
	SetBits(mask uint32)
	// ClearBits clears every bit present in mask.
	ClearBits(mask uint32)
	// HasBits reports whether all bits in mask are set.
	HasBits(mask uint32) bool
}

// SPIInstance is one physical SPI controller: its register block plus the
// clock-tree operations the driver needs. A register handle must be owned by
// at most one live Spi value at a time.
type SPIInstance interface {
	// CR1 is the main control register (mode, baud rate, enable).
	CR1() Register
	// CR2 is the secondary control register (interrupt and DMA enables).
	CR2() Register
	// SR is the status register.
	SR() Register
	// DR is the data register. Reading it drains the receive buffer.
	DR() Register

	// EnableClock gates the peripheral clock on.
	EnableClock()
	// Reset pulses the peripheral reset line.
	Reset()
	// BusFrequency returns the peripheral's input clock for the given
	// clock configuration.
	BusFrequency(clk *Clocks) Hertz
}

// TimerInstance is one general-purpose timer peripheral.
type TimerInstance interface {
	// CR1 is the control register (counter enable, URS).
	CR1() Register
	// SR is the status register (update flag).
	SR() Register
	// DIER is the interrupt enable register.
	DIER() Register
	// EGR is the event generation register (update trigger).
	EGR() Register
	// CNT is the counter.
	CNT() Register
	// PSC is the 16-bit prescaler.
	PSC() Register
	// ARR is the auto-reload register.
	ARR() Register

	// MaxReload returns the largest value ARR can hold (0xFFFF for the
	// 16-bit timers, 0xFFFFFFFF for the 32-bit ones).
	MaxReload() uint32

	EnableClock()
	Reset()
	BusFrequency(clk *Clocks) Hertz
}

// SysTickInstance is the Cortex-M system tick timer: a free-running 24-bit
// down-counter with no prescaler.
type SysTickInstance interface {
	// CSR is the control and status register. Reading it clears the
	// COUNTFLAG bit.
	CSR() Register
	// RVR is the 24-bit reload value register.
	RVR() Register
	// CVR is the current value register. Any write clears it to zero.
	CVR() Register
}

// AltPin is a GPIO pin that can be routed to a peripheral's alternate
// function. The pin knows its own function number; the driver only switches
// it over and back.
type AltPin interface {
	// SetAltMode connects the pin to the peripheral.
	SetAltMode()
	// RestoreMode returns the pin to its default function.
	RestoreMode()
}

// NoPin is a placeholder for an unused pin position, e.g. MISO on a
// transmit-only bidirectional link.
type NoPin struct{}

func (NoPin) SetAltMode()  {}
func (NoPin) RestoreMode() {}

// Pins is the SCK/MISO/MOSI triple owned by an SPI driver across its
// lifetime.
type Pins struct {
	SCK  AltPin
	MISO AltPin
	MOSI AltPin
}

func (p *Pins) setAltMode() {
	p.SCK.SetAltMode()
	p.MISO.SetAltMode()
	p.MOSI.SetAltMode()
}

func (p *Pins) restoreMode() {
	p.SCK.RestoreMode()
	p.MISO.RestoreMode()
	p.MOSI.RestoreMode()
}
