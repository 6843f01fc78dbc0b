package stm32f4hal

import (
	"fmt"
	"time"
)

// SysTick register bits.
const (
	_SYST_CSR_ENABLE    = 1 << 0
	_SYST_CSR_TICKINT   = 1 << 1
	_SYST_CSR_CLKSOURCE = 1 << 2
	_SYST_CSR_COUNTFLAG = 1 << 16

	_SYST_RVR_MAX = 1<<24 - 1
)

// SysTickCountDown is a count-down timer over the Cortex-M system tick: a
// free-running 24-bit down-counter fed straight from the core clock, with no
// prescaler register.
//
// COUNTFLAG is cleared by the CSR read that observes it, so Wait reports
// each wrap once. The counter does reload in hardware, but the period is
// only as wide as 24 bits of core clock; calling Wait again after a nil
// result without restarting is a caller contract violation, not a
// recoverable state.
type SysTickCountDown struct {
	syst     SysTickInstance
	clk      Hertz
	released bool
}

// NewSysTickCountDown builds a countdown over the system tick, clocked from
// the core (AHB) clock.
func NewSysTickCountDown(syst SysTickInstance, clk *Clocks) (*SysTickCountDown, error) {
	if syst == nil {
		return nil, fmt.Errorf("SysTick instance not configured")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock configuration not provided")
	}
	return &SysTickCountDown{syst: syst, clk: clk.HCLK}, nil
}

func (c *SysTickCountDown) check() {
	if c.released {
		panic(errTimerUseAfterRelease)
	}
}

// Periodic reports whether Wait keeps a defined contract past one expiry.
// The 24-bit reload makes long periods impossible, so callers restart
// instead of free-running.
func (c *SysTickCountDown) Periodic() bool { return false }

// Start arms the countdown for a microsecond-resolution timeout. The reload
// value is checked against the 24-bit register width before anything is
// committed; an over-long timeout is a configuration error and fails with
// ErrOutOfRange rather than wrapping.
func (c *SysTickCountDown) Start(d time.Duration) error {
	c.check()

	mul := uint64(c.clk) / 1_000_000
	us := uint64(d / time.Microsecond)
	ticks := us * mul
	if ticks == 0 {
		return ErrOutOfRange
	}
	reload := ticks - 1
	if reload > _SYST_RVR_MAX {
		return ErrOutOfRange
	}

	c.syst.RVR().Set(uint32(reload))
	// Any write clears the current value and COUNTFLAG.
	c.syst.CVR().Set(0)
	c.syst.CSR().SetBits(_SYST_CSR_CLKSOURCE | _SYST_CSR_ENABLE)
	return nil
}

// Wait polls the countdown: ErrWouldBlock until the counter has wrapped,
// then nil. The observing read clears the wrap flag in hardware.
func (c *SysTickCountDown) Wait() error {
	c.check()
	if c.syst.CSR().HasBits(_SYST_CSR_COUNTFLAG) {
		return nil
	}
	return ErrWouldBlock
}

// Cancel stops a running countdown, or returns ErrDisabled if the counter is
// already stopped.
func (c *SysTickCountDown) Cancel() error {
	c.check()
	if !c.syst.CSR().HasBits(_SYST_CSR_ENABLE) {
		return ErrDisabled
	}
	c.syst.CSR().ClearBits(_SYST_CSR_ENABLE)
	return nil
}

// Listen enables the SysTick exception for the given event.
func (c *SysTickCountDown) Listen(event TimerEvent) {
	c.check()
	if event == TimerEventTimeout {
		c.syst.CSR().SetBits(_SYST_CSR_TICKINT)
	}
}

// Unlisten disables the SysTick exception for the given event.
func (c *SysTickCountDown) Unlisten(event TimerEvent) {
	c.check()
	if event == TimerEventTimeout {
		c.syst.CSR().ClearBits(_SYST_CSR_TICKINT)
	}
}

// Release stops the counter and returns the bare handle.
func (c *SysTickCountDown) Release() SysTickInstance {
	c.check()
	c.syst.CSR().ClearBits(_SYST_CSR_ENABLE)
	syst := c.syst
	c.released = true
	c.syst = nil
	return syst
}
