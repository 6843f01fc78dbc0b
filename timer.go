package stm32f4hal

import (
	"fmt"
	"time"
)

// TimerEvent is a timer interrupt source.
type TimerEvent byte

const (
	// TimerEventTimeout fires when the countdown expires.
	TimerEventTimeout TimerEvent = iota
)

// TIM register bits.
const (
	_TIM_CR1_CEN  = 1 << 0
	_TIM_CR1_URS  = 1 << 2
	_TIM_SR_UIF   = 1 << 0
	_TIM_DIER_UIE = 1 << 0
	_TIM_EGR_UG   = 1 << 0
)

const errTimerUseAfterRelease = "stm32f4hal: use of released timer driver"

// CountDown is a count-down timer over one general-purpose timer peripheral,
// ticking at a fixed frequency chosen at construction. The prescaler is
// computed and committed once; the auto-reload value is recomputed on every
// Start.
//
// General-purpose timers auto-reload in hardware, so the countdown is
// periodic: after one expiry the next period is already running.
type CountDown struct {
	tim      TimerInstance
	freq     Hertz
	released bool
}

// NewCountDown enables and resets the timer peripheral and programs its
// prescaler for the requested tick frequency. Returns ErrOutOfRange if the
// computed prescaler does not fit the 16-bit prescaler register; the caller
// picks a tick frequency compatible with the bus clock.
func NewCountDown(tim TimerInstance, tick Hertz, clk *Clocks) (*CountDown, error) {
	if tim == nil {
		return nil, fmt.Errorf("timer instance not configured")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock configuration not provided")
	}
	if tick == 0 {
		return nil, fmt.Errorf("tick frequency must be non-zero")
	}

	tim.EnableClock()
	tim.Reset()

	psc := uint32(tim.BusFrequency(clk))/uint32(tick) - 1
	if psc > 0xFFFF {
		return nil, ErrOutOfRange
	}
	tim.PSC().Set(psc)

	globalLogger.Info("countdown timer initialized")
	return &CountDown{tim: tim, freq: tick}, nil
}

// NewCountDownUs is NewCountDown with a 1 MHz tick.
func NewCountDownUs(tim TimerInstance, clk *Clocks) (*CountDown, error) {
	return NewCountDown(tim, MHz(1), clk)
}

// NewCountDownMs is NewCountDown with a 1 kHz tick. Do not use this when the
// timer kernel clock is above 65 MHz; the prescaler would not fit.
func NewCountDownMs(tim TimerInstance, clk *Clocks) (*CountDown, error) {
	return NewCountDown(tim, KHz(1), clk)
}

func (c *CountDown) check() {
	if c.released {
		panic(errTimerUseAfterRelease)
	}
}

// Periodic reports whether the countdown restarts itself in hardware after
// each expiry. Always true for general-purpose timers.
func (c *CountDown) Periodic() bool { return true }

// Frequency returns the configured tick frequency.
func (c *CountDown) Frequency() Hertz {
	return c.freq
}

// Start arms a new countdown of the given duration. The counter is stopped
// and zeroed before the reload value changes, and an update event latches
// the new value immediately instead of waiting for natural rollover.
// Returns ErrOutOfRange if the duration does not fit the reload register.
func (c *CountDown) Start(d time.Duration) error {
	c.check()

	ticks := uint64(d) * uint64(c.freq) / uint64(time.Second)
	if ticks == 0 {
		return ErrOutOfRange
	}
	reload := ticks - 1
	if reload > uint64(c.tim.MaxReload()) {
		return ErrOutOfRange
	}

	c.tim.CR1().ClearBits(_TIM_CR1_CEN)
	c.tim.CNT().Set(0)
	c.tim.ARR().Set(uint32(reload))

	// Latch PSC/ARR via an update event. URS keeps the software-generated
	// update from raising the update flag itself.
	c.tim.CR1().SetBits(_TIM_CR1_URS)
	c.tim.EGR().SetBits(_TIM_EGR_UG)
	c.tim.CR1().ClearBits(_TIM_CR1_URS)

	c.tim.CR1().SetBits(_TIM_CR1_CEN)
	return nil
}

// Wait polls the countdown. It returns ErrWouldBlock while the period is
// still running, and nil exactly once per expiry: the update flag is cleared
// here so the next call reports ErrWouldBlock for the following period.
func (c *CountDown) Wait() error {
	c.check()
	if !c.tim.SR().HasBits(_TIM_SR_UIF) {
		return ErrWouldBlock
	}
	c.tim.SR().ClearBits(_TIM_SR_UIF)
	return nil
}

// Cancel stops a running countdown. Returns ErrDisabled if the counter is
// already stopped. Pending flags are left untouched.
func (c *CountDown) Cancel() error {
	c.check()
	if !c.tim.CR1().HasBits(_TIM_CR1_CEN) {
		return ErrDisabled
	}
	c.tim.CR1().ClearBits(_TIM_CR1_CEN)
	return nil
}

// Listen enables the interrupt for the given event. The corresponding NVIC
// line still has to be enabled separately.
func (c *CountDown) Listen(event TimerEvent) {
	c.check()
	if event == TimerEventTimeout {
		c.tim.DIER().SetBits(_TIM_DIER_UIE)
	}
}

// Unlisten disables the interrupt for the given event.
func (c *CountDown) Unlisten(event TimerEvent) {
	c.check()
	if event == TimerEventTimeout {
		c.tim.DIER().ClearBits(_TIM_DIER_UIE)
	}
}

// ClearInterrupt clears the flag associated with the event. An interrupt
// handler that does not clear it retriggers immediately on return.
func (c *CountDown) ClearInterrupt(event TimerEvent) {
	c.check()
	if event == TimerEventTimeout {
		c.tim.SR().ClearBits(_TIM_SR_UIF)
	}
}

// Release stops the counter and returns the bare peripheral handle,
// relinquishing the derived configuration. The driver must not be used
// afterwards.
func (c *CountDown) Release() TimerInstance {
	c.check()
	c.tim.CR1().ClearBits(_TIM_CR1_CEN)
	tim := c.tim
	c.released = true
	c.tim = nil
	globalLogger.Info("countdown timer released")
	return tim
}
