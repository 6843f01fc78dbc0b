package stm32f4hal

import "strconv"

// Hertz is a frequency in Hz.
type Hertz uint32

// KHz returns n kilohertz.
func KHz(n uint32) Hertz { return Hertz(n * 1_000) }

// MHz returns n megahertz.
func MHz(n uint32) Hertz { return Hertz(n * 1_000_000) }

func (h Hertz) String() string {
	switch {
	case h >= 1_000_000 && h%1_000_000 == 0:
		return strconv.FormatUint(uint64(h)/1_000_000, 10) + "MHz"
	case h >= 1_000 && h%1_000 == 0:
		return strconv.FormatUint(uint64(h)/1_000, 10) + "kHz"
	default:
		return strconv.FormatUint(uint64(h), 10) + "Hz"
	}
}

// Clocks is the frozen clock configuration, built once at boot and passed by
// reference to every driver constructor. Peripheral instances pick their own
// bus frequency out of it.
type Clocks struct {
	// HCLK is the AHB clock.
	HCLK Hertz
	// PCLK1 is the APB1 peripheral clock.
	PCLK1 Hertz
	// PCLK2 is the APB2 peripheral clock.
	PCLK2 Hertz
}

// TimerFrequency returns the timer kernel clock for a timer hanging off the
// bus with peripheral clock pclk. Timers run at twice the APB clock whenever
// the APB prescaler is not 1 (i.e. PCLK != HCLK).
func (c *Clocks) TimerFrequency(pclk Hertz) Hertz {
	if pclk != c.HCLK {
		return pclk * 2
	}
	return pclk
}
