package stm32f4hal

// Simulated peripherals backed by plain memory. They implement the same
// instance interfaces as the memory-mapped hardware and model the register
// side effects the drivers depend on: data-register reads drain flags,
// status polls advance the bus or counter by one step, flag bits latch and
// clear the way the silicon does. The drivers' blocking helpers therefore
// terminate against these models, which makes them usable both as the test
// bed for this package and as a host-side development backend.

// -----------------------------------------------------------------------------
// SPI
// -----------------------------------------------------------------------------

const (
	simSPICR1 = iota
	simSPICR2
	simSPISR
	simSPIDR
)

// SimSPI is an in-memory SPI controller. Each status-register poll advances
// the simulated bus by one step: the shift register empties (TXE) and at
// most one inbound byte lands (RXNE). A byte landing while RXNE is still
// set is lost and latches the overrun flag.
//
// In Normal mode every transmitted byte clocks one byte back in: the echo of
// the transmitted byte when loopback is on, the next queued inbound byte
// otherwise, or the idle line level 0xFF. In Bidi mode with the line turned
// around to receive, the clock free-runs and inbound bytes arrive on their
// own.
type SimSPI struct {
	regCR1, regCR2, regSR, regDR simSPIReg

	cr1, cr2, sr uint32
	dr           byte

	loopback bool
	rxQueue  []byte // bytes the remote end will send
	inFlight []byte // bytes already clocked, waiting for a bus step
	txLog    []byte

	busFreq  Hertz
	clockOn  bool
	wasReset bool
}

// NewSimSPI returns a simulated SPI controller whose bus clock runs at
// busFreq.
func NewSimSPI(busFreq Hertz) *SimSPI {
	s := &SimSPI{busFreq: busFreq, sr: _SPI_SR_TXE}
	s.regCR1 = simSPIReg{s: s, id: simSPICR1}
	s.regCR2 = simSPIReg{s: s, id: simSPICR2}
	s.regSR = simSPIReg{s: s, id: simSPISR}
	s.regDR = simSPIReg{s: s, id: simSPIDR}
	return s
}

func (s *SimSPI) CR1() Register { return &s.regCR1 }
func (s *SimSPI) CR2() Register { return &s.regCR2 }
func (s *SimSPI) SR() Register  { return &s.regSR }
func (s *SimSPI) DR() Register  { return &s.regDR }

func (s *SimSPI) EnableClock() { s.clockOn = true }

func (s *SimSPI) Reset() {
	s.cr1, s.cr2 = 0, 0
	s.sr = _SPI_SR_TXE
	s.dr = 0
	s.rxQueue = nil
	s.inFlight = nil
	s.wasReset = true
}

func (s *SimSPI) BusFrequency(*Clocks) Hertz { return s.busFreq }

// SetLoopback wires the simulated data-out line back to data-in.
func (s *SimSPI) SetLoopback(on bool) { s.loopback = on }

// EnqueueRx queues bytes the simulated remote end will send.
func (s *SimSPI) EnqueueRx(b ...byte) { s.rxQueue = append(s.rxQueue, b...) }

// Receive clocks bytes in immediately, the way a remote master drives a
// slave: they land on the next bus steps regardless of local transmits.
func (s *SimSPI) Receive(b ...byte) { s.inFlight = append(s.inFlight, b...) }

// TxBytes returns every byte transmitted so far.
func (s *SimSPI) TxBytes() []byte { return s.txLog }

// ClearTxLog drops the recorded transmit history.
func (s *SimSPI) ClearTxLog() { s.txLog = nil }

// ClockEnabled reports whether the peripheral clock was gated on.
func (s *SimSPI) ClockEnabled() bool { return s.clockOn }

// WasReset reports whether the peripheral reset line was pulsed.
func (s *SimSPI) WasReset() bool { return s.wasReset }

// InjectModeFault latches the mode-fault flag, as if the hardware detected a
// role conflict on the bus.
func (s *SimSPI) InjectModeFault() { s.sr |= _SPI_SR_MODF }

// InjectCRCError latches the CRC-error flag.
func (s *SimSPI) InjectCRCError() { s.sr |= _SPI_SR_CRCERR }

// InjectOverrun latches the overrun flag directly.
func (s *SimSPI) InjectOverrun() { s.sr |= _SPI_SR_OVR }

func (s *SimSPI) enabled() bool { return s.cr1&_SPI_CR1_SPE != 0 }

// bidiReceiving reports whether the single line is currently turned around
// to receive.
func (s *SimSPI) bidiReceiving() bool {
	return s.cr1&_SPI_CR1_BIDIMODE != 0 && s.cr1&_SPI_CR1_BIDIOE == 0
}

// step advances the simulated bus: runs once per status poll.
func (s *SimSPI) step() {
	if !s.enabled() {
		return
	}
	// The shift register empties one byte per step.
	s.sr |= _SPI_SR_TXE

	// With the bidi line in receive direction the master clock free-runs
	// and data arrives without a transmit.
	if s.bidiReceiving() && len(s.inFlight) == 0 {
		s.inFlight = append(s.inFlight, s.nextInbound(0))
	}

	if len(s.inFlight) == 0 {
		return
	}
	b := s.inFlight[0]
	s.inFlight = s.inFlight[1:]
	if s.sr&_SPI_SR_RXNE != 0 {
		// Data register still full: the new byte is lost.
		s.sr |= _SPI_SR_OVR
		return
	}
	s.dr = b
	s.sr |= _SPI_SR_RXNE
}

func (s *SimSPI) nextInbound(tx byte) byte {
	if s.loopback {
		return tx
	}
	if len(s.rxQueue) > 0 {
		b := s.rxQueue[0]
		s.rxQueue = s.rxQueue[1:]
		return b
	}
	return 0xFF // idle line level
}

func (s *SimSPI) get(id int) uint32 {
	switch id {
	case simSPICR1:
		return s.cr1
	case simSPICR2:
		return s.cr2
	case simSPISR:
		s.step()
		return s.sr
	default: // DR: reading drains the receive buffer and the overrun
		v := s.dr
		s.sr &^= _SPI_SR_RXNE | _SPI_SR_OVR
		return uint32(v)
	}
}

func (s *SimSPI) set(id int, v uint32) {
	switch id {
	case simSPICR1:
		s.cr1 = v
		// Any CR1 write after an SR read clears a latched mode fault.
		s.sr &^= _SPI_SR_MODF
	case simSPICR2:
		s.cr2 = v
	case simSPISR:
		s.sr = v
	default: // DR: transmit one byte
		b := byte(v)
		s.txLog = append(s.txLog, b)
		s.sr &^= _SPI_SR_TXE
		if !s.bidiTransmitOnly() {
			s.inFlight = append(s.inFlight, s.nextInbound(b))
		}
	}
}

// bidiTransmitOnly reports whether transmits clock nothing back in: the
// single wire drives output only.
func (s *SimSPI) bidiTransmitOnly() bool {
	return s.cr1&_SPI_CR1_BIDIMODE != 0 && s.cr1&_SPI_CR1_BIDIOE != 0
}

// raw reads a register without triggering bus side effects; used by
// read-modify-write accesses.
func (s *SimSPI) raw(id int) uint32 {
	switch id {
	case simSPICR1:
		return s.cr1
	case simSPICR2:
		return s.cr2
	case simSPISR:
		return s.sr
	default:
		return uint32(s.dr)
	}
}

type simSPIReg struct {
	s  *SimSPI
	id int
}

func (r *simSPIReg) Get() uint32            { return r.s.get(r.id) }
func (r *simSPIReg) Set(v uint32)           { r.s.set(r.id, v) }
func (r *simSPIReg) SetBits(mask uint32)    { r.s.set(r.id, r.s.raw(r.id)|mask) }
func (r *simSPIReg) ClearBits(mask uint32)  { r.s.set(r.id, r.s.raw(r.id)&^mask) }
func (r *simSPIReg) HasBits(mask uint32) bool {
	return r.Get()&mask == mask
}

// -----------------------------------------------------------------------------
// Timer
// -----------------------------------------------------------------------------

const (
	simTimCR1 = iota
	simTimSR
	simTimDIER
	simTimEGR
	simTimCNT
	simTimPSC
	simTimARR
)

// SimTimer is an in-memory general-purpose timer. While the counter is
// enabled, every status-register poll advances it by one tick; crossing the
// auto-reload value wraps the counter and latches the update flag, so one
// countdown period is exactly reload+1 polls.
type SimTimer struct {
	regCR1, regSR, regDIER, regEGR, regCNT, regPSC, regARR simTimerReg

	cr1, sr, dier, cnt, psc, arr uint32

	maxReload uint32
	busFreq   Hertz
	clockOn   bool
	wasReset  bool
}

// NewSimTimer returns a simulated 16-bit timer fed by busFreq.
func NewSimTimer(busFreq Hertz) *SimTimer {
	return newSimTimer(busFreq, 0xFFFF)
}

// NewSimTimer32 returns a simulated 32-bit timer (like TIM2/TIM5).
func NewSimTimer32(busFreq Hertz) *SimTimer {
	return newSimTimer(busFreq, 0xFFFFFFFF)
}

func newSimTimer(busFreq Hertz, maxReload uint32) *SimTimer {
	t := &SimTimer{busFreq: busFreq, maxReload: maxReload}
	t.regCR1 = simTimerReg{t: t, id: simTimCR1}
	t.regSR = simTimerReg{t: t, id: simTimSR}
	t.regDIER = simTimerReg{t: t, id: simTimDIER}
	t.regEGR = simTimerReg{t: t, id: simTimEGR}
	t.regCNT = simTimerReg{t: t, id: simTimCNT}
	t.regPSC = simTimerReg{t: t, id: simTimPSC}
	t.regARR = simTimerReg{t: t, id: simTimARR}
	return t
}

func (t *SimTimer) CR1() Register  { return &t.regCR1 }
func (t *SimTimer) SR() Register   { return &t.regSR }
func (t *SimTimer) DIER() Register { return &t.regDIER }
func (t *SimTimer) EGR() Register  { return &t.regEGR }
func (t *SimTimer) CNT() Register  { return &t.regCNT }
func (t *SimTimer) PSC() Register  { return &t.regPSC }
func (t *SimTimer) ARR() Register  { return &t.regARR }

func (t *SimTimer) MaxReload() uint32 { return t.maxReload }

func (t *SimTimer) EnableClock() { t.clockOn = true }

func (t *SimTimer) Reset() {
	t.cr1, t.sr, t.dier, t.cnt, t.psc, t.arr = 0, 0, 0, 0, 0, 0
	t.wasReset = true
}

func (t *SimTimer) BusFrequency(clk *Clocks) Hertz { return t.busFreq }

// ClockEnabled reports whether the peripheral clock was gated on.
func (t *SimTimer) ClockEnabled() bool { return t.clockOn }

// WasReset reports whether the peripheral reset line was pulsed.
func (t *SimTimer) WasReset() bool { return t.wasReset }

// Prescaler returns the committed prescaler value.
func (t *SimTimer) Prescaler() uint32 { return t.psc }

// Reload returns the committed auto-reload value.
func (t *SimTimer) Reload() uint32 { return t.arr }

// step advances the counter by one tick.
func (t *SimTimer) step() {
	if t.cr1&_TIM_CR1_CEN == 0 {
		return
	}
	t.cnt++
	if t.cnt > t.arr {
		t.cnt = 0
		t.sr |= _TIM_SR_UIF
	}
}

func (t *SimTimer) get(id int) uint32 {
	switch id {
	case simTimCR1:
		return t.cr1
	case simTimSR:
		t.step()
		return t.sr
	case simTimDIER:
		return t.dier
	case simTimEGR:
		return 0 // write-only
	case simTimCNT:
		return t.cnt
	case simTimPSC:
		return t.psc
	default:
		return t.arr
	}
}

func (t *SimTimer) set(id int, v uint32) {
	switch id {
	case simTimCR1:
		t.cr1 = v
	case simTimSR:
		t.sr = v
	case simTimDIER:
		t.dier = v
	case simTimEGR:
		if v&_TIM_EGR_UG != 0 {
			// Update event: reinitialize the counter and latch the
			// preloaded registers. URS suppresses the flag for
			// software-generated updates.
			t.cnt = 0
			if t.cr1&_TIM_CR1_URS == 0 {
				t.sr |= _TIM_SR_UIF
			}
		}
	case simTimCNT:
		t.cnt = v
	case simTimPSC:
		t.psc = v
	default:
		t.arr = v
	}
}

func (t *SimTimer) raw(id int) uint32 {
	switch id {
	case simTimSR:
		return t.sr
	default:
		return t.get(id)
	}
}

type simTimerReg struct {
	t  *SimTimer
	id int
}

func (r *simTimerReg) Get() uint32           { return r.t.get(r.id) }
func (r *simTimerReg) Set(v uint32)          { r.t.set(r.id, v) }
func (r *simTimerReg) SetBits(mask uint32)   { r.t.set(r.id, r.t.raw(r.id)|mask) }
func (r *simTimerReg) ClearBits(mask uint32) { r.t.set(r.id, r.t.raw(r.id)&^mask) }
func (r *simTimerReg) HasBits(mask uint32) bool {
	return r.Get()&mask == mask
}

// -----------------------------------------------------------------------------
// SysTick
// -----------------------------------------------------------------------------

const (
	simSystCSR = iota
	simSystRVR
	simSystCVR
)

// SimSysTick is an in-memory system tick: a 24-bit down-counter that loses
// one count per control-register poll while enabled. The count flag is set
// when the counter reaches zero and, as on real silicon, cleared by the read
// that observes it.
type SimSysTick struct {
	regCSR, regRVR, regCVR simSysTickReg

	csr, rvr, cvr uint32
}

// NewSimSysTick returns a simulated system tick timer.
func NewSimSysTick() *SimSysTick {
	s := &SimSysTick{}
	s.regCSR = simSysTickReg{s: s, id: simSystCSR}
	s.regRVR = simSysTickReg{s: s, id: simSystRVR}
	s.regCVR = simSysTickReg{s: s, id: simSystCVR}
	return s
}

func (s *SimSysTick) CSR() Register { return &s.regCSR }
func (s *SimSysTick) RVR() Register { return &s.regRVR }
func (s *SimSysTick) CVR() Register { return &s.regCVR }

// ReloadValue returns the committed reload value.
func (s *SimSysTick) ReloadValue() uint32 { return s.rvr }

func (s *SimSysTick) step() {
	if s.csr&_SYST_CSR_ENABLE == 0 {
		return
	}
	if s.cvr == 0 {
		// From zero the next clock reloads without setting the flag.
		s.cvr = s.rvr
		return
	}
	s.cvr--
	if s.cvr == 0 {
		s.csr |= _SYST_CSR_COUNTFLAG
	}
}

func (s *SimSysTick) get(id int) uint32 {
	switch id {
	case simSystCSR:
		s.step()
		v := s.csr
		s.csr &^= _SYST_CSR_COUNTFLAG // cleared on read
		return v
	case simSystRVR:
		return s.rvr
	default:
		return s.cvr
	}
}

func (s *SimSysTick) set(id int, v uint32) {
	switch id {
	case simSystCSR:
		s.csr = v
	case simSystRVR:
		s.rvr = v & _SYST_RVR_MAX
	default:
		// Any write clears the counter and the count flag.
		s.cvr = 0
		s.csr &^= _SYST_CSR_COUNTFLAG
	}
}

func (s *SimSysTick) raw(id int) uint32 {
	switch id {
	case simSystCSR:
		return s.csr
	case simSystRVR:
		return s.rvr
	default:
		return s.cvr
	}
}

type simSysTickReg struct {
	s  *SimSysTick
	id int
}

func (r *simSysTickReg) Get() uint32           { return r.s.get(r.id) }
func (r *simSysTickReg) Set(v uint32)          { r.s.set(r.id, v) }
func (r *simSysTickReg) SetBits(mask uint32)   { r.s.set(r.id, r.s.raw(r.id)|mask) }
func (r *simSysTickReg) ClearBits(mask uint32) { r.s.set(r.id, r.s.raw(r.id)&^mask) }
func (r *simSysTickReg) HasBits(mask uint32) bool {
	return r.Get()&mask == mask
}

// -----------------------------------------------------------------------------
// Pins
// -----------------------------------------------------------------------------

// SimPin records alternate-function routing for a simulated pin.
type SimPin struct {
	alt          bool
	altCalls     int
	restoreCalls int
}

// NewSimPin returns a pin in its default function.
func NewSimPin() *SimPin { return &SimPin{} }

func (p *SimPin) SetAltMode() {
	p.alt = true
	p.altCalls++
}

func (p *SimPin) RestoreMode() {
	p.alt = false
	p.restoreCalls++
}

// IsAlt reports whether the pin is currently routed to its peripheral.
func (p *SimPin) IsAlt() bool { return p.alt }

// Ensure the simulated peripherals satisfy the instance contracts.
var (
	_ SPIInstance     = (*SimSPI)(nil)
	_ TimerInstance   = (*SimTimer)(nil)
	_ SysTickInstance = (*SimSysTick)(nil)
	_ AltPin          = (*SimPin)(nil)
)
