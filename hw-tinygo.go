//go:build tinygo

package stm32f4hal

import (
	"runtime/volatile"
	"unsafe"
)

// Memory-mapped peripheral instances for the STM32F4 family. Register
// accesses go through runtime/volatile; *volatile.Register32 satisfies the
// Register interface directly.

type spiRegs struct {
	CR1, CR2, SR, DR               volatile.Register32
	CRCPR, RXCRCR, TXCRCR          volatile.Register32
	I2SCFGR, I2SPR                 volatile.Register32
}

type timRegs struct {
	CR1, CR2, SMCR, DIER, SR, EGR  volatile.Register32
	CCMR1, CCMR2, CCER             volatile.Register32
	CNT, PSC, ARR                  volatile.Register32
}

type sysTickRegs struct {
	CSR, RVR, CVR, CALIB volatile.Register32
}

type rccRegs struct {
	CR, PLLCFGR, CFGR, CIR       volatile.Register32
	AHB1RSTR, AHB2RSTR, AHB3RSTR volatile.Register32
	_                            volatile.Register32
	APB1RSTR, APB2RSTR           volatile.Register32
	_                            volatile.Register32
	_                            volatile.Register32
	AHB1ENR, AHB2ENR, AHB3ENR    volatile.Register32
	_                            volatile.Register32
	APB1ENR, APB2ENR             volatile.Register32
}

var rcc = (*rccRegs)(unsafe.Pointer(uintptr(0x4002_3800)))

// HWSPI is one memory-mapped SPI controller.
type HWSPI struct {
	regs  *spiRegs
	apb2  bool
	enBit uint32
}

var (
	SPI1 = &HWSPI{regs: (*spiRegs)(unsafe.Pointer(uintptr(0x4001_3000))), apb2: true, enBit: 1 << 12}
	SPI2 = &HWSPI{regs: (*spiRegs)(unsafe.Pointer(uintptr(0x4000_3800))), enBit: 1 << 14}
	SPI3 = &HWSPI{regs: (*spiRegs)(unsafe.Pointer(uintptr(0x4000_3C00))), enBit: 1 << 15}
)

func (s *HWSPI) CR1() Register { return &s.regs.CR1 }
func (s *HWSPI) CR2() Register { return &s.regs.CR2 }
func (s *HWSPI) SR() Register  { return &s.regs.SR }
func (s *HWSPI) DR() Register  { return &s.regs.DR }

func (s *HWSPI) EnableClock() {
	if s.apb2 {
		rcc.APB2ENR.SetBits(s.enBit)
	} else {
		rcc.APB1ENR.SetBits(s.enBit)
	}
}

func (s *HWSPI) Reset() {
	if s.apb2 {
		rcc.APB2RSTR.SetBits(s.enBit)
		rcc.APB2RSTR.ClearBits(s.enBit)
	} else {
		rcc.APB1RSTR.SetBits(s.enBit)
		rcc.APB1RSTR.ClearBits(s.enBit)
	}
}

func (s *HWSPI) BusFrequency(clk *Clocks) Hertz {
	if s.apb2 {
		return clk.PCLK2
	}
	return clk.PCLK1
}

// HWTimer is one memory-mapped general-purpose timer on APB1.
type HWTimer struct {
	regs      *timRegs
	enBit     uint32
	maxReload uint32
}

var (
	TIM2 = &HWTimer{regs: (*timRegs)(unsafe.Pointer(uintptr(0x4000_0000))), enBit: 1 << 0, maxReload: 0xFFFFFFFF}
	TIM3 = &HWTimer{regs: (*timRegs)(unsafe.Pointer(uintptr(0x4000_0400))), enBit: 1 << 1, maxReload: 0xFFFF}
	TIM4 = &HWTimer{regs: (*timRegs)(unsafe.Pointer(uintptr(0x4000_0800))), enBit: 1 << 2, maxReload: 0xFFFF}
	TIM5 = &HWTimer{regs: (*timRegs)(unsafe.Pointer(uintptr(0x4000_0C00))), enBit: 1 << 3, maxReload: 0xFFFFFFFF}
)

func (t *HWTimer) CR1() Register  { return &t.regs.CR1 }
func (t *HWTimer) SR() Register   { return &t.regs.SR }
func (t *HWTimer) DIER() Register { return &t.regs.DIER }
func (t *HWTimer) EGR() Register  { return &t.regs.EGR }
func (t *HWTimer) CNT() Register  { return &t.regs.CNT }
func (t *HWTimer) PSC() Register  { return &t.regs.PSC }
func (t *HWTimer) ARR() Register  { return &t.regs.ARR }

func (t *HWTimer) MaxReload() uint32 { return t.maxReload }

func (t *HWTimer) EnableClock() { rcc.APB1ENR.SetBits(t.enBit) }

func (t *HWTimer) Reset() {
	rcc.APB1RSTR.SetBits(t.enBit)
	rcc.APB1RSTR.ClearBits(t.enBit)
}

func (t *HWTimer) BusFrequency(clk *Clocks) Hertz {
	return clk.TimerFrequency(clk.PCLK1)
}

// HWSysTick is the memory-mapped Cortex-M system tick.
type HWSysTick struct {
	regs *sysTickRegs
}

var SYST = &HWSysTick{regs: (*sysTickRegs)(unsafe.Pointer(uintptr(0xE000_E010)))}

func (s *HWSysTick) CSR() Register { return &s.regs.CSR }
func (s *HWSysTick) RVR() Register { return &s.regs.RVR }
func (s *HWSysTick) CVR() Register { return &s.regs.CVR }

var (
	_ SPIInstance     = (*HWSPI)(nil)
	_ TimerInstance   = (*HWTimer)(nil)
	_ SysTickInstance = (*HWSysTick)(nil)
)
