package stm32f4hal

import (
	"testing"
	"time"
)

func newTestCountDown(t *testing.T, bus, tick Hertz) (*CountDown, *SimTimer) {
	t.Helper()
	sim := NewSimTimer(bus)
	c, err := NewCountDown(sim, tick, testClocks())
	if err != nil {
		t.Fatalf("NewCountDown failed: %v", err)
	}
	return c, sim
}

func TestCountDownPrescaler(t *testing.T) {
	c, sim := newTestCountDown(t, MHz(8), MHz(1))

	if !sim.ClockEnabled() {
		t.Error("peripheral clock was not enabled")
	}
	if !sim.WasReset() {
		t.Error("peripheral was not reset")
	}
	// 8MHz bus divided down to a 1MHz tick needs a prescaler of 7.
	if sim.Prescaler() != 7 {
		t.Errorf("prescaler = %d, want 7", sim.Prescaler())
	}
	if c.Frequency() != MHz(1) {
		t.Errorf("frequency = %s, want 1MHz", c.Frequency())
	}
	if !c.Periodic() {
		t.Error("general-purpose timers auto-reload; Periodic must report true")
	}
}

func TestCountDownPrescalerOutOfRange(t *testing.T) {
	// 84MHz down to a 1Hz tick needs a prescaler of 84M-1, far past 16 bits.
	if _, err := NewCountDown(NewSimTimer(MHz(84)), Hertz(1), testClocks()); err != ErrOutOfRange {
		t.Errorf("NewCountDown = %v, want ErrOutOfRange", err)
	}
}

func TestCountDownMillisecondTick(t *testing.T) {
	c, sim := newTestCountDown(t, MHz(8), KHz(1))
	if sim.Prescaler() != 7999 {
		t.Errorf("prescaler = %d, want 7999", sim.Prescaler())
	}
	if c.Frequency() != KHz(1) {
		t.Errorf("frequency = %s, want 1kHz", c.Frequency())
	}

	// A millisecond tick does not fit a 16-bit prescaler on fast buses.
	if _, err := NewCountDownMs(NewSimTimer(MHz(84)), testClocks()); err != ErrOutOfRange {
		t.Errorf("NewCountDownMs at 84MHz = %v, want ErrOutOfRange", err)
	}
}

func TestCountDownInputValidation(t *testing.T) {
	if _, err := NewCountDown(nil, MHz(1), testClocks()); err == nil {
		t.Error("nil instance must be rejected")
	}
	if _, err := NewCountDown(NewSimTimer(MHz(8)), 0, testClocks()); err == nil {
		t.Error("zero tick frequency must be rejected")
	}
	if _, err := NewCountDown(NewSimTimer(MHz(8)), MHz(1), nil); err == nil {
		t.Error("nil clocks must be rejected")
	}
}

func TestCountDownStartCommitsReload(t *testing.T) {
	c, sim := newTestCountDown(t, MHz(8), MHz(1))

	if err := c.Start(5 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// 5 ticks of countdown: reload 4, counter zeroed, running.
	if sim.Reload() != 4 {
		t.Errorf("reload = %d, want 4", sim.Reload())
	}
	if sim.cnt != 0 {
		t.Errorf("counter = %d, want 0", sim.cnt)
	}
	if sim.cr1&_TIM_CR1_CEN == 0 {
		t.Error("counter not enabled after Start")
	}
	if sim.sr&_TIM_SR_UIF != 0 {
		t.Error("arming must not raise the update flag")
	}
}

func TestCountDownStartOutOfRange(t *testing.T) {
	c16, _ := newTestCountDown(t, MHz(8), MHz(1))
	if err := c16.Start(100 * time.Millisecond); err != ErrOutOfRange {
		t.Errorf("Start(100ms) on 16-bit timer = %v, want ErrOutOfRange", err)
	}
	if err := c16.Start(0); err != ErrOutOfRange {
		t.Errorf("Start(0) = %v, want ErrOutOfRange", err)
	}
	// Sub-tick durations round down to zero ticks.
	if err := c16.Start(500 * time.Nanosecond); err != ErrOutOfRange {
		t.Errorf("Start(500ns) at 1MHz tick = %v, want ErrOutOfRange", err)
	}

	sim32 := NewSimTimer32(MHz(8))
	c32, err := NewCountDown(sim32, MHz(1), testClocks())
	if err != nil {
		t.Fatalf("NewCountDown failed: %v", err)
	}
	if err := c32.Start(100 * time.Millisecond); err != nil {
		t.Errorf("Start(100ms) on 32-bit timer failed: %v", err)
	}
	if sim32.Reload() != 99999 {
		t.Errorf("reload = %d, want 99999", sim32.Reload())
	}
}

func TestCountDownWaitContract(t *testing.T) {
	c, _ := newTestCountDown(t, MHz(8), MHz(1))
	if err := c.Start(5 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// One period is reload+1 ticks: four busy polls, then exactly one nil.
	for i := 0; i < 4; i++ {
		if err := c.Wait(); err != ErrWouldBlock {
			t.Fatalf("Wait poll %d = %v, want ErrWouldBlock", i+1, err)
		}
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("Wait at expiry = %v, want nil", err)
	}
	if err := c.Wait(); err != ErrWouldBlock {
		t.Fatalf("Wait after expiry = %v, want ErrWouldBlock (flag consumed)", err)
	}
}

func TestCountDownPeriodicReExpiry(t *testing.T) {
	c, _ := newTestCountDown(t, MHz(8), MHz(1))
	if err := c.Start(3 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Auto-reload keeps the countdown running: every period yields one nil
	// and never two in a row.
	expiries := 0
	prevNil := false
	for i := 0; i < 12; i++ {
		err := c.Wait()
		switch err {
		case nil:
			if prevNil {
				t.Fatal("two consecutive Wait successes for one expiry")
			}
			expiries++
			prevNil = true
		case ErrWouldBlock:
			prevNil = false
		default:
			t.Fatalf("Wait = %v", err)
		}
	}
	if expiries != 4 {
		t.Errorf("12 polls of a 3-tick period saw %d expiries, want 4", expiries)
	}
}

func TestCountDownCancel(t *testing.T) {
	c, _ := newTestCountDown(t, MHz(8), MHz(1))

	if err := c.Cancel(); err != ErrDisabled {
		t.Errorf("Cancel before Start = %v, want ErrDisabled", err)
	}

	if err := c.Start(5 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Cancel(); err != nil {
		t.Errorf("Cancel on running timer = %v", err)
	}
	if err := c.Cancel(); err != ErrDisabled {
		t.Errorf("second Cancel = %v, want ErrDisabled", err)
	}

	// A cancelled countdown never expires.
	for i := 0; i < 20; i++ {
		if err := c.Wait(); err != ErrWouldBlock {
			t.Fatalf("Wait after Cancel = %v, want ErrWouldBlock", err)
		}
	}

	// Restarting revives the normal contract.
	if err := c.Start(2 * time.Microsecond); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := c.Wait(); err != ErrWouldBlock {
		t.Fatalf("Wait = %v, want ErrWouldBlock", err)
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("Wait at expiry after restart = %v", err)
	}
}

func TestCountDownListenAndClear(t *testing.T) {
	c, sim := newTestCountDown(t, MHz(8), MHz(1))

	c.Listen(TimerEventTimeout)
	if sim.dier&_TIM_DIER_UIE == 0 {
		t.Error("Listen did not enable the update interrupt")
	}
	c.Unlisten(TimerEventTimeout)
	if sim.dier&_TIM_DIER_UIE != 0 {
		t.Error("Unlisten did not disable the update interrupt")
	}

	sim.sr |= _TIM_SR_UIF
	c.ClearInterrupt(TimerEventTimeout)
	if sim.sr&_TIM_SR_UIF != 0 {
		t.Error("ClearInterrupt did not clear the update flag")
	}
}

func TestCountDownRelease(t *testing.T) {
	c, sim := newTestCountDown(t, MHz(8), MHz(1))
	if err := c.Start(5 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got := c.Release()
	if got != TimerInstance(sim) {
		t.Error("Release must return the original instance")
	}
	if sim.cr1&_TIM_CR1_CEN != 0 {
		t.Error("Release must stop the counter")
	}

	defer func() {
		if recover() == nil {
			t.Error("released driver must panic on use")
		}
	}()
	c.Wait()
}
