package stm32f4hal

import (
	"testing"
	"time"
)

func newTestSysTick(t *testing.T, hclk Hertz) (*SysTickCountDown, *SimSysTick) {
	t.Helper()
	sim := NewSimSysTick()
	c, err := NewSysTickCountDown(sim, &Clocks{HCLK: hclk, PCLK1: hclk, PCLK2: hclk})
	if err != nil {
		t.Fatalf("NewSysTickCountDown failed: %v", err)
	}
	return c, sim
}

func TestSysTickInputValidation(t *testing.T) {
	if _, err := NewSysTickCountDown(nil, testClocks()); err == nil {
		t.Error("nil instance must be rejected")
	}
	if _, err := NewSysTickCountDown(NewSimSysTick(), nil); err == nil {
		t.Error("nil clocks must be rejected")
	}
}

func TestSysTickStartCommitsReload(t *testing.T) {
	c, sim := newTestSysTick(t, MHz(84))

	if err := c.Start(10 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// 10us of an 84MHz core clock is 840 ticks: reload 839.
	if sim.ReloadValue() != 839 {
		t.Errorf("reload = %d, want 839", sim.ReloadValue())
	}
	if sim.csr&_SYST_CSR_ENABLE == 0 {
		t.Error("counter not enabled after Start")
	}
	if sim.csr&_SYST_CSR_CLKSOURCE == 0 {
		t.Error("counter must run from the core clock")
	}
	if c.Periodic() {
		t.Error("the system tick countdown is one-shot; Periodic must report false")
	}
}

func TestSysTickStartOutOfRange(t *testing.T) {
	c, sim := newTestSysTick(t, MHz(84))

	// 250ms at 84MHz is 21M ticks, past the 24-bit reload register. The
	// failure must happen before anything is committed.
	if err := c.Start(250 * time.Millisecond); err != ErrOutOfRange {
		t.Fatalf("Start(250ms) = %v, want ErrOutOfRange", err)
	}
	if sim.ReloadValue() != 0 {
		t.Errorf("failed Start committed reload %d", sim.ReloadValue())
	}
	if sim.csr&_SYST_CSR_ENABLE != 0 {
		t.Error("failed Start enabled the counter")
	}

	if err := c.Start(0); err != ErrOutOfRange {
		t.Errorf("Start(0) = %v, want ErrOutOfRange", err)
	}
}

func TestSysTickWaitContract(t *testing.T) {
	c, _ := newTestSysTick(t, MHz(1))

	if err := c.Start(3 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// A 3-tick period: two busy polls, the third observes the wrap.
	for i := 0; i < 2; i++ {
		if err := c.Wait(); err != ErrWouldBlock {
			t.Fatalf("Wait poll %d = %v, want ErrWouldBlock", i+1, err)
		}
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("Wait at expiry = %v, want nil", err)
	}
}

func TestSysTickRestart(t *testing.T) {
	c, _ := newTestSysTick(t, MHz(1))

	if err := c.Start(2 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Wait(); err != ErrWouldBlock {
		t.Fatalf("Wait = %v, want ErrWouldBlock", err)
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("Wait at expiry = %v", err)
	}

	// Restarting rearms a full period from zero.
	if err := c.Start(2 * time.Microsecond); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := c.Wait(); err != ErrWouldBlock {
		t.Fatalf("Wait after restart = %v, want ErrWouldBlock", err)
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("Wait at expiry after restart = %v", err)
	}
}

func TestSysTickCancel(t *testing.T) {
	c, sim := newTestSysTick(t, MHz(1))

	if err := c.Cancel(); err != ErrDisabled {
		t.Errorf("Cancel before Start = %v, want ErrDisabled", err)
	}

	if err := c.Start(5 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Cancel(); err != nil {
		t.Errorf("Cancel on running counter = %v", err)
	}
	if sim.csr&_SYST_CSR_ENABLE != 0 {
		t.Error("Cancel did not stop the counter")
	}
	if err := c.Cancel(); err != ErrDisabled {
		t.Errorf("second Cancel = %v, want ErrDisabled", err)
	}

	for i := 0; i < 20; i++ {
		if err := c.Wait(); err != ErrWouldBlock {
			t.Fatalf("Wait after Cancel = %v, want ErrWouldBlock", err)
		}
	}
}

func TestSysTickListenUnlisten(t *testing.T) {
	c, sim := newTestSysTick(t, MHz(84))

	c.Listen(TimerEventTimeout)
	if sim.csr&_SYST_CSR_TICKINT == 0 {
		t.Error("Listen did not enable the tick exception")
	}
	c.Unlisten(TimerEventTimeout)
	if sim.csr&_SYST_CSR_TICKINT != 0 {
		t.Error("Unlisten did not disable the tick exception")
	}
}

func TestSysTickRelease(t *testing.T) {
	c, sim := newTestSysTick(t, MHz(84))
	if err := c.Start(10 * time.Microsecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got := c.Release()
	if got != SysTickInstance(sim) {
		t.Error("Release must return the original instance")
	}
	if sim.csr&_SYST_CSR_ENABLE != 0 {
		t.Error("Release must stop the counter")
	}

	defer func() {
		if recover() == nil {
			t.Error("released driver must panic on use")
		}
	}()
	c.Wait()
}
