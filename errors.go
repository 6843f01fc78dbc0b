package stm32f4hal

import "errors"

var (
	// ErrWouldBlock means the operation cannot complete yet; poll again.
	ErrWouldBlock = errors.New("would block")
	// ErrOverrun means received data was lost because the data register
	// was not read fast enough.
	ErrOverrun = errors.New("overrun")
	// ErrModeFault means the hardware detected a master/slave role
	// conflict on the bus.
	ErrModeFault = errors.New("mode fault")
	// ErrCRC means a checksum mismatch on a CRC-enabled link.
	ErrCRC = errors.New("crc error")
	// ErrDisabled means the operation needs a running peripheral and the
	// peripheral is stopped.
	ErrDisabled = errors.New("disabled")
	// ErrOutOfRange means a requested duration or frequency cannot be
	// represented in the register's bit width. The value is never
	// silently truncated; that would change timing on real hardware.
	ErrOutOfRange = errors.New("value out of register range")
)
