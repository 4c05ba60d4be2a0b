package cpu

import (
	"github.com/arxyzan/goboy/core/addr"
	"github.com/arxyzan/goboy/core/bit"
	"github.com/arxyzan/goboy/core/memory"
)

// Flag is one of the 4 possible flags used in the flag register (low nibble always zero).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag            = 0x40
	halfCarryFlag      = 0x20
	carryFlag          = 0x10
)

// imeState models the delayed-enable semantics of the interrupt master enable flag.
// EI arms imePending; the next Step promotes it to imeEnabled before it checks
// for pending interrupts, so an interrupt can be serviced before the
// instruction that follows EI runs.
type imeState uint8

const (
	imeDisabled imeState = iota
	imePending
	imeEnabled
)

// Model distinguishes DMG (classic) from CGB (color) behaviour where it matters:
// double-speed mode and the STOP-triggered speed switch are CGB-only.
type Model uint8

const (
	ModelDMG Model = iota
	ModelCGB
)

// CPU holds SM83 register and control state.
type CPU struct {
	bus *memory.MMU

	a, f, b, c, d, e, h, l uint8
	sp, pc                 uint16

	ime imeState

	halted      bool
	haltBug     bool
	stopped     bool
	doubleSpeed bool

	model Model

	currentOpcode uint16
}

// New returns a CPU wired to bus, with registers in their post-boot-ROM state.
func New(bus *memory.MMU, model Model) *CPU {
	c := &CPU{
		bus:   bus,
		model: model,
		a:     0x01,
		f:     0xB0,
		b:     0x00,
		c:     0x13,
		d:     0x00,
		e:     0xD8,
		h:     0x01,
		l:     0x4D,
		sp:    0xFFFE,
		pc:    0x0100,
	}
	if model == ModelCGB {
		c.a = 0x11
	}
	return c
}

// IsDoubleSpeed reports whether the CGB double-speed mode is currently armed.
func (c *CPU) IsDoubleSpeed() bool {
	return c.doubleSpeed
}

// Step executes exactly one instruction (or services a pending interrupt, or
// spends one M-cycle halted/stopped) and returns the number of T-states consumed.
func (c *CPU) Step() int {
	if c.ime == imePending {
		c.ime = imeEnabled
	}

	if cycles, serviced := c.serviceInterrupt(); serviced {
		return cycles
	}

	if c.stopped {
		// stopped is cleared by serviceInterrupt once an enabled interrupt is
		// pending. An armed CGB speed switch completes inside the STOP opcode,
		// which then does not enter this state.
		return 4
	}

	if c.halted {
		return 4
	}

	opcodeFn := Decode(c)

	c.pc++
	if c.currentOpcode&0xCB00 != 0 {
		c.pc++
	}

	if c.haltBug {
		c.haltBug = false
		c.pc--
	}

	return opcodeFn(c)
}

// serviceInterrupt checks IE & IF and, if IME is enabled and a bit is set,
// pushes PC and jumps to the corresponding vector. Returns the cycles spent
// (20) and true if an interrupt was serviced. HALT is cleared whenever an
// enabled interrupt is pending, even if IME itself is off.
func (c *CPU) serviceInterrupt() (int, bool) {
	ie := c.bus.Read(addr.IE)
	iflags := c.bus.Read(addr.IF)
	pending := ie & iflags & 0x1F

	if pending == 0 {
		return 0, false
	}

	if c.halted {
		c.halted = false
	}
	if c.stopped {
		c.stopped = false
	}

	if c.ime != imeEnabled {
		return 0, false
	}

	for i := uint8(0); i < 5; i++ {
		if pending&(1<<i) == 0 {
			continue
		}

		c.ime = imeDisabled
		c.bus.Write(addr.IF, iflags & ^(uint8(1)<<i))
		c.pushStack(c.pc)
		c.pc = 0x0040 + uint16(i)*8
		return 20, true
	}

	return 0, false
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit returns 1 if the flag is set, 0 otherwise - used by ADC/SBC/RL/RR.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) getAF() uint16 { return bit.Combine(c.a, c.f) }
func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getBC() uint16      { return bit.Combine(c.b, c.c) }
func (c *CPU) setBC(value uint16) { c.b = bit.High(value); c.c = bit.Low(value) }

func (c *CPU) getDE() uint16      { return bit.Combine(c.d, c.e) }
func (c *CPU) setDE(value uint16) { c.d = bit.High(value); c.e = bit.Low(value) }

func (c *CPU) getHL() uint16      { return bit.Combine(c.h, c.l) }
func (c *CPU) setHL(value uint16) { c.h = bit.High(value); c.l = bit.Low(value) }

// readImmediate fetches the byte at PC and advances PC past it.
func (c *CPU) readImmediate() uint8 {
	value := c.bus.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate fetches a signed 8-bit displacement and advances PC past it.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord fetches the little-endian word at PC and advances PC past it.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}
