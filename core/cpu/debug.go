package cpu

import "fmt"

// This file holds the read-only register accessors debug tooling (the
// disassembler, the terminal renderer, debug snapshots) needs. They never
// mutate state and are never called from the instruction set itself.

func (c *CPU) GetA() uint8 { return c.a }
func (c *CPU) GetF() uint8 { return c.f }
func (c *CPU) GetB() uint8 { return c.b }
func (c *CPU) GetC() uint8 { return c.c }
func (c *CPU) GetD() uint8 { return c.d }
func (c *CPU) GetE() uint8 { return c.e }
func (c *CPU) GetH() uint8 { return c.h }
func (c *CPU) GetL() uint8 { return c.l }

func (c *CPU) GetSP() uint16 { return c.sp }
func (c *CPU) GetPC() uint16 { return c.pc }

func (c *CPU) GetAF() uint16 { return c.getAF() }
func (c *CPU) GetBC() uint16 { return c.getBC() }
func (c *CPU) GetDE() uint16 { return c.getDE() }
func (c *CPU) GetHL() uint16 { return c.getHL() }

// GetIME reports whether interrupts are currently serviced (not merely armed).
func (c *CPU) GetIME() bool {
	return c.ime == imeEnabled
}

// GetFlagString renders the Z/N/H/C flags as the four-letter form Game Boy
// disassemblers conventionally use, with a dash standing in for an unset flag.
func (c *CPU) GetFlagString() string {
	flag := func(set bool, letter byte) byte {
		if set {
			return letter
		}
		return '-'
	}
	return fmt.Sprintf("%c%c%c%c",
		flag(c.isSetFlag(zeroFlag), 'Z'),
		flag(c.isSetFlag(subFlag), 'N'),
		flag(c.isSetFlag(halfCarryFlag), 'H'),
		flag(c.isSetFlag(carryFlag), 'C'),
	)
}

// IsHalted reports whether the CPU is in the low-power halt state.
func (c *CPU) IsHalted() bool {
	return c.halted
}
