package cpu

import "github.com/arxyzan/goboy/core/bit"

// pushStack decrements sp by two and writes the high byte of r at SP-1 and the
// low byte at SP-2, so the word is stored little-endian, as PUSH does.
func (c *CPU) pushStack(r uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(r))
	c.sp--
	c.bus.Write(c.sp, bit.Low(r))
}

func (c *CPU) popStack() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++

	return bit.Combine(high, low)
}

func (c *CPU) inc(r *uint8) {
	value := *r
	result := value + 1
	*r = result

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlagToCondition(halfCarryFlag, (value&0xF) == 0xF)
	c.resetFlag(subFlag)
}

func (c *CPU) dec(r *uint8) {
	value := *r
	result := value - 1
	*r = result

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlagToCondition(halfCarryFlag, (value&0xF) == 0)
	c.setFlag(subFlag)
}

// incAtHL/decAtHL are the (HL)-indirect forms of inc/dec, sharing the flag logic.
func (c *CPU) incAtHL() {
	addr := c.getHL()
	value := c.bus.Read(addr)
	result := value + 1
	c.bus.Write(addr, result)

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlagToCondition(halfCarryFlag, (value&0xF) == 0xF)
	c.resetFlag(subFlag)
}

func (c *CPU) decAtHL() {
	addr := c.getHL()
	value := c.bus.Read(addr)
	result := value - 1
	c.bus.Write(addr, result)

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlagToCondition(halfCarryFlag, (value&0xF) == 0)
	c.setFlag(subFlag)
}

// rlc/rl/rrc/rr implement the CB-prefixed rotate semantics: the zero flag is
// set from the result. The unprefixed accumulator forms (RLCA/RLA/RRCA/RRA)
// call these same helpers and then force zeroFlag off, since those opcodes
// always clear Z regardless of the result.
func (c *CPU) rlc(r *uint8) {
	value := *r
	carry := value>>7 == 1
	result := (value << 1) | boolToBit(carry)
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) rl(r *uint8) {
	value := *r
	oldCarry := c.flagToBit(carryFlag)
	carry := value>>7 == 1
	result := (value << 1) | oldCarry
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) rrc(r *uint8) {
	value := *r
	carry := value&1 == 1
	result := (value >> 1) | (boolToBit(carry) << 7)
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) rr(r *uint8) {
	value := *r
	oldCarry := c.flagToBit(carryFlag)
	carry := value&1 == 1
	result := (value >> 1) | (oldCarry << 7)
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) sla(r *uint8) {
	value := *r
	carry := value>>7 == 1
	result := value << 1
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) sra(r *uint8) {
	value := *r
	carry := value&1 == 1
	result := (value >> 1) | (value & 0x80)
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) srl(r *uint8) {
	value := *r
	carry := value&1 == 1
	result := value >> 1
	*r = result

	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) swap(r *uint8) {
	value := *r
	result := (value << 4) | (value >> 4)
	*r = result

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.resetFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) bit(index uint8, value uint8) {
	c.setFlagToCondition(zeroFlag, value&(1<<index) == 0)
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
}

func (c *CPU) res(index uint8, r *uint8) {
	*r &^= 1 << index
}

func (c *CPU) set(index uint8, r *uint8) {
	*r |= 1 << index
}

func boolToBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// addToA sets the result of adding an 8 bit value to A, setting all relevant flags.
func (c *CPU) addToA(value uint8) {
	a := c.a
	result := a + value

	carry := (uint16(a) + uint16(value)) > 0xFF
	halfCarry := (a&0xF)+(value&0xF) > 0xF

	c.a = result

	c.setFlagToCondition(zeroFlag, result == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(halfCarryFlag, halfCarry)
}

// adc adds value and the carry flag to A.
func (c *CPU) adc(value uint8) {
	a := c.a
	carry := c.flagToBit(carryFlag)
	result := uint16(a) + uint16(value) + uint16(carry)

	halfCarry := (a&0xF)+(value&0xF)+carry > 0xF

	c.a = uint8(result)

	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.setFlagToCondition(carryFlag, result > 0xFF)
	c.setFlagToCondition(halfCarryFlag, halfCarry)
}

// addToHL sets the result of adding a 16 bit value to HL, while setting relevant flags.
func (c *CPU) addToHL(reg uint16) {
	hl := c.getHL()
	result := hl + reg

	carry := (uint32(hl) + uint32(reg)) > 0xFFFF
	halfCarry := (hl&0xFFF)+(reg&0xFFF) > 0xFFF

	c.setHL(result)

	c.resetFlag(subFlag)
	c.setFlagToCondition(carryFlag, carry)
	c.setFlagToCondition(halfCarryFlag, halfCarry)
}

// sub subtracts value from register A and sets all relevant flags.
func (c *CPU) sub(value uint8) {
	a := c.a
	result := a - value
	c.a = result

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(carryFlag, a < value)
	c.setFlagToCondition(halfCarryFlag, (a&0xF) < (value&0xF))
}

// sbc subtracts value and the carry flag from A.
func (c *CPU) sbc(value uint8) {
	a := c.a
	carry := c.flagToBit(carryFlag)

	result := int(a) - int(value) - int(carry)
	c.a = uint8(result)

	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(carryFlag, result < 0)
	c.setFlagToCondition(halfCarryFlag, (int(a)&0xF)-(int(value)&0xF)-int(carry) < 0)
}

// cp compares value against A (a subtraction that discards the result) and sets flags.
func (c *CPU) cp(value uint8) {
	a := c.a
	result := a - value

	c.setFlagToCondition(zeroFlag, result == 0)
	c.setFlag(subFlag)
	c.setFlagToCondition(carryFlag, a < value)
	c.setFlagToCondition(halfCarryFlag, (a&0xF) < (value&0xF))
}

func (c *CPU) and(value uint8) {
	c.a &= value
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.setFlag(halfCarryFlag)
	c.resetFlag(carryFlag)
}

func (c *CPU) or(value uint8) {
	c.a |= value
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(carryFlag)
	c.resetFlag(halfCarryFlag)
}

func (c *CPU) xor(value uint8) {
	c.a ^= value
	c.setFlagToCondition(zeroFlag, c.a == 0)
	c.resetFlag(subFlag)
	c.resetFlag(carryFlag)
	c.resetFlag(halfCarryFlag)
}

// daa adjusts A to valid packed BCD after an ADD/ADC/SUB/SBC, using the sub,
// half-carry and carry flags left over from that instruction.
func (c *CPU) daa() {
	a := c.a
	var adjust uint8
	carry := c.isSetFlag(carryFlag)

	if c.isSetFlag(subFlag) {
		if c.isSetFlag(halfCarryFlag) {
			adjust |= 0x06
		}
		if carry {
			adjust |= 0x60
		}
		a -= adjust
	} else {
		if c.isSetFlag(halfCarryFlag) || (a&0xF) > 0x9 {
			adjust |= 0x06
		}
		if carry || a > 0x99 {
			adjust |= 0x60
			carry = true
		}
		a += adjust
	}

	c.a = a

	c.setFlagToCondition(zeroFlag, a == 0)
	c.resetFlag(halfCarryFlag)
	c.setFlagToCondition(carryFlag, carry)
}

// jr performs a relative jump using the signed immediate displacement.
func (c *CPU) jr() {
	offset := c.readSignedImmediate()
	c.pc = uint16(int32(c.pc) + int32(offset))
}

// jp performs an absolute jump using the immediate word.
func (c *CPU) jp() {
	c.pc = c.readImmediateWord()
}

// call pushes the return address (pc after the instruction's operand) and jumps.
func (c *CPU) call() {
	target := c.readImmediateWord()
	c.pushStack(c.pc)
	c.pc = target
}

// ret pops the return address off the stack into pc.
func (c *CPU) ret() {
	c.pc = c.popStack()
}

// rst pushes pc and jumps to the fixed low-memory vector.
func (c *CPU) rst(vector uint16) {
	c.pushStack(c.pc)
	c.pc = vector
}
