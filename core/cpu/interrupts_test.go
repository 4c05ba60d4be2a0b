package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/arxyzan/goboy/core/addr"
	"github.com/arxyzan/goboy/core/memory"
)

func TestInterruptHandling(t *testing.T) {
	t.Run("interrupts not serviced while IME is disabled", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.pc = 0x100

		mmu.Write(addr.IF, 0x01)
		mmu.Write(addr.IE, 0x01)

		_, serviced := cpu.serviceInterrupt()
		assert.False(t, serviced)
		assert.Equal(t, uint16(0x100), cpu.pc)
	})

	t.Run("EI enables interrupts with one instruction delay", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)

		opcode0xFB(cpu)
		assert.Equal(t, imePending, cpu.ime)

		// Step() applies the delay before fetching the next instruction.
		if cpu.ime == imePending {
			cpu.ime = imeEnabled
		}

		assert.Equal(t, imeEnabled, cpu.ime)
	})

	t.Run("DI disables interrupts immediately", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeEnabled

		opcode0xF3(cpu)
		assert.Equal(t, imeDisabled, cpu.ime)
	})

	t.Run("interrupt priority order services VBlank first", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeEnabled

		mmu.Write(addr.IF, 0x1F)
		mmu.Write(addr.IE, 0x1F)

		cpu.serviceInterrupt()

		assert.Equal(t, uint16(0x40), cpu.pc)
		assert.Equal(t, uint8(0x1E), mmu.Read(addr.IF))
	})

	t.Run("RETI enables interrupts and returns", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeDisabled
		cpu.sp = 0xFFFE
		cpu.pc = 0x200

		cpu.pushStack(0x150)

		opcode0xD9(cpu)

		assert.Equal(t, imeEnabled, cpu.ime)
		assert.Equal(t, uint16(0x150), cpu.pc)
	})
}

func TestHALTBehavior(t *testing.T) {
	t.Run("HALT with IME=1 and pending interrupt wakes and services", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeEnabled

		opcode0x76(cpu)
		assert.True(t, cpu.halted)

		mmu.Write(addr.IF, 0x01)
		mmu.Write(addr.IE, 0x01)

		_, serviced := cpu.serviceInterrupt()
		assert.True(t, serviced)
		assert.False(t, cpu.halted)
		assert.Equal(t, uint16(0x40), cpu.pc)
	})

	t.Run("HALT with IME=0 and pending interrupt triggers the halt bug", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeDisabled
		cpu.pc = 0x100

		mmu.Write(addr.IF, 0x01)
		mmu.Write(addr.IE, 0x01)

		opcode0x76(cpu)
		assert.True(t, cpu.haltBug)
		assert.False(t, cpu.halted)
		assert.Equal(t, uint16(0x100), cpu.pc)
	})

	t.Run("HALT with IME=0 and no interrupt stays halted", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeDisabled

		mmu.Write(addr.IF, 0x00)
		mmu.Write(addr.IE, 0x01)

		opcode0x76(cpu)
		assert.True(t, cpu.halted)
		assert.False(t, cpu.haltBug)

		_, serviced := cpu.serviceInterrupt()
		assert.False(t, serviced)
		assert.True(t, cpu.halted)
	})
}

func TestInterruptTiming(t *testing.T) {
	t.Run("interrupt dispatch takes 20 cycles", func(t *testing.T) {
		mmu := memory.New()
		cpu := New(mmu, ModelDMG)
		cpu.ime = imeEnabled

		mmu.Write(addr.IF, 0x01)
		mmu.Write(addr.IE, 0x01)

		cycles, serviced := cpu.serviceInterrupt()

		assert.True(t, serviced)
		assert.Equal(t, 20, cycles)
	})
}
