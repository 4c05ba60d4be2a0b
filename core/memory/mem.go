package memory

import (
	"fmt"
	"log/slog"

	"github.com/arxyzan/goboy/core/addr"
	"github.com/arxyzan/goboy/core/audio"
	"github.com/arxyzan/goboy/core/bit"
	"github.com/arxyzan/goboy/core/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// MMU allows access to all memory mapped I/O and data/registers
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	joypadButtons uint8 // Actual state of buttons A/B/Start/Select, mapped to low bits of P1
	joypadDpad    uint8 // Actual state of d-pad directions, mapped to low bits of P1

	serial SerialPort
	timer  Timer

	oamDMACycles int // remaining T-states of an active OAM DMA transfer (160 M-cycles); OAM reads return 0xFF while > 0

	cgb cgbState
}

// cgbState holds the CGB-only registers and banked memory that a DMG cart
// never touches: VRAM bank 1, WRAM banks 1-7, the speed-switch register, the
// two palette RAMs, and the HDMA transfer state machine.
type cgbState struct {
	enabled bool

	vram     [2][0x2000]byte // bank 0 mirrors the flat memory array's 0x8000-0x9FFF window
	vramBank uint8

	wram     [8][0x1000]byte // bank 0 mirrors 0xC000-0xCFFF, banks 1-7 are switchable at 0xD000-0xDFFF
	wramBank uint8

	key1 uint8 // bit0 arm, bit7 current speed (readonly)

	bgPalette    [64]byte
	objPalette   [64]byte
	bgPaletteIdx uint8
	objPaletteIdx uint8

	hdmaSrc, hdmaDst uint16
	hdmaLen          uint16 // remaining length in bytes
	hdmaActive       bool
	hdmaHBlankMode   bool
}

// New creates a new memory unity with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory:        make([]byte, 0x10000),
		cart:          NewCartridge(),
		APU:           audio.New(),
		joypadButtons: 0x0F,
		joypadDpad:    0x0F,
	}
	mmu.serial = serial.NewLogSink(func() { mmu.RequestInterrupt(addr.SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	initRegionMap(mmu)
	return mmu
}

// EnableCGB switches the MMU into CGB mode, activating the VRAM/WRAM bank
// registers, palette RAM and HDMA. Must be called once, right after
// construction, before any ROM code runs.
func (m *MMU) EnableCGB() {
	m.cgb.enabled = true
	m.cgb.wramBank = 1
}

// IsCGB reports whether CGB-only registers and banking are active.
func (m *MMU) IsCGB() bool {
	return m.cgb.enabled
}

// SetSerialDevice swaps the device wired to SB/SC, e.g. to attach a
// serial.Printer in place of the default serial.LogSink.
func (m *MMU) SetSerialDevice(dev SerialPort) {
	m.serial = dev
}

// IsDoubleSpeedArmed reports whether a STOP-triggered speed switch is
// pending (KEY1 bit 0 set by the CPU).
func (m *MMU) IsDoubleSpeedArmed() bool {
	return m.cgb.key1&0x01 != 0
}

// CommitSpeedSwitch flips the reported current speed (KEY1 bit 7) and
// clears the arm bit; called by the CPU once STOP completes the switch.
func (m *MMU) CommitSpeedSwitch() {
	m.cgb.key1 ^= 0x80
	m.cgb.key1 &^= 0x01
}

// Tick advances any i/o that needs it, if any.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
	if rtc, ok := m.mbc.(RTCBacked); ok {
		rtc.Tick(cycles)
	}
	if m.oamDMACycles > 0 {
		m.oamDMACycles -= cycles
		if m.oamDMACycles < 0 {
			m.oamDMACycles = 0
		}
	}
}

// OnHBlank is called by the GPU every time it enters HBlank. When an
// HBlank-paced HDMA transfer is active it copies one 16-byte block from
// ROM/RAM into VRAM, matching real hardware's per-line HDMA pacing.
func (m *MMU) OnHBlank() {
	if !m.cgb.hdmaActive || !m.cgb.hdmaHBlankMode || m.cgb.hdmaLen == 0 {
		return
	}
	m.copyHDMABlock(0x10)
	if m.cgb.hdmaLen == 0 {
		m.cgb.hdmaActive = false
	}
}

func (m *MMU) copyHDMABlock(length uint16) {
	if length > m.cgb.hdmaLen {
		length = m.cgb.hdmaLen
	}
	for i := uint16(0); i < length; i++ {
		m.writeVRAMBank(m.cgb.vramBank, m.cgb.hdmaDst+i, m.Read(m.cgb.hdmaSrc+i))
	}
	m.cgb.hdmaSrc += length
	m.cgb.hdmaDst += length
	m.cgb.hdmaLen -= length
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) *MMU {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data)
	case MBC1Type:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount) // FIXME: add support for multicart
	case MBC2Type:
		mmu.mbc = NewMBC2(cart.data)
	case MBC3Type:
		mmu.mbc = NewMBC3(cart.data, cart.ramBankCount, cart.hasRTC)
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.hasRumble, cart.ramBankCount)
	case MBCUnknownType:
		panic("unsupported MBC type: unknown")
	default:
		panic(fmt.Sprintf("unsupported MBC type: %d", cart.mbcType))
	}

	return mmu
}

// Cartridge exposes the currently loaded cartridge, e.g. for the Device's
// romname() and battery-file naming.
func (m *MMU) Cartridge() *Cartridge {
	return m.cart
}

// HasBattery reports whether the loaded cartridge's MBC should be
// persisted to a .gbsave file.
func (m *MMU) HasBattery() bool {
	return m.cart != nil && m.cart.hasBattery
}

// SaveBattery returns the bytes to persist to a .gbsave file: the MBC's
// external/built-in RAM, with RTC register bytes appended for MBC3+RTC
// cartridges (absent entirely for carts without a battery).
func (m *MMU) SaveBattery() []byte {
	backed, ok := m.mbc.(BatteryBacked)
	if !ok {
		return nil
	}
	data := backed.SaveRAM()
	if rtc, ok := m.mbc.(RTCBacked); ok {
		data = append(data, rtc.SaveRTC()...)
	}
	return data
}

// LoadBattery restores RAM (and RTC state, if present) from bytes
// previously produced by SaveBattery.
func (m *MMU) LoadBattery(data []byte) {
	backed, ok := m.mbc.(BatteryBacked)
	if !ok || len(data) == 0 {
		return
	}
	ramLen := len(data)
	if rtc, ok := m.mbc.(RTCBacked); ok && m.cart != nil && m.cart.hasRTC && ramLen >= 10 {
		ramLen -= 10
		rtc.LoadRTC(data[ramLen:])
	}
	backed.LoadRAM(data[:ramLen])
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	interruptFlags := m.Read(addr.IF)

	var bitPos uint8
	switch interrupt {
	case addr.VBlankInterrupt:
		bitPos = 0
	case addr.LCDSTATInterrupt:
		bitPos = 1
	case addr.TimerInterrupt:
		bitPos = 2
	case addr.SerialInterrupt:
		bitPos = 3
	case addr.JoypadInterrupt:
		bitPos = 4
	default:
		panic(fmt.Sprintf("Unknown interrupt: 0x%02X", uint8(interrupt)))
	}

	newFlags := bit.Set(bitPos, interruptFlags)

	m.Write(addr.IF, newFlags)
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// vramOffset turns an absolute 0x8000-0x9FFF address into an offset into
// whichever VRAM bank array is currently selected.
func vramOffset(address uint16) uint16 { return address - 0x8000 }

// wramBankFor turns an absolute 0xC000-0xDFFF address into an offset into
// whichever WRAM bank array it maps to, returning the bank and the offset.
func wramBankFor(address uint16, selected uint8) (bank uint8, offset uint16) {
	if address < 0xD000 {
		return 0, address - 0xC000
	}
	if selected == 0 {
		selected = 1
	}
	return selected, address - 0xD000
}

// ReadVRAMBank reads a byte from a specific VRAM bank, independent of VBK -
// used by the GPU to fetch bank-1 CGB BG attributes while bank 0 holds tile
// indices at the same address.
func (m *MMU) ReadVRAMBank(bank uint8, address uint16) byte {
	return m.cgb.vram[bank&1][vramOffset(address)]
}

func (m *MMU) writeVRAMBank(bank uint8, address uint16, value byte) {
	m.cgb.vram[bank&1][vramOffset(address)] = value
}

func (m *MMU) Read(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Reading from ROM/external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM:
		return m.cgb.vram[m.cgb.vramBank&1][vramOffset(address)]
	case regionWRAM:
		bank, off := wramBankFor(address, m.cgb.wramBank)
		return m.cgb.wram[bank][off]
	case regionEcho:
		if address <= 0xFDFF {
			bank, off := wramBankFor(address-0x2000, m.cgb.wramBank)
			return m.cgb.wram[bank][off]
		}
		return m.memory[address-0x2000]
	case regionOAM:
		if m.oamDMACycles > 0 {
			return 0xFF
		}
		return m.memory[address]
	case regionIO:
		if address == addr.SB || address == addr.SC {
			return m.serial.Read(address)
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			return m.timer.Read(address)
		}
		if address >= 0xFF10 && address <= 0xFF3F {
			return m.APU.ReadRegister(address)
		}
		if m.cgb.enabled {
			if v, ok := m.readCGBRegister(address); ok {
				return v
			}
		}
		// Just in case, we always read the upper 3 bits of IF as 1.
		// They're not used, but have caused me some headaches when checking for
		// when the halt bug triggers (IF != 0).
		if address == addr.IF {
			return m.memory[address] | 0xE0
		}
		if address >= 0xFF80 {
			// HRAM
			return m.memory[address]
		}
		// Other IO registers
		return m.memory[address]
	default:
		panic(fmt.Sprintf("Attempted read at unmapped address: 0x%X", address))
	}
}

// readCGBRegister handles the CGB-only I/O registers. Returns ok=false for
// anything outside that set so the caller falls through to generic handling.
func (m *MMU) readCGBRegister(address uint16) (byte, bool) {
	switch address {
	case addr.VBK:
		return 0xFE | m.cgb.vramBank, true
	case addr.SVBK:
		return 0xF8 | m.cgb.wramBank, true
	case addr.KEY1:
		return m.cgb.key1 | 0x7E, true
	case addr.HDMA5:
		if !m.cgb.hdmaActive {
			return 0xFF, true
		}
		return byte((m.cgb.hdmaLen/0x10)-1) & 0x7F, true
	case addr.BCPS:
		return m.cgb.bgPaletteIdx, true
	case addr.BCPD:
		return m.cgb.bgPalette[m.cgb.bgPaletteIdx&0x3F], true
	case addr.OCPS:
		return m.cgb.objPaletteIdx, true
	case addr.OCPD:
		return m.cgb.objPalette[m.cgb.objPaletteIdx&0x3F], true
	default:
		return 0, false
	}
}

// writeCGBRegister handles the CGB-only I/O registers. Returns true if the
// address was one of them (caller should not fall through to the generic
// IO-register handling in that case).
func (m *MMU) writeCGBRegister(address uint16, value byte) bool {
	switch address {
	case addr.VBK:
		m.cgb.vramBank = value & 0x01
	case addr.SVBK:
		m.cgb.wramBank = value & 0x07
	case addr.KEY1:
		m.cgb.key1 = (m.cgb.key1 & 0x80) | (value & 0x01)
	case addr.HDMA1:
		m.cgb.hdmaSrc = (m.cgb.hdmaSrc & 0x00FF) | uint16(value)<<8
	case addr.HDMA2:
		m.cgb.hdmaSrc = (m.cgb.hdmaSrc & 0xFF00) | uint16(value&0xF0)
	case addr.HDMA3:
		m.cgb.hdmaDst = 0x8000 | (m.cgb.hdmaDst & 0x00FF) | uint16(value&0x1F)<<8
	case addr.HDMA4:
		m.cgb.hdmaDst = 0x8000 | (m.cgb.hdmaDst & 0xFF00) | uint16(value&0xF0)
	case addr.HDMA5:
		m.startHDMA(value)
	case addr.BCPS:
		m.cgb.bgPaletteIdx = value & 0xBF
	case addr.BCPD:
		idx := m.cgb.bgPaletteIdx & 0x3F
		m.cgb.bgPalette[idx] = value
		if m.cgb.bgPaletteIdx&0x80 != 0 {
			m.cgb.bgPaletteIdx = 0x80 | ((idx + 1) & 0x3F)
		}
	case addr.OCPS:
		m.cgb.objPaletteIdx = value & 0xBF
	case addr.OCPD:
		idx := m.cgb.objPaletteIdx & 0x3F
		m.cgb.objPalette[idx] = value
		if m.cgb.objPaletteIdx&0x80 != 0 {
			m.cgb.objPaletteIdx = 0x80 | ((idx + 1) & 0x3F)
		}
	default:
		return false
	}
	return true
}

// startHDMA begins a general-purpose or HBlank-paced VRAM DMA transfer as
// described by a write to HDMA5. Writing bit7=0 while an HBlank transfer is
// active aborts it instead of starting a new one.
func (m *MMU) startHDMA(value byte) {
	if m.cgb.hdmaActive && m.cgb.hdmaHBlankMode && value&0x80 == 0 {
		m.cgb.hdmaActive = false
		return
	}

	length := (uint16(value&0x7F) + 1) * 0x10
	m.cgb.hdmaLen = length
	m.cgb.hdmaHBlankMode = value&0x80 != 0
	m.cgb.hdmaActive = true

	if !m.cgb.hdmaHBlankMode {
		m.copyHDMABlock(length)
		m.cgb.hdmaActive = false
	}
}

// BGPaletteColor returns the 15-bit (little-endian) CGB color stored at the
// given palette/color-index slot, used by the GPU when composing CGB frames.
func (m *MMU) BGPaletteColor(palette, colorIdx uint8) uint16 {
	off := (palette&0x07)*8 + (colorIdx&0x03)*2
	return uint16(m.cgb.bgPalette[off]) | uint16(m.cgb.bgPalette[off+1])<<8
}

// OBJPaletteColor is BGPaletteColor's counterpart for sprite palettes.
func (m *MMU) OBJPaletteColor(palette, colorIdx uint8) uint16 {
	off := (palette&0x07)*8 + (colorIdx&0x03)*2
	return uint16(m.cgb.objPalette[off]) | uint16(m.cgb.objPalette[off+1])<<8
}

func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			slog.Warn("Writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		m.cgb.vram[m.cgb.vramBank&1][vramOffset(address)] = value
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Writing to external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		bank, off := wramBankFor(address, m.cgb.wramBank)
		m.cgb.wram[bank][off] = value
	case regionEcho:
		if address <= 0xFDFF {
			bank, off := wramBankFor(address-0x2000, m.cgb.wramBank)
			m.cgb.wram[bank][off] = value
		}
	case regionOAM:
		m.memory[address] = value
	case regionIO:
		if address == addr.P1 {
			m.writeJoypad(value)
			return
		}
		if address == addr.SB || address == addr.SC {
			m.serial.Write(address, value)
			return
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			m.timer.Write(address, value)
			return
		}
		if address >= 0xFF10 && address <= 0xFF3F {
			m.APU.WriteRegister(address, value)
			return
		}
		if m.cgb.enabled && m.writeCGBRegister(address, value) {
			return
		}
		if address == addr.IF {
			// This goddamn register has its upper 3 bits always set as 1...
			// Beware if you're trying to match halt bug behavior.
			m.memory[address] = value | 0xE0
			return
		}
		if address == addr.DMA {
			sourceAddr := uint16(value) << 8
			// DMA transfer copies 160 bytes from source to OAM. Real hardware
			// takes 160 M-cycles during which the CPU can't see OAM; we copy
			// eagerly and gate visibility for that long instead.
			for i := range uint16(160) {
				m.memory[0xFE00+i] = m.Read(sourceAddr + i)
			}
			m.memory[address] = value
			m.oamDMACycles = 160 * 4
			return
		}
		if address >= 0xFF80 {
			// HRAM
			m.memory[address] = value
			return
		}
		// Other IO registers
		m.memory[address] = value
	default:
		panic(fmt.Sprintf("Attempted write at unmapped address: 0x%X", address))
	}
}

// updateJoypadRegister sets the joypad register (P1) according to selection bits
// and hardware (buttons) status.
//
// In real hw, this register is actually just a selector (bits 4-5) that control
// to which set of buttons the low bits (0-3) are mapped to.
//
// The mapping (a selection bit selects its group when it is 0):
//   - if bit 4 is clear, bits 0-3 are mapped to the 4 d-pad directions
//   - if bit 5 is clear, bits 0-3 are mapped to A, B, Start, Select
//   - if both are clear, hw does an AND of both button sets
//   - if both are set, return 0x0F (high impedence state)
//
// This function is called whenever:
//   - there is a write to the P1 register (only set bits 4-5)
//   - a button is pressed or released (tracked separately)
//
// Note that 1 -> button released, 0 -> button pressed.
// Bits 6-7 are unused, they always read as 1 on real hardware.
func (m *MMU) updateJoypadRegister() {
	p1 := m.memory[addr.P1]
	result := uint8(0b11000000) // Bits 6-7 are always read as 1
	result |= p1 & 0b00110000   // Keep selection bits 4-5

	// A button group is selected if the corresponding bit is 0
	selectDpad := !bit.IsSet(4, p1)
	selectButtons := !bit.IsSet(5, p1)

	switch {
	case selectButtons && !selectDpad:
		result |= m.joypadButtons & 0x0F
	case selectDpad && !selectButtons:
		result |= m.joypadDpad & 0x0F
	case selectButtons && selectDpad:
		result |= m.joypadButtons & m.joypadDpad & 0x0F
	default:
		// no selection
		result |= 0x0F
	}

	m.memory[addr.P1] = result
}

func (m *MMU) writeJoypad(value uint8) {
	// Only bits 4-5 are writable (selection bits)
	m.memory[addr.P1] = value & 0b00110000
	m.updateJoypadRegister()
}

func (m *MMU) HandleKeyPress(key JoypadKey) {
	oldButtons := m.joypadButtons
	oldDpad := m.joypadDpad

	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Reset(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Reset(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Reset(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Reset(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Reset(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Reset(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Reset(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Reset(3, m.joypadButtons)
	}

	buttonTransitions := oldButtons & ^m.joypadButtons
	dpadTransitions := oldDpad & ^m.joypadDpad
	if buttonTransitions|dpadTransitions != 0 {
		m.RequestInterrupt(addr.JoypadInterrupt)
	}

	m.updateJoypadRegister()
}

func (m *MMU) HandleKeyRelease(key JoypadKey) {
	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Set(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Set(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Set(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Set(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Set(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Set(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Set(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Set(3, m.joypadButtons)
	}

	m.updateJoypadRegister()
}
