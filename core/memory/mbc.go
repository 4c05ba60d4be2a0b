package memory

// MBC represents a Memory Bank Controller interface that all MBC types must implement
type MBC interface {
	// Read reads a byte from the specified address
	Read(addr uint16) uint8
	// Write writes a byte to the specified address, returns the written value
	Write(addr uint16, value uint8) uint8
}

// BatteryBacked is implemented by MBC types whose external/built-in RAM can
// be persisted to a .gbsave file. Cartridges without a battery (NoMBC, or an
// MBC1/2/3/5 cart whose header byte doesn't include BATTERY) don't implement it.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// RTCBacked is implemented by every MBC3; its methods only act on carts that
// have the real-time-clock variant (cartridge types 0x0F/0x10).
type RTCBacked interface {
	SaveRTC() []byte
	LoadRTC(data []byte)
	Tick(cycles int)
}

// NoMBC represents cartridges with no memory banking capabilities.
// These are typically smaller games (32KB or less) that fit entirely in the
// base memory region. The cartridge ROM is directly mapped to 0x0000-0x7FFF
// and cannot be banked/switched. These cartridges cannot have external RAM.
type NoMBC struct {
	rom []uint8 // ROM data
}

// NewNoMBC creates a new NoMBC controller
func NewNoMBC(romData []uint8) *NoMBC {
	return &NoMBC{
		rom: romData,
	}
}

func (m *NoMBC) Read(addr uint16) uint8 {
	// For NoMBC, we just read directly from ROM
	return m.rom[addr]
}

func (m *NoMBC) Write(addr uint16, value uint8) uint8 {
	// NoMBC doesn't support writing to ROM
	return 0
}

// MBC1 is the first and most common MBC chip. Features include:
// - Supports up to 2MB ROM (125 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Bank 0 always mapped to 0x0000-0x3FFF
// - Switchable ROM bank at 0x4000-0x7FFF
// - Optional RAM banking at 0xA000-0xBFFF
// - Two banking modes:
//   - Mode 0 (ROM): Allows access to full ROM but only 8KB RAM
//   - Mode 1 (RAM): Restricts ROM banking but allows full RAM access
// - Optional battery backup for RAM persistence
type MBC1 struct {
	rom          []uint8
	ram          []uint8
	romBank      uint8
	ramBank      uint8
	ramEnabled   bool
	bankingMode  uint8
	hasBattery   bool
	ramBankCount uint8
}

// NewMBC1 creates a new MBC1 controller
func NewMBC1(romData []uint8, hasBattery bool, ramBankCount uint8) *MBC1 {
	ramSize := uint32(ramBankCount) * 0x2000 // 8KB per RAM bank
	return &MBC1{
		rom:          romData,
		ram:          make([]uint8, ramSize),
		romBank:      1,
		ramBank:      0,
		ramEnabled:   false,
		bankingMode:  0,
		hasBattery:   hasBattery,
		ramBankCount: ramBankCount,
	}
}

func (m *MBC1) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		// ROM Bank 0
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		// Switchable ROM Bank
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			// If bank would be out of bounds, wrap around
			offset = offset % uint32(len(m.rom))
		}
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		// RAM Bank
		if !m.ramEnabled {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			// If bank would be out of bounds, wrap around
			offset = offset % uint32(len(m.ram))
		}
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		// RAM Enable
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		// ROM Bank Number (lower 5 bits)
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.romBank = (m.romBank & 0x60) | bank
	case addr >= 0x4000 && addr <= 0x5FFF:
		// RAM Bank Number or Upper ROM Bank Number
		if m.bankingMode == 0 {
			// ROM Banking mode - value goes to upper bits of ROM bank
			m.romBank = (m.romBank & 0x1F) | ((value & 0x03) << 5)
		} else {
			// RAM Banking mode - value goes to RAM bank
			m.ramBank = value & 0x03
		}
	case addr >= 0x6000 && addr <= 0x7FFF:
		// Banking Mode Select
		m.bankingMode = value & 0x01
		if m.bankingMode == 1 {
			// When switching to RAM banking mode, clear the upper bits of ROM bank
			m.romBank &= 0x1F
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		// RAM Bank
		if !m.ramEnabled {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset = (offset % uint32(len(m.ram)))
		}
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

// SaveRAM returns the external RAM contents for battery persistence.
func (m *MBC1) SaveRAM() []byte {
	return append([]byte(nil), m.ram...)
}

// LoadRAM restores the external RAM contents from a previous save.
func (m *MBC1) LoadRAM(data []byte) {
	copy(m.ram, data)
}

// MBC2 is a simpler MBC chip with built-in RAM. Features include:
// - Supports up to 256KB ROM (16 16KB banks)
// - Built-in 512x4 bits RAM (not external)
// - RAM is accessible only after writing 0x0A to the RAM-enable register
// - ROM banking similar to MBC1 but simpler
// - The least significant bit of the upper address byte selects between
//   the RAM-enable register and the ROM bank register
// - RAM is limited to 4-bit values (upper 4 bits are ignored)
// - Optional battery backup for the built-in RAM
type MBC2 struct {
	rom        []uint8
	ram        []uint8 // 512x4 bits RAM
	romBank    uint8
	ramEnabled bool
}

// NewMBC2 creates a new MBC2 controller
func NewMBC2(romData []uint8) *MBC2 {
	return &MBC2{
		rom:        romData,
		ram:        make([]uint8, 512),
		romBank:    1,
		ramEnabled: false,
	}
}

func (m *MBC2) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address >= 0x4000 && address <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset %= uint32(len(m.rom))
		}
		return m.rom[offset+uint32(address-0x4000)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		// built-in RAM is 512x4 bits, mirrored across the whole window and
		// readable only in the lower nibble - upper nibble always reads high.
		return m.ram[(address-0xA000)%512] | 0xF0
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(address uint16, value uint8) uint8 {
	switch {
	case address <= 0x3FFF:
		// bit 8 of the address (the LSB of the upper byte) selects RAM-enable
		// vs ROM-bank-select, matching the MBC2's single 4-bit register port.
		if address&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		m.ram[(address-0xA000)%512] = value & 0x0F
	}
	return value
}

// SaveRAM returns the built-in RAM contents for battery persistence.
func (m *MBC2) SaveRAM() []byte {
	return append([]byte(nil), m.ram...)
}

// LoadRAM restores the built-in RAM contents from a previous save.
func (m *MBC2) LoadRAM(data []byte) {
	n := copy(m.ram, data)
	_ = n
}

// MBC3 is an advanced MBC chip with RTC support. Features include:
// - Supports up to 2MB ROM (128 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Real-Time Clock (RTC) functionality
// - RTC has 5 registers: Seconds, Minutes, Hours, Days (lower), Days (upper)/Flags
// - Similar banking to MBC1 but with different register layout
// - RAM and RTC can be battery backed
// - Used in games that needed to track real time (e.g. Pokémon Gold/Silver)
// rtcSecondsIdx..rtcDaysHighIdx index the 5 RTC registers, both in their live
// form (m.rtc) and their latched form (m.latched), in the order MBC3 exposes
// them through the 0x08-0x0C "RAM bank" selector.
const (
	rtcSecondsIdx = iota
	rtcMinutesIdx
	rtcHoursIdx
	rtcDaysLowIdx
	rtcDaysHighIdx
)

// rtcDaysHighHalt and rtcDaysHighCarry are the flag bits packed into the
// days-high RTC register alongside the day counter's 9th bit (bit 0).
const (
	rtcDaysHighHalt  = 1 << 6
	rtcDaysHighCarry = 1 << 7
)

// cyclesPerSecond is the DMG/CGB single-speed clock rate in T-states; the RTC
// advances in real-time-equivalent seconds derived from cycles ticked by the
// Device, not the host's wall clock, so a save/restore cycle stays
// deterministic across runs driven by the same ROM.
const cyclesPerSecond = 4194304

type MBC3 struct {
	rom          []uint8
	ram          []uint8
	romBank      uint8
	ramBank      uint8 // 0x00-0x03 selects a RAM bank, 0x08-0x0C selects an RTC register
	ramEnabled   bool
	hasRTC       bool
	ramBankCount uint8

	rtc        [5]uint8 // live RTC registers, indexed by rtc*Idx
	latched    [5]uint8 // snapshot taken on the 0x00->0x01 latch sequence
	latchArmed bool      // saw a 0x00 write to 0x6000-7FFF, waiting for 0x01
	cycleAccum int64     // T-states accumulated toward the next RTC second
}

// NewMBC3 creates a new MBC3 controller.
func NewMBC3(romData []uint8, ramBankCount uint8, hasRTC bool) *MBC3 {
	ramSize := uint32(ramBankCount) * 0x2000
	return &MBC3{
		rom:          romData,
		ram:          make([]uint8, ramSize),
		romBank:      1,
		ramEnabled:   false,
		hasRTC:       hasRTC,
		ramBankCount: ramBankCount,
	}
}

func (m *MBC3) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address >= 0x4000 && address <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset %= uint32(len(m.rom))
		}
		return m.rom[offset+uint32(address-0x4000)]
	case address >= 0xA000 && address <= 0xBFFF:
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.latched[m.ramBank-0x08]
		}
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		return m.ram[offset+uint32(address-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(address uint16, value uint8) uint8 {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case address >= 0x2000 && address <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case address >= 0x4000 && address <= 0x5FFF:
		m.ramBank = value
	case address >= 0x6000 && address <= 0x7FFF:
		if value == 0x00 {
			m.latchArmed = true
		} else if value == 0x01 && m.latchArmed {
			m.latched = m.rtc
			m.latchArmed = false
		} else {
			m.latchArmed = false
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			idx := m.ramBank - 0x08
			if idx == rtcDaysHighIdx {
				value &= 0xC1 // carry, halt and day-bit9 are the only live bits
			}
			m.rtc[idx] = value
			return value
		}
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		m.ram[offset+uint32(address-0xA000)] = value
	}
	return value
}

// Tick advances the RTC by cycles T-states, rolling seconds into minutes,
// hours and the 9-bit day counter (with carry) once a full second has
// elapsed. A halted clock (bit 6 of days-high set) does not advance.
func (m *MBC3) Tick(cycles int) {
	if !m.hasRTC || m.rtc[rtcDaysHighIdx]&rtcDaysHighHalt != 0 {
		return
	}

	m.cycleAccum += int64(cycles)
	for m.cycleAccum >= cyclesPerSecond {
		m.cycleAccum -= cyclesPerSecond
		m.tickSecond()
	}
}

func (m *MBC3) tickSecond() {
	m.rtc[rtcSecondsIdx]++
	if m.rtc[rtcSecondsIdx] < 60 {
		return
	}
	m.rtc[rtcSecondsIdx] = 0

	m.rtc[rtcMinutesIdx]++
	if m.rtc[rtcMinutesIdx] < 60 {
		return
	}
	m.rtc[rtcMinutesIdx] = 0

	m.rtc[rtcHoursIdx]++
	if m.rtc[rtcHoursIdx] < 24 {
		return
	}
	m.rtc[rtcHoursIdx] = 0

	days := uint16(m.rtc[rtcDaysLowIdx]) | uint16(m.rtc[rtcDaysHighIdx]&0x01)<<8
	days++
	m.rtc[rtcDaysLowIdx] = uint8(days)
	if days > 0x1FF {
		m.rtc[rtcDaysHighIdx] |= rtcDaysHighCarry
		days &= 0x1FF
		m.rtc[rtcDaysLowIdx] = uint8(days)
	}
	m.rtc[rtcDaysHighIdx] = (m.rtc[rtcDaysHighIdx] &^ 0x01) | uint8(days>>8)
}

// SaveRAM returns the external RAM contents for battery persistence.
func (m *MBC3) SaveRAM() []byte {
	return append([]byte(nil), m.ram...)
}

// LoadRAM restores the external RAM contents from a previous save.
func (m *MBC3) LoadRAM(data []byte) {
	copy(m.ram, data)
}

// SaveRTC returns the 10 live+latched RTC register bytes appended to
// .gbsave files for RTC-equipped carts.
func (m *MBC3) SaveRTC() []byte {
	if !m.hasRTC {
		return nil
	}
	out := make([]byte, 0, 10)
	out = append(out, m.rtc[:]...)
	out = append(out, m.latched[:]...)
	return out
}

// LoadRTC restores RTC state from the bytes SaveRTC previously produced.
func (m *MBC3) LoadRTC(data []byte) {
	if !m.hasRTC || len(data) < 10 {
		return
	}
	copy(m.rtc[:], data[:5])
	copy(m.latched[:], data[5:10])
}

// MBC5 is the most advanced MBC chip. Features include:
// - Supports up to 8MB ROM (512 16KB banks)
// - Up to 128KB RAM (16 8KB banks)
// - Simple ROM/RAM banking with no quirks (unlike MBC1)
// - 9-bit ROM bank number (allows all 512 banks to be directly accessed)
// - Optional rumble motor support
// - Used in Game Boy Color games that needed more ROM/RAM
// - Backwards compatible with Game Boy
type MBC5 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint16 // MBC5 supports up to 512 ROM banks
	ramBank    uint8
	ramEnabled bool
	hasRumble  bool
}

// NewMBC5 creates a new MBC5 controller
func NewMBC5(romData []uint8, hasRumble bool, ramBankCount uint8) *MBC5 {
	ramSize := uint32(ramBankCount) * 0x2000
	return &MBC5{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		ramEnabled: false,
		hasRumble:  hasRumble,
	}
}

func (m *MBC5) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address >= 0x4000 && address <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset %= uint32(len(m.rom))
		}
		return m.rom[offset+uint32(address-0x4000)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		return m.ram[offset+uint32(address-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC5) Write(address uint16, value uint8) uint8 {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case address >= 0x2000 && address <= 0x2FFF:
		// low 8 bits of the 9-bit ROM bank number
		m.romBank = (m.romBank & 0x100) | uint16(value)
	case address >= 0x3000 && address <= 0x3FFF:
		// bit 9 of the ROM bank number, in bit 0 of the written byte
		m.romBank = (m.romBank & 0xFF) | (uint16(value&0x01) << 8)
	case address >= 0x4000 && address <= 0x5FFF:
		// lower nibble selects RAM bank (0-15); upper nibble is unused here,
		// rumble carts wire it to the motor instead of RAM addressing
		m.ramBank = value & 0x0F
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		m.ram[offset+uint32(address-0xA000)] = value
	}
	return value
}

// SaveRAM returns the external RAM contents for battery persistence.
func (m *MBC5) SaveRAM() []byte {
	return append([]byte(nil), m.ram...)
}

// LoadRAM restores the external RAM contents from a previous save.
func (m *MBC5) LoadRAM(data []byte) {
	copy(m.ram, data)
}
