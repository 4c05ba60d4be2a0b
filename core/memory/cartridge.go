package memory

import (
	"fmt"

	"github.com/arxyzan/goboy/core/util"
)

const titleLength = 11

// MBCType identifies which memory bank controller a cartridge header
// requires, derived from the cartridge-type byte at 0x147.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// ramBankCounts maps the RAM-size header byte (0x149) to the number of
// 8KB RAM banks a cartridge exposes.
var ramBankCounts = map[uint8]uint8{
	0x00: 0,
	0x01: 1, // unofficial 2KB size, still allocate a full bank
	0x02: 1,
	0x03: 4,
	0x04: 16,
	0x05: 8,
}

// classifyCartType maps the cartridge-type header byte (0x147) to the MBC
// variant plus battery/RTC/rumble capabilities it implies.
// Reference: https://gbdev.io/pandocs/The_Cartridge_Header.html#0147--cartridge-type
func classifyCartType(cartType uint8) (mbcType MBCType, hasBattery, hasRTC, hasRumble bool) {
	switch cartType {
	case 0x00:
		return NoMBCType, false, false, false
	case 0x01, 0x02:
		return MBC1Type, false, false, false
	case 0x03:
		return MBC1Type, true, false, false
	case 0x05:
		return MBC2Type, false, false, false
	case 0x06:
		return MBC2Type, true, false, false
	case 0x0F, 0x10:
		return MBC3Type, true, true, false
	case 0x11, 0x12:
		return MBC3Type, false, false, false
	case 0x13:
		return MBC3Type, true, false, false
	case 0x19, 0x1A:
		return MBC5Type, false, false, false
	case 0x1B:
		return MBC5Type, true, false, false
	case 0x1C, 0x1D:
		return MBC5Type, false, false, true
	case 0x1E:
		return MBC5Type, true, false, true
	default:
		return MBCUnknownType, false, false, false
	}
}

const (
	entryPointAddress       = 0x100
	logoAddress             = 0x104
	titleAddress            = 0x134
	manufacturerCodeAddress = 0x13F
	cgbFlagAddress          = 0x143
	newLicenseCodeAddress   = 0x144
	sgbFlagAddress          = 0x146
	cartridgeTypeAddress    = 0x147
	romSizeAddress          = 0x148
	ramSizeAddress          = 0x149
	destinationCodeAddress  = 0x14A
	oldLicenseCodeAddress   = 0x14B
	versionNumberAddress    = 0x14C
	headerChecksumAddress   = 0x14D
	globalChecksumAddress   = 0x14E
)

// nintendoLogo is the fixed 48-byte bitmap the boot ROM compares against
// 0x104-0x133; a mismatch means the file isn't a real Game Boy ROM image.
var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83,
	0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB, 0xBB, 0x67, 0x63,
	0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint16
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
	isCGB        bool
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes,
// parsing the header fields and resolving the cartridge-type byte into an
// MBC variant plus battery/RTC/rumble capabilities.
func NewCartridgeWithData(bytes []byte) *Cartridge {
	titleBytes := bytes[titleAddress : titleAddress+titleLength]
	cartType := bytes[cartridgeTypeAddress]
	ramSize := bytes[ramSizeAddress]

	mbcType, hasBattery, hasRTC, hasRumble := classifyCartType(cartType)
	ramBankCount := ramBankCounts[ramSize]
	if mbcType == MBC2Type {
		// MBC2's 512x4-bit RAM is built into the controller, not sized by the header.
		ramBankCount = 0
	}

	cart := &Cartridge{
		data:           make([]byte, len(bytes)),
		title:          cleanGameboyTitle(titleBytes),
		headerChecksum: util.CombineBytes(bytes[headerChecksumAddress+1], bytes[headerChecksumAddress]),
		globalChecksum: util.CombineBytes(bytes[globalChecksumAddress+1], bytes[globalChecksumAddress]),
		version:        bytes[versionNumberAddress],
		cartType:       cartType,
		romSize:        bytes[romSizeAddress],
		ramSize:        ramSize,
		mbcType:        mbcType,
		hasBattery:     hasBattery,
		hasRTC:         hasRTC,
		hasRumble:      hasRumble,
		ramBankCount:   ramBankCount,
		isCGB:          bytes[cgbFlagAddress]&0x80 != 0,
	}

	copy(cart.data, bytes)

	return cart
}

// ReadByte reads a byte at the specified address. Does not check bounds, so the caller must make sure the
// address is valid for the cartridge.
func (c Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// WriteByte ignores value and returns the byte already stored at the specified address; the cartridge
// data is never modified. RAM writes and bank switching are handled by the MBC, not here.
func (c Cartridge) WriteByte(addr uint16, value uint8) uint8 {
	return c.data[addr]
}

// Title returns the cleaned cartridge title from the header.
func (c *Cartridge) Title() string {
	return c.title
}

// SupportsColor reports whether the header's CGB flag byte marks this
// cartridge as CGB-compatible or CGB-exclusive.
func (c *Cartridge) SupportsColor() bool {
	return c.isCGB
}

// HasValidLogo compares the embedded Nintendo logo bitmap against the
// fixed reference bytes the boot ROM itself checks.
func (c *Cartridge) HasValidLogo() bool {
	if len(c.data) < int(logoAddress)+len(nintendoLogo) {
		return false
	}
	for i, want := range nintendoLogo {
		if c.data[int(logoAddress)+i] != want {
			return false
		}
	}
	return true
}

// HasValidHeaderChecksum recomputes the header checksum over 0x134-0x14C
// and compares it against the stored byte, mirroring the boot ROM's own
// verification loop.
func (c *Cartridge) HasValidHeaderChecksum() bool {
	var sum uint8
	for i := titleAddress; i < headerChecksumAddress; i++ {
		sum = sum - c.data[i] - 1
	}
	return sum == uint8(c.headerChecksum>>8)
}

// IsKnownMBC reports whether the cartridge-type byte resolved to a
// supported MBC variant.
func (c *Cartridge) IsKnownMBC() bool {
	return c.mbcType != MBCUnknownType
}

func (c *Cartridge) String() string {
	return fmt.Sprintf("%s (type=0x%02X mbc=%d battery=%v rtc=%v rumble=%v ram_banks=%d cgb=%v)",
		c.title, c.cartType, c.mbcType, c.hasBattery, c.hasRTC, c.hasRumble, c.ramBankCount, c.isCGB)
}
