package core

import "errors"

// Sentinel errors returned by New/NewCGB (via NewWithFile) when a ROM
// image can't be turned into a running Device. Wrapped with fmt.Errorf's
// %w so callers can errors.Is against them while still seeing the
// underlying I/O or header detail in the message.
var (
	// ErrFileOpen means the ROM path couldn't be read from disk.
	ErrFileOpen = errors.New("could not open rom file")

	// ErrHeaderInvalid means the image is too short to hold a header, or
	// its embedded Nintendo logo bitmap doesn't match.
	ErrHeaderInvalid = errors.New("invalid rom header")

	// ErrUnsupportedMBC means the cartridge-type byte doesn't map to an
	// MBC variant this core implements.
	ErrUnsupportedMBC = errors.New("unsupported cartridge/MBC type")

	// ErrHeaderChecksum means the header checksum byte doesn't match the
	// recomputed value; callers can allow this with skipChecksum.
	ErrHeaderChecksum = errors.New("rom header checksum mismatch")
)
