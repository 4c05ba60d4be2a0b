package serial

import (
	"log/slog"

	"github.com/arxyzan/goboy/core/addr"
	"github.com/arxyzan/goboy/core/bit"
)

// Printer protocol command bytes, from the GB Printer's packet header.
const (
	cmdInit  = 0x01
	cmdPrint = 0x02
	cmdData  = 0x04
	cmdStat  = 0x0F
)

const printerPacketMagic = 0x8833

// Printer emulates the Game Boy Printer protocol enough to capture print
// jobs without a real thermal printer attached: it accumulates the tile
// data a game sends via the cmdData/cmdPrint packets into completed pages,
// exposed through Pages for a host to render or discard.
type Printer struct {
	irqHandler func()
	sb, sc     byte

	shiftIn, shiftOut byte
	bitCount          int
	synced            bool
	magicLow          bool

	packet      []byte
	expectedLen int
	stage       int // 0=command,1=compression,2=lenLo,3=lenHi,4=data,5=checksumLo,6=checksumHi,7=keepAlive,8=status

	imageData []byte
	Pages     [][]byte // completed print jobs, one tall strip of 2bpp tile rows each
}

// NewPrinter creates a new emulated Game Boy Printer. The passed function
// is called after each byte transfer completes, wired to the Serial interrupt.
func NewPrinter(irq func()) *Printer {
	return &Printer{irqHandler: irq}
}

func (p *Printer) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		p.sb = value
	case addr.SC:
		p.sc = value
		p.maybeTransfer()
	default:
		panic("serial.Printer: invalid write address")
	}
}

func (p *Printer) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return p.sb
	case addr.SC:
		return p.sc
	default:
		panic("serial.Printer: invalid read address")
	}
}

func (p *Printer) Tick(cycles int) {}

func (p *Printer) Reset() {
	p.sb, p.sc = 0, 0
	p.stage = 0
	p.packet = p.packet[:0]
	p.imageData = p.imageData[:0]
}

func (p *Printer) maybeTransfer() {
	if !bit.IsSet(7, p.sc) || !bit.IsSet(0, p.sc) {
		return
	}

	in := p.sb
	out := p.step(in)
	p.sb = out
	p.sc = bit.Clear(7, p.sc)
	if p.irqHandler != nil {
		p.irqHandler()
	}
}

// step feeds one incoming byte through the printer's packet parser and
// returns the reply byte (0x00 until the status byte is requested).
func (p *Printer) step(in byte) byte {
	p.packet = append(p.packet, in)

	// A full packet: 2 magic bytes, command, compression, 2-byte length,
	// <length> data bytes, 2-byte checksum, then a keep-alive + status
	// request round trip.
	const headerLen = 6
	if len(p.packet) == headerLen {
		length := int(p.packet[4]) | int(p.packet[5])<<8
		p.expectedLen = headerLen + length + 2
	}
	if p.expectedLen != 0 && len(p.packet) == p.expectedLen {
		p.finishPacket()
		p.packet = p.packet[:0]
		p.expectedLen = 0
		return 0x81 // keep-alive ack; status follows on the next byte
	}
	if p.expectedLen == 0 && len(p.packet) > 2 && p.packet[len(p.packet)-1] == cmdStat {
		return 0x00
	}
	return 0x00
}

func (p *Printer) finishPacket() {
	if len(p.packet) < 6 {
		return
	}
	command := p.packet[2]
	length := int(p.packet[4]) | int(p.packet[5])<<8
	data := p.packet[6 : 6+min(length, len(p.packet)-6)]

	switch command {
	case cmdData:
		p.imageData = append(p.imageData, data...)
		slog.Debug("printer: data chunk received", "bytes", len(data))
	case cmdPrint:
		if len(p.imageData) > 0 {
			page := make([]byte, len(p.imageData))
			copy(page, p.imageData)
			p.Pages = append(p.Pages, page)
			slog.Info("printer: page printed", "bytes", len(page))
		}
		p.imageData = p.imageData[:0]
	case cmdInit:
		p.imageData = p.imageData[:0]
	}
}
