package core

import (
	"github.com/arxyzan/goboy/core/addr"
	"github.com/arxyzan/goboy/core/audio"
	"github.com/arxyzan/goboy/core/cpu"
	"github.com/arxyzan/goboy/core/memory"
	"github.com/arxyzan/goboy/core/serial"
	"github.com/arxyzan/goboy/core/video"
)

// KeypadKey is the host-facing button enum Device.KeyDown/KeyUp take,
// decoupled from memory.JoypadKey so callers outside this module never
// need to import the memory package just to press a button.
type KeypadKey int

const (
	KeyRight KeypadKey = iota
	KeyLeft
	KeyUp
	KeyDown
	KeyA
	KeyB
	KeySelect
	KeyStart
)

var keypadToJoypad = map[KeypadKey]memory.JoypadKey{
	KeyRight:  memory.JoypadRight,
	KeyLeft:   memory.JoypadLeft,
	KeyUp:     memory.JoypadUp,
	KeyDown:   memory.JoypadDown,
	KeyA:      memory.JoypadA,
	KeyB:      memory.JoypadB,
	KeySelect: memory.JoypadSelect,
	KeyStart:  memory.JoypadStart,
}

// Device is the single entry point a host drives directly, one CPU
// instruction (do_cycle) at a time, rather than through DMG's
// frame-at-a-time RunUntilFrame loop. It owns no debugger/step-mode
// state; that's DMG's concern. A host wanting the simpler "just show me
// frames" API should use DMG instead.
type Device struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mem *memory.MMU

	stdout  bool
	printer *serial.Printer
}

// New builds a Device from a DMG-mode ROM at path. skipChecksum allows
// loading images whose header checksum doesn't verify (common for
// homebrew and test ROMs that don't bother recomputing it).
func New(path string, skipChecksum bool) (*Device, error) {
	return newDevice(path, skipChecksum, false)
}

// NewCGB builds a Device from path, forcing CGB mode (double-speed switch,
// VRAM banking, the 8+8 color palettes) even for carts whose header only
// claims DMG-compatibility.
func NewCGB(path string, skipChecksum bool) (*Device, error) {
	return newDevice(path, skipChecksum, true)
}

func newDevice(path string, skipChecksum, forceCGB bool) (*Device, error) {
	cart, err := loadCartridge(path, skipChecksum)
	if err != nil {
		return nil, err
	}

	model := cpu.ModelDMG
	mem := memory.NewWithCartridge(cart)
	if forceCGB || cart.SupportsColor() {
		mem.EnableCGB()
		model = cpu.ModelCGB
	}

	gpu := video.NewGpu(mem)
	gpu.SetCGB(model == cpu.ModelCGB)

	return &Device{
		cpu: cpu.New(mem, model),
		gpu: gpu,
		mem: mem,
	}, nil
}

// DoCycle executes a single CPU instruction, ticking the MMU by the same
// number of T-states and the GPU and APU by that number (halved in
// double-speed mode), and returns the CPU's cycle count so a host can pace
// its own timing loop (e.g. sleeping every N cycles to run at real speed).
func (d *Device) DoCycle() int {
	cycles := d.cpu.Step()
	peripheral := cycles
	if d.cpu.IsDoubleSpeed() {
		peripheral /= 2
	}
	d.mem.Tick(cycles)
	d.gpu.Tick(peripheral)
	d.mem.APU.Tick(peripheral)
	return cycles
}

// CheckAndResetGPUUpdated reports whether the PPU has completed a new
// frame (entered VBlank) since the last call, and clears that flag.
func (d *Device) CheckAndResetGPUUpdated() bool {
	return d.gpu.CheckAndResetFrameUpdated()
}

// GetGPUData returns the current frame as SCREEN_W*SCREEN_H*3 packed RGB
// bytes, row-major, one byte per channel.
func (d *Device) GetGPUData() []byte {
	return d.gpu.GetFrameBuffer().RGB()
}

// KeyDown presses a button on the emulated joypad.
func (d *Device) KeyDown(key KeypadKey) {
	d.mem.HandleKeyPress(keypadToJoypad[key])
}

// KeyUp releases a button on the emulated joypad.
func (d *Device) KeyUp(key KeypadKey) {
	d.mem.HandleKeyRelease(keypadToJoypad[key])
}

// EnableAudio wires a host-provided stereo sink to the APU; SyncAudio must
// be called periodically afterward to actually push samples through it.
func (d *Device) EnableAudio(sink audio.Sink) {
	d.mem.APU.EnableSink(sink)
}

// DisableAudio detaches whatever sink EnableAudio last installed.
func (d *Device) DisableAudio() {
	d.mem.APU.DisableSink()
}

// SyncAudio flushes buffered PCM samples to the sink installed by
// EnableAudio, converting them to float32 at this boundary.
func (d *Device) SyncAudio() {
	d.mem.APU.SyncAudio()
}

// SetStdout toggles whether the serial port's LogSink echoes bytes the
// cart writes to SB/SC (test ROMs commonly report pass/fail this way).
func (d *Device) SetStdout(enabled bool) {
	d.stdout = enabled
	irq := func() { d.mem.RequestInterrupt(addr.SerialInterrupt) }
	if enabled {
		d.mem.SetSerialDevice(serial.NewLogSink(irq))
		return
	}
	d.mem.SetSerialDevice(serial.NewLogSink(irq, serial.WithoutLogging()))
}

// AttachPrinter replaces the serial port with an emulated Game Boy
// Printer, capturing print jobs in PrinterPages instead of a real
// thermal printer.
func (d *Device) AttachPrinter() {
	d.printer = serial.NewPrinter(func() { d.mem.RequestInterrupt(addr.SerialInterrupt) })
	d.mem.SetSerialDevice(d.printer)
}

// PrinterPages returns the print jobs captured since AttachPrinter was
// called, or nil if no printer is attached.
func (d *Device) PrinterPages() [][]byte {
	if d.printer == nil {
		return nil
	}
	return d.printer.Pages
}

// RomName returns the cartridge's header title.
func (d *Device) RomName() string {
	return d.mem.Cartridge().Title()
}

// GetCPU exposes the CPU for hosts that also want debug introspection.
func (d *Device) GetCPU() *cpu.CPU {
	return d.cpu
}

// GetMMU exposes the MMU for hosts that also want debug introspection.
func (d *Device) GetMMU() *memory.MMU {
	return d.mem
}
