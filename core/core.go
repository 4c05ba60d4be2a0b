package core

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/arxyzan/goboy/core/cpu"
	"github.com/arxyzan/goboy/core/debug"
	"github.com/arxyzan/goboy/core/input/action"
	"github.com/arxyzan/goboy/core/memory"
	"github.com/arxyzan/goboy/core/timing"
	"github.com/arxyzan/goboy/core/video"
)

// DebuggerState represents the current debugger mode
type DebuggerState int

const (
	DebuggerRunning   DebuggerState = iota // Normal execution
	DebuggerPaused                         // Paused, waiting for commands
	DebuggerStep                           // Execute one instruction then pause
	DebuggerStepFrame                      // Execute one frame then pause
)

// DMG is the root struct and entry point for running the emulation. Despite
// the name it drives CGB carts too (cpu.Model/MMU.EnableCGB switch the
// color-only behavior); DMG just names "the console", matching how the
// hardware itself is referred to regardless of which model runs it.
type DMG struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mem *memory.MMU

	limiter timing.Limiter

	// Debugger state
	debuggerState    DebuggerState
	debuggerMutex    sync.RWMutex
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64
}

func newDMG(mem *memory.MMU, model cpu.Model) *DMG {
	e := &DMG{
		cpu:     cpu.New(mem, model),
		gpu:     video.NewGpu(mem),
		mem:     mem,
		limiter: timing.NewTickerLimiter(),
	}
	if model == cpu.ModelCGB {
		e.gpu.SetCGB(true)
	}
	return e
}

// New creates a new emulator instance with no cartridge loaded.
func New() *DMG {
	return newDMG(memory.NewWithCartridge(memory.NewCartridge()), cpu.ModelDMG)
}

// NewWithFile creates a new emulator instance and loads the ROM at path into
// it, validating the header the same way Device.New/NewCGB do but without a
// skip-checksum escape hatch (callers needing that use Device directly).
func NewWithFile(path string) (*DMG, error) {
	cart, err := loadCartridge(path, false)
	if err != nil {
		return nil, err
	}

	model := cpu.ModelDMG
	mem := memory.NewWithCartridge(cart)
	if cart.SupportsColor() {
		mem.EnableCGB()
		model = cpu.ModelCGB
	}

	return newDMG(mem, model), nil
}

// loadCartridge reads and validates a ROM image, applying the §7 error
// taxonomy: file I/O failure, invalid header/logo, unknown MBC type, and
// (unless skipChecksum) a header checksum mismatch.
func loadCartridge(path string, skipChecksum bool) (*memory.Cartridge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOpen, err)
	}

	slog.Debug("Loaded ROM data", "size", len(data))

	const minHeaderSize = 0x150
	if len(data) < minHeaderSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrHeaderInvalid, len(data))
	}

	cart := memory.NewCartridgeWithData(data)
	if !cart.HasValidLogo() {
		return nil, fmt.Errorf("%w: Nintendo logo mismatch", ErrHeaderInvalid)
	}
	if !cart.IsKnownMBC() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMBC, cart)
	}
	if !skipChecksum && !cart.HasValidHeaderChecksum() {
		return nil, fmt.Errorf("%w: %s", ErrHeaderChecksum, cart)
	}

	return cart, nil
}

// RunUntilFrame executes CPU/GPU/MMU until a full frame (70224 T-states,
// doubled in double-speed mode since the PPU keeps running at the DMG rate
// while the CPU consumes cycles twice as fast) has been produced, honoring
// the debugger's paused/step/step-frame modes.
func (e *DMG) RunUntilFrame() error {
	e.debuggerMutex.RLock()
	state := e.debuggerState
	e.debuggerMutex.RUnlock()

	switch state {
	case DebuggerPaused:
		return nil
	case DebuggerStep:
		e.debuggerMutex.Lock()
		requested := e.stepRequested
		e.stepRequested = false
		e.debuggerMutex.Unlock()
		if !requested {
			return nil
		}
		e.stepOnce()
		e.SetDebuggerState(DebuggerPaused)
		return nil
	case DebuggerStepFrame:
		e.debuggerMutex.Lock()
		requested := e.frameRequested
		e.frameRequested = false
		e.debuggerMutex.Unlock()
		if !requested {
			return nil
		}
		e.runFrame()
		e.SetDebuggerState(DebuggerPaused)
		return nil
	default:
		e.runFrame()
		return nil
	}
}

func (e *DMG) stepOnce() {
	oldPC := e.cpu.GetPC()
	e.advance()
	slog.Debug("Step executed", "pc", fmt.Sprintf("0x%04X", oldPC), "new_pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()))
}

func (e *DMG) runFrame() {
	total := 0
	frameCycles := timing.CyclesPerFrame
	if e.cpu.IsDoubleSpeed() {
		frameCycles *= 2
	}
	for total < frameCycles {
		total += e.advance()
	}
	e.frameCount++
	if e.frameCount%60 == 0 {
		slog.Debug("Frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()))
	}
	if e.limiter != nil {
		e.limiter.WaitForNextFrame()
	}
}

// advance steps the CPU once, ticks the MMU by the CPU's T-state count and
// the GPU and APU by that count (halved in double-speed mode, since they
// keep the DMG rate), then returns the CPU count so callers can track totals.
func (e *DMG) advance() int {
	cycles := e.cpu.Step()
	peripheral := cycles
	if e.cpu.IsDoubleSpeed() {
		peripheral /= 2
	}
	e.mem.Tick(cycles)
	e.gpu.Tick(peripheral)
	e.mem.APU.Tick(peripheral)
	e.instructionCount++
	return cycles
}

func (e *DMG) GetCurrentFrame() *video.FrameBuffer {
	return e.gpu.GetFrameBuffer()
}

func (e *DMG) HandleKeyPress(key memory.JoypadKey) {
	e.mem.HandleKeyPress(key)
}

func (e *DMG) HandleKeyRelease(key memory.JoypadKey) {
	e.mem.HandleKeyRelease(key)
}

// HandleAction translates a backend-agnostic input action into a joypad
// press/release, satisfying the same contract TestPatternEmulator uses.
func (e *DMG) HandleAction(act action.Action, pressed bool) {
	key, ok := joypadKeyForAction(act)
	if !ok {
		return
	}
	if pressed {
		e.mem.HandleKeyPress(key)
	} else {
		e.mem.HandleKeyRelease(key)
	}
}

func joypadKeyForAction(act action.Action) (memory.JoypadKey, bool) {
	switch act {
	case action.GBButtonA:
		return memory.JoypadA, true
	case action.GBButtonB:
		return memory.JoypadB, true
	case action.GBButtonStart:
		return memory.JoypadStart, true
	case action.GBButtonSelect:
		return memory.JoypadSelect, true
	case action.GBDPadUp:
		return memory.JoypadUp, true
	case action.GBDPadDown:
		return memory.JoypadDown, true
	case action.GBDPadLeft:
		return memory.JoypadLeft, true
	case action.GBDPadRight:
		return memory.JoypadRight, true
	default:
		return 0, false
	}
}

func (e *DMG) GetCPU() *cpu.CPU {
	return e.cpu
}

func (e *DMG) GetMMU() *memory.MMU {
	return e.mem
}

func (e *DMG) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		e.limiter = timing.NewNoOpLimiter()
		return
	}
	e.limiter = limiter
}

func (e *DMG) ResetFrameTiming() {
	if e.limiter != nil {
		e.limiter.Reset()
	}
}

// Debugger control methods
func (e *DMG) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("Debugger state changed", "state", state)
}

func (e *DMG) GetDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *DMG) DebuggerPause() {
	e.SetDebuggerState(DebuggerPaused)
	slog.Info("Emulator paused")
}

func (e *DMG) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	slog.Info("Emulator resumed")
}

func (e *DMG) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
	slog.Info("Step instruction requested")
}

func (e *DMG) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
	slog.Info("Step frame requested")
}

func (e *DMG) GetInstructionCount() uint64 {
	return e.instructionCount
}

func (e *DMG) GetFrameCount() uint64 {
	return e.frameCount
}

// ExtractDebugData builds a full snapshot of CPU/memory/OAM/VRAM state for
// debug UIs. Returns nil when the DMG hasn't been constructed through New
// or NewWithFile (e.g. the zero value), matching what a disconnected
// debug panel should show: nothing.
func (e *DMG) ExtractDebugData() *debug.CompleteDebugData {
	if e.cpu == nil || e.mem == nil || e.gpu == nil {
		return nil
	}

	pc := e.cpu.GetPC()
	const snapshotSize = 32
	startAddr := pc
	if uint32(startAddr)+snapshotSize > 0x10000 {
		startAddr = uint16(0x10000 - snapshotSize)
	}
	size := snapshotSize
	if uint32(startAddr)+uint32(size) > 0x10000 {
		size = int(0x10000 - uint32(startAddr))
	}
	bytes := make([]uint8, size)
	for i := range bytes {
		bytes[i] = e.mem.Read(startAddr + uint16(i))
	}

	return &debug.CompleteDebugData{
		OAM:  debug.ExtractOAMDataFromReader(e.mem, 0, 8),
		VRAM: debug.ExtractVRAMDataFromReader(e.mem),
		CPU: &debug.CPUState{
			A: e.cpu.GetA(), F: e.cpu.GetF(),
			B: e.cpu.GetB(), C: e.cpu.GetC(),
			D: e.cpu.GetD(), E: e.cpu.GetE(),
			H: e.cpu.GetH(), L: e.cpu.GetL(),
			SP: e.cpu.GetSP(), PC: pc,
			IME:    e.cpu.GetIME(),
			Cycles: e.instructionCount,
		},
		Memory: &debug.MemorySnapshot{
			StartAddr: startAddr,
			Bytes:     bytes,
		},
		DebuggerState:   debug.DebuggerState(e.GetDebuggerState()),
		InterruptEnable: e.mem.Read(0xFFFF),
		InterruptFlags:  e.mem.Read(0xFF0F),
	}
}

// GetAudioProvider exposes the APU for backends that pull PCM samples directly.
func (e *DMG) GetAudioProvider() interface{ GetSamples(int) []int16 } {
	return e.mem.APU
}
