package core

import (
	"github.com/arxyzan/goboy/core/debug"
	"github.com/arxyzan/goboy/core/input/action"
	"github.com/arxyzan/goboy/core/timing"
	"github.com/arxyzan/goboy/core/video"
)

// Emulator is the interface backends drive when they don't need DMG's full
// concrete surface (debugger controls, direct joypad methods): a frame
// source that takes backend-agnostic input actions.
type Emulator interface {
	RunUntilFrame() error
	GetCurrentFrame() *video.FrameBuffer
	HandleAction(act action.Action, pressed bool)
	ExtractDebugData() *debug.CompleteDebugData
	SetFrameLimiter(limiter timing.Limiter)
	ResetFrameTiming()
}

var _ Emulator = (*TestPatternEmulator)(nil)
