// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"sync"
	"time"

	"github.com/jeranaias/emochat/internal/config"
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// LineSpinner - Simple line rotation
var LineSpinner = SpinnerConfig{
	Frames:   []string{"|", "/", "-", "\\"},
	Interval: 100 * time.Millisecond,
}

// DotsSpinner - Classic three-dot animation
var DotsSpinner = SpinnerConfig{
	Frames:   []string{".  ", ".. ", "...", " ..", "  .", "   "},
	Interval: time.Second / 6,
}

// SpinnerConfig holds the frames of an animation and the time each is shown.
type SpinnerConfig struct {
	Frames   []string
	Interval time.Duration
}

// FPS returns the frame rate, rounded down.
func (s SpinnerConfig) FPS() int {
	if s.Interval <= 0 {
		return 0
	}
	return int(time.Second / s.Interval)
}

// LoadingSpinner returns the thinking animation from config. Missing frames
// fall back to LineSpinner and a missing interval to 200ms.
func LoadingSpinner(ui config.UIConfig) SpinnerConfig {
	return fromConfig(ui.LoadingFrames, ui.FrameIntervalMS, LineSpinner.Frames, 200)
}

// IdleSpinner returns the idle kaomoji animation from config. Missing
// kaomojis fall back to DotsSpinner and a missing interval to 500ms.
func IdleSpinner(ui config.UIConfig) SpinnerConfig {
	return fromConfig(ui.Kaomojis, ui.IdleIntervalMS, DotsSpinner.Frames, 500)
}

func fromConfig(frames []string, intervalMS int, fallback []string, fallbackMS int) SpinnerConfig {
	if len(frames) == 0 {
		frames = fallback
	}
	if intervalMS <= 0 {
		intervalMS = fallbackMS
	}
	out := make([]string, len(frames))
	copy(out, frames)
	return SpinnerConfig{Frames: out, Interval: time.Duration(intervalMS) * time.Millisecond}
}

// =============================================================================
// FRAME CYCLE
// =============================================================================

// Cycle yields animation frames in order, wrapping around forever.
//
// Thread-safety: Next may be called from a ticker goroutine while another
// goroutine calls Reset.
type Cycle struct {
	mu     sync.Mutex
	frames []string
	pos    int
}

// NewCycle creates a cycle over frames.
func NewCycle(frames []string) *Cycle {
	return &Cycle{frames: frames}
}

// Next returns the current frame and advances. An empty cycle yields "".
func (c *Cycle) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return ""
	}
	f := c.frames[c.pos]
	c.pos = (c.pos + 1) % len(c.frames)
	return f
}

// Reset restarts the cycle at the first frame.
func (c *Cycle) Reset() {
	c.mu.Lock()
	c.pos = 0
	c.mu.Unlock()
}
