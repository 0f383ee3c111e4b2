// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// WAITING ANIMATION
// =============================================================================

// waiter draws the loading animation on one line until Stop.
type waiter struct {
	out   io.Writer
	cycle *styles.Cycle
	every time.Duration

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

// startWaiter starts the animation. A nil out disables it.
func startWaiter(out io.Writer, spin styles.SpinnerConfig) *waiter {
	w := &waiter{
		out:   out,
		cycle: styles.NewCycle(spin.Frames),
		every: spin.Interval,
		done:  make(chan struct{}),
	}
	if out == nil || w.every <= 0 {
		return w
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.every)
		defer ticker.Stop()
		for {
			fmt.Fprint(w.out, "\r"+ansi.EraseEntireLine+DimStyle.Render(w.cycle.Next()))
			select {
			case <-w.done:
				fmt.Fprint(w.out, "\r"+ansi.EraseEntireLine)
				return
			case <-ticker.C:
			}
		}
	}()
	return w
}

// Stop clears the animation line. Safe to call more than once.
func (w *waiter) Stop() {
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}
