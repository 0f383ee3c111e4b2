// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultManagerConfig(t *testing.T) {
	cfg := DefaultManagerConfig()

	if !cfg.AutoSaveEnabled {
		t.Error("Default AutoSaveEnabled should be true")
	}
	if cfg.AutoSaveInterval != 30*time.Second {
		t.Errorf("Default AutoSaveInterval = %v, want 30s", cfg.AutoSaveInterval)
	}
}

func TestNewManager_ZeroIntervalUsesDefault(t *testing.T) {
	m := NewManager(ManagerConfig{AutoSaveEnabled: true})
	m.MarkDirty()

	if m.ShouldAutoSave() {
		t.Error("a fresh manager should wait the default interval")
	}
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestManager_RecordActivity(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	time.Sleep(20 * time.Millisecond)

	before := m.GetStatus().IdleTime
	m.RecordActivity()
	after := m.GetStatus().IdleTime

	if after >= before {
		t.Errorf("IdleTime after activity = %v, want less than %v", after, before)
	}
}

func TestManager_DirtyState(t *testing.T) {
	m := NewManager(DefaultManagerConfig())

	if m.IsDirty() {
		t.Error("New session should not be dirty")
	}

	m.MarkDirty()
	if !m.IsDirty() {
		t.Error("Session should be dirty after MarkDirty")
	}

	m.MarkClean()
	if m.IsDirty() {
		t.Error("Session should not be dirty after MarkClean")
	}
}

func TestManager_ShouldAutoSave(t *testing.T) {
	m := NewManager(ManagerConfig{AutoSaveEnabled: true, AutoSaveInterval: 10 * time.Millisecond})

	if m.ShouldAutoSave() {
		t.Error("Should not auto-save when clean")
	}

	m.MarkDirty()
	time.Sleep(15 * time.Millisecond)

	if !m.ShouldAutoSave() {
		t.Error("Should auto-save when dirty and interval passed")
	}

	disabled := NewManager(ManagerConfig{AutoSaveEnabled: false, AutoSaveInterval: time.Millisecond})
	disabled.MarkDirty()
	time.Sleep(5 * time.Millisecond)
	if disabled.ShouldAutoSave() {
		t.Error("Should not auto-save when disabled")
	}
}

// =============================================================================
// CALLBACK TESTS
// =============================================================================

func TestManager_Check(t *testing.T) {
	m := NewManager(ManagerConfig{AutoSaveEnabled: true, AutoSaveInterval: 10 * time.Millisecond})

	saves := 0
	m.SetAutoSaveCallback(func() error {
		saves++
		return nil
	})

	// Clean: nothing to do.
	if err := m.Check(); err != nil || saves != 0 {
		t.Fatalf("Check on clean session: err=%v saves=%d", err, saves)
	}

	m.MarkDirty()
	time.Sleep(15 * time.Millisecond)

	if err := m.Check(); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if saves != 1 {
		t.Errorf("saves = %d, want 1", saves)
	}
	if m.IsDirty() {
		t.Error("Session should be clean after successful auto-save")
	}
}

func TestManager_CheckFailureStaysDirty(t *testing.T) {
	m := NewManager(ManagerConfig{AutoSaveEnabled: true, AutoSaveInterval: time.Millisecond})
	boom := errors.New("disk full")
	m.SetAutoSaveCallback(func() error { return boom })

	m.MarkDirty()
	time.Sleep(5 * time.Millisecond)

	if err := m.Check(); !errors.Is(err, boom) {
		t.Errorf("Check error = %v, want %v", err, boom)
	}
	if !m.IsDirty() {
		t.Error("Session should stay dirty after a failed save")
	}
}

func TestManager_Flush(t *testing.T) {
	m := NewManager(DefaultManagerConfig())

	saves := 0
	m.SetAutoSaveCallback(func() error {
		saves++
		return nil
	})

	if err := m.Flush(); err != nil || saves != 0 {
		t.Fatalf("Flush on clean session: err=%v saves=%d", err, saves)
	}

	// Flush ignores the interval.
	m.MarkDirty()
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if saves != 1 {
		t.Errorf("saves = %d, want 1", saves)
	}
}

// =============================================================================
// BUBBLE TEA TESTS
// =============================================================================

func TestManager_HandleTick(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	if cmd := m.HandleTick(); cmd == nil {
		t.Error("HandleTick should always schedule the next tick")
	}
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestManager_GetStatus(t *testing.T) {
	m := NewManager(DefaultManagerConfig())

	m.MarkDirty()
	time.Sleep(10 * time.Millisecond)

	status := m.GetStatus()

	if status.Duration < 10*time.Millisecond {
		t.Error("Status.Duration should be at least 10ms")
	}
	if status.IdleTime < 10*time.Millisecond {
		t.Error("Status.IdleTime should be at least 10ms")
	}
	if !status.IsDirty {
		t.Error("Status.IsDirty should be true")
	}
	if status.StartTime.IsZero() || status.LastAutoSave.IsZero() {
		t.Error("Status times should be set")
	}
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(ManagerConfig{AutoSaveEnabled: true, AutoSaveInterval: time.Millisecond})
	m.SetAutoSaveCallback(func() error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordActivity()
				m.MarkDirty()
				_ = m.IsDirty()
				_ = m.Check()
				_ = m.GetStatus()
			}
		}()
	}
	wg.Wait()
}
