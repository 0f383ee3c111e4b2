// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// AUTO-SAVE MANAGER
// =============================================================================

// Manager decides when a session with unsaved changes is written out.
type Manager struct {
	mu sync.Mutex

	startTime    time.Time
	lastActivity time.Time

	autoSaveEnabled  bool
	autoSaveInterval time.Duration
	lastAutoSave     time.Time
	isDirty          bool

	onAutoSave func() error
}

// ManagerConfig holds configuration for the auto-save manager.
type ManagerConfig struct {
	// AutoSaveEnabled enables automatic saving
	AutoSaveEnabled bool

	// AutoSaveInterval is how often to auto-save (default: 30 seconds)
	AutoSaveInterval time.Duration
}

// DefaultManagerConfig returns the default auto-save configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		AutoSaveEnabled:  true,
		AutoSaveInterval: 30 * time.Second,
	}
}

// NewManager creates a new auto-save manager.
func NewManager(cfg ManagerConfig) *Manager {
	now := time.Now()
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = DefaultManagerConfig().AutoSaveInterval
	}
	return &Manager{
		startTime:        now,
		lastActivity:     now,
		autoSaveEnabled:  cfg.AutoSaveEnabled,
		autoSaveInterval: cfg.AutoSaveInterval,
		lastAutoSave:     now,
	}
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
}

// MarkDirty indicates the session has unsaved changes.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDirty = true
}

// MarkClean indicates the session has been saved.
func (m *Manager) MarkClean() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDirty = false
	m.lastAutoSave = time.Now()
}

// IsDirty returns whether the session has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDirty
}

// SetAutoSaveCallback sets the function called for auto-save.
func (m *Manager) SetAutoSaveCallback(fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAutoSave = fn
}

// =============================================================================
// CHECKING
// =============================================================================

// ShouldAutoSave returns true if auto-save should trigger.
func (m *Manager) ShouldAutoSave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.autoSaveEnabled || !m.isDirty {
		return false
	}

	return time.Since(m.lastAutoSave) >= m.autoSaveInterval
}

// Check runs the auto-save callback when one is due. A failed save leaves
// the session dirty so the next check retries.
func (m *Manager) Check() error {
	if !m.ShouldAutoSave() {
		return nil
	}

	m.mu.Lock()
	onAutoSave := m.onAutoSave
	m.mu.Unlock()

	if onAutoSave == nil {
		return nil
	}
	if err := onAutoSave(); err != nil {
		return err
	}
	m.MarkClean()
	return nil
}

// Flush saves immediately if the session is dirty, regardless of the
// interval. Use it on exit.
func (m *Manager) Flush() error {
	m.mu.Lock()
	dirty := m.isDirty
	onAutoSave := m.onAutoSave
	m.mu.Unlock()

	if !dirty || onAutoSave == nil {
		return nil
	}
	if err := onAutoSave(); err != nil {
		return err
	}
	m.MarkClean()
	return nil
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check session state.
type TickMsg struct {
	Time time.Time
}

// AutoSaveMsg indicates auto-save should occur.
type AutoSaveMsg struct{}

// TickCmd returns a command that ticks every second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick returns an AutoSaveMsg when a save is due, and the next tick.
func (m *Manager) HandleTick() tea.Cmd {
	var cmds []tea.Cmd

	if m.ShouldAutoSave() {
		cmds = append(cmds, func() tea.Msg {
			return AutoSaveMsg{}
		})
	}

	cmds = append(cmds, TickCmd())

	return tea.Batch(cmds...)
}

// =============================================================================
// STATUS
// =============================================================================

// Status is a snapshot of the manager state.
type Status struct {
	StartTime    time.Time
	Duration     time.Duration
	IdleTime     time.Duration
	LastAutoSave time.Time
	IsDirty      bool
}

// GetStatus returns the current status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	return Status{
		StartTime:    m.startTime,
		Duration:     now.Sub(m.startTime),
		IdleTime:     now.Sub(m.lastActivity),
		LastAutoSave: m.lastAutoSave,
		IsDirty:      m.isDirty,
	}
}
