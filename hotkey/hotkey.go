// Package hotkey binds a global push-to-talk key for the console shell.
package hotkey

import (
	"errors"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// HotkeyManager listens for a global key press and fires a toggle
// callback. The hook is process-wide, so one manager per process.
type HotkeyManager struct {
	key      string
	onToggle func()

	mu         sync.Mutex
	running    bool
	registered bool
}

// NewHotkeyManager creates a manager for key, for example "f8".
func NewHotkeyManager(key string, onToggle func()) *HotkeyManager {
	return &HotkeyManager{
		key:      strings.ToLower(strings.TrimSpace(key)),
		onToggle: onToggle,
	}
}

// Start installs the global hook and begins dispatching key events.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key == "" {
		return errors.New("hotkey: no key configured")
	}
	if m.running {
		return errors.New("hotkey: already started")
	}
	m.running = true

	// gohook keeps registrations across End/Start cycles.
	if !m.registered {
		m.registered = true
		hook.Register(hook.KeyDown, []string{m.key}, func(e hook.Event) {
			if m.onToggle != nil {
				m.onToggle()
			}
		})
	}

	go func() {
		s := hook.Start()
		<-hook.Process(s)
	}()

	return nil
}

// Stop tears the hook down. The manager can be started again.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	hook.End()
}
