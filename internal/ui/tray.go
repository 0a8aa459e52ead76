// Package ui is the desktop tray: search status at a glance, a way to stop
// the running search, and quit.
package ui

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
	"github.com/heimdex/framescout/internal/search"
)

// Stopper stops the running search and reports whether one was running.
type Stopper interface {
	Stop() bool
}

type Tray struct {
	stopper Stopper
	logger  *slog.Logger
	onQuit  func()

	statusItem *systray.MenuItem
	foundItem  *systray.MenuItem
	stopItem   *systray.MenuItem

	mu    sync.Mutex
	ready bool
	state menuState
}

type TrayConfig struct {
	Search Stopper
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tray{
		stopper: cfg.Search,
		logger:  logger,
		onQuit:  cfg.OnQuit,
		state:   newMenuState(),
	}
}

// Run blocks on the platform event loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Framescout")
	systray.SetTooltip("Framescout video search")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem(t.state.statusLabel(), "Current search status")
	t.statusItem.Disable()
	t.foundItem = systray.AddMenuItem(t.state.foundLabel(), "Matches in the current search")
	t.foundItem.Disable()

	systray.AddSeparator()
	t.stopItem = systray.AddMenuItem("Stop Search", "Stop the running search")
	if !t.state.running {
		t.stopItem.Disable()
	}

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Quit Framescout")
	t.ready = true
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.stopItem.ClickedCh:
				if t.stopper != nil && t.stopper.Stop() {
					t.logger.Info("stop requested from tray")
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// Publish updates the menu from a search notification.
func (t *Tray) Publish(n search.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = t.state.apply(n)
	if !t.ready {
		return
	}
	t.statusItem.SetTitle(t.state.statusLabel())
	t.foundItem.SetTitle(t.state.foundLabel())
	if t.state.running {
		t.stopItem.Enable()
	} else {
		t.stopItem.Disable()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
