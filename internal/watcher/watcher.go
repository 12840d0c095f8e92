package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	log "github.com/sirupsen/logrus"
)

// defaultPollInterval controls how often the config file is checked.
const defaultPollInterval = 2 * time.Second

// Reloader is the part of the config store the watcher drives.
type Reloader interface {
	ChangedExternal() bool
	Reload() error
	Filename() string
}

var _ Reloader = (*config.Store)(nil)

// ConfigWatcher reloads the instance configuration when ilog.ini is edited
// outside the admin panel.
type ConfigWatcher struct {
	store    Reloader
	interval time.Duration
	onReload func()

	stopOnce sync.Once
	done     chan struct{}
}

// NewConfigWatcher returns a watcher polling store every interval. A
// non-positive interval selects the default.
func NewConfigWatcher(store Reloader, interval time.Duration) *ConfigWatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ConfigWatcher{store: store, interval: interval, done: make(chan struct{})}
}

// OnReload registers fn to run after every successful reload.
func (w *ConfigWatcher) OnReload(fn func()) *ConfigWatcher {
	w.onReload = fn
	return w
}

// Poll reloads the store once if the file changed. It reports whether a
// reload happened.
func (w *ConfigWatcher) Poll() bool {
	if !w.store.ChangedExternal() {
		return false
	}
	if errReload := w.store.Reload(); errReload != nil {
		log.WithError(errReload).WithField("file", w.store.Filename()).Warn("watcher: reload config")
		return false
	}
	log.WithField("file", w.store.Filename()).Info("watcher: configuration changed on disk, reloaded")
	if w.onReload != nil {
		w.onReload()
	}
	return true
}

// Start polls in the background until ctx is done or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-ticker.C:
				w.Poll()
			}
		}
	}()
}

// Stop ends the polling loop.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}
