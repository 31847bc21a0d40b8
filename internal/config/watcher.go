package config

import (
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func tomlTagDecoder(dc *mapstructure.DecoderConfig) {
	dc.TagName = "toml"
	dc.WeaklyTypedInput = true
}

// HotSnapshot is the subset of Config the watcher re-applies from the
// config file without a process restart: risk limits and the retention
// horizon. Instrument identity and everything else requires a restart,
// since the scheduler and strategy are sized around them at startup.
type HotSnapshot struct {
	Version   int64
	Risk      RiskConfig
	Retention RetentionConfig
}

// ChangeListener is invoked with the new snapshot after a successful
// reload.
type ChangeListener func(HotSnapshot)

// Watcher watches a config file for changes and re-validates the
// risk/retention subset on every write, without touching the rest of
// the process's static configuration.
type Watcher struct {
	path string
	v    *viper.Viper
	log  *zap.Logger

	mu        sync.RWMutex
	snapshot  HotSnapshot
	listeners []ChangeListener
}

// NewWatcher loads path once to seed the initial snapshot, then begins
// watching it for subsequent changes.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	w := &Watcher{path: path, v: v, log: log}
	if err := w.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			if w.log != nil {
				w.log.Error("hot config reload failed", zap.String("file", evt.Name), zap.Error(err))
			}
			return
		}
		w.notify()
	})
	v.WatchConfig()
	return w, nil
}

// Snapshot returns the latest validated risk/retention subset.
func (w *Watcher) Snapshot() HotSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// Subscribe registers fn and immediately delivers the current snapshot.
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	snap := w.snapshot
	w.mu.Unlock()
	fn(snap)
}

func (w *Watcher) notify() {
	w.mu.RLock()
	snap := w.snapshot
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (w *Watcher) reload() error {
	var risk RiskConfig
	var retention RetentionConfig
	if err := w.v.UnmarshalKey("risk", &risk, tomlTagDecoder); err != nil {
		return err
	}
	if err := w.v.UnmarshalKey("retention", &retention, tomlTagDecoder); err != nil {
		return err
	}
	risk.applyDefaults(make(keySet))
	retention.applyDefaults(make(keySet))
	if err := risk.validate(); err != nil {
		return err
	}
	if err := retention.validate(); err != nil {
		return err
	}

	w.mu.Lock()
	w.snapshot = HotSnapshot{
		Version:   w.snapshot.Version + 1,
		Risk:      risk,
		Retention: retention,
	}
	w.mu.Unlock()

	if w.log != nil {
		w.log.Info("hot config reloaded", zap.String("file", strings.TrimSpace(w.path)), zap.Int64("version", w.snapshot.Version))
	}
	return nil
}
