// Package signals watches the data directory for control files written
// by external hooks: stop and pause signals, a profile override, and
// the capture drop directory that feeds prompts into memory.
package signals

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"

	"github.com/shayc/otto/pkg/models"
)

const sweepInterval = 5 * time.Second

// CaptureSink receives ingested capture prompts. Satisfied by the
// memory store.
type CaptureSink interface {
	Append(ctx context.Context, rec *models.MemoryRecord) error
}

// Manager reads the signal directory and ingests the capture drop
// directory. Signal files are the only control surface exposed to
// external hooks: `stop` requests shutdown, `pause` suspends agent work
// while present, `profile` pins the active profile to its content.
type Manager struct {
	signalsDir string
	captureDir string
	sink       CaptureSink

	mu   sync.RWMutex
	stop bool

	watcher *fsnotify.Watcher
}

// NewManager creates the signal and capture directories under dataDir
// and arms a filesystem watcher. When the watcher cannot be created the
// manager degrades to sweep-only polling.
func NewManager(dataDir string, sink CaptureSink) (*Manager, error) {
	signalsDir := filepath.Join(dataDir, "signals")
	captureDir := filepath.Join(dataDir, "capture")
	for _, dir := range []string{signalsDir, captureDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	m := &Manager{
		signalsDir: signalsDir,
		captureDir: captureDir,
		sink:       sink,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[signals] WARNING: watcher unavailable, polling only: %v", err)
		return m, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		log.Printf("[signals] WARNING: watch %s failed, polling only: %v", signalsDir, err)
		return m, nil
	}
	if err := watcher.Add(captureDir); err != nil {
		watcher.Close()
		log.Printf("[signals] WARNING: watch %s failed, polling only: %v", captureDir, err)
		return m, nil
	}
	m.watcher = watcher

	return m, nil
}

// Run ingests capture files and tracks signal events until the context
// is cancelled. A periodic sweep backs up the watcher so files dropped
// while the daemon was away are still picked up.
func (m *Manager) Run(ctx context.Context) {
	m.sweepCapture(ctx)

	var wEvents chan fsnotify.Event
	var wErrors chan error
	if m.watcher != nil {
		wEvents = m.watcher.Events
		wErrors = m.watcher.Errors
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-wEvents:
			if !ok {
				wEvents = nil
				continue
			}
			m.handleEvent(ctx, ev)
		case _, ok := <-wErrors:
			if !ok {
				wErrors = nil
			}
		case <-ticker.C:
			m.sweepCapture(ctx)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	switch filepath.Dir(ev.Name) {
	case m.captureDir:
		m.ingestCapture(ctx, ev.Name)
	case m.signalsDir:
		if filepath.Base(ev.Name) == "stop" {
			m.mu.Lock()
			m.stop = true
			m.mu.Unlock()
		}
	}
}

// ShouldStop reports whether a stop signal arrived. Sticky once seen.
func (m *Manager) ShouldStop() bool {
	// Also stat the file in case the watcher missed it.
	if _, err := os.Stat(filepath.Join(m.signalsDir, "stop")); err == nil {
		m.mu.Lock()
		m.stop = true
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stop
}

// ShouldPause reports whether the pause file is present. Removing the
// file resumes the daemon.
func (m *Manager) ShouldPause() bool {
	_, err := os.Stat(filepath.Join(m.signalsDir, "pause"))
	return err == nil
}

// ProfileOverride returns the profile pinned by the profile signal
// file. The file holds either a bare profile name or a YAML mapping
// with a profile key, so hooks can annotate the pin:
//
//	# demo laptop, remove after friday
//	profile: eco
//
// ok is false when the file is absent, empty, or does not name a
// profile.
func (m *Manager) ProfileOverride() (models.Profile, bool) {
	data, err := os.ReadFile(filepath.Join(m.signalsDir, "profile"))
	if err != nil {
		return "", false
	}
	return parseProfileOverride(data)
}

func parseProfileOverride(data []byte) (models.Profile, bool) {
	var name string

	var doc struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Profile != "" {
		name = doc.Profile
	} else if err := yaml.Unmarshal(data, &name); err != nil {
		return "", false
	}

	p := models.Profile(strings.ToUpper(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// Clear removes stale signal files and resets the stop flag. The
// daemon calls it at startup so signals from a previous run do not
// carry over.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.stop = false
	m.mu.Unlock()

	os.Remove(filepath.Join(m.signalsDir, "stop"))
	os.Remove(filepath.Join(m.signalsDir, "pause"))
}

// Close releases the watcher. Run keeps polling until its context is
// cancelled.
func (m *Manager) Close() {
	if m.watcher != nil {
		m.watcher.Close()
	}
}

func (m *Manager) sweepCapture(ctx context.Context) {
	entries, err := os.ReadDir(m.captureDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			continue
		}
		m.ingestCapture(ctx, filepath.Join(m.captureDir, entry.Name()))
	}
}

// ingestCapture appends one dropped file as a PROMPT_CAPTURE record and
// removes it. Failed appends leave the file for the next sweep.
func (m *Manager) ingestCapture(ctx context.Context, path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		os.Remove(path)
		return
	}

	rec := &models.MemoryRecord{
		Kind:    models.KindPromptCapture,
		Payload: text,
	}
	if err := m.sink.Append(ctx, rec); err != nil {
		log.Printf("[signals] WARNING: capture append failed: %v", err)
		return
	}
	if err := os.Remove(path); err != nil {
		log.Printf("[signals] WARNING: capture cleanup failed: %v", err)
	}

	log.Printf("[signals] captured prompt (%d bytes) from %s", len(text), base)
}
