package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestNewFileWatcher(t *testing.T) {
	config := DefaultFileWatcherConfig()
	config.Path = t.TempDir()

	watcher, err := NewFileWatcher(config, nil)

	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}

	if watcher == nil {
		t.Fatal("NewFileWatcher() returned nil")
	}

	if watcher.watcher == nil {
		t.Error("watcher.watcher is nil")
	}

	if watcher.debounce == nil {
		t.Error("watcher.debounce is nil")
	}

	// Cleanup
	_ = watcher.Stop()
}

func TestDefaultFileWatcherConfig(t *testing.T) {
	config := DefaultFileWatcherConfig()

	if config.DebounceInterval != 100*time.Millisecond {
		t.Errorf("config.DebounceInterval = %v, want 100ms", config.DebounceInterval)
	}

	if len(config.Extensions) != 2 {
		t.Errorf("config.Extensions count = %d, want 2", len(config.Extensions))
	}
}

// startWatcher creates a watcher for path, starts it in the background, and
// gives it time to register. Returns the watcher and a channel signalled on
// each reload.
func startWatcher(t *testing.T, path string, debounce time.Duration) (*FileWatcher, chan struct{}, *atomic.Int32) {
	t.Helper()

	config := DefaultFileWatcherConfig()
	config.Path = path
	config.DebounceInterval = debounce

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = watcher.Stop() })

	var reloadCount atomic.Int32
	reloadCalled := make(chan struct{}, 10)

	onReload := func() error {
		reloadCount.Add(1)
		select {
		case reloadCalled <- struct{}{}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = watcher.Watch(ctx, onReload)
	}()

	// Wait for watcher to start
	time.Sleep(100 * time.Millisecond)

	return watcher, reloadCalled, &reloadCount
}

func TestFileWatcher_Watch_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "meridian.yaml")

	if err := os.WriteFile(tmpFile, []byte("providers: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, reloadCalled, reloadCount := startWatcher(t, tmpFile, 50*time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte("providers: {}\naliases: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloadCalled:
	case <-time.After(500 * time.Millisecond):
		t.Error("Reload not called after file modification")
	}

	if reloadCount.Load() == 0 {
		t.Error("Reload was never called")
	}
}

func TestFileWatcher_IgnoresSiblingFiles(t *testing.T) {
	// Watching a single file goes through its parent directory; events for
	// other files in the same directory must not trigger reloads.
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "meridian.yaml")
	sibling := filepath.Join(tmpDir, "other.yaml")

	if err := os.WriteFile(tmpFile, []byte("providers: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, reloadCalled, _ := startWatcher(t, tmpFile, 50*time.Millisecond)

	if err := os.WriteFile(sibling, []byte("unrelated: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloadCalled:
		t.Error("Reload called for sibling file write")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcher_SurvivesAtomicRename(t *testing.T) {
	// Editors and configmap mounts replace files via rename. Watching the
	// parent directory keeps events flowing after the inode changes.
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "meridian.yaml")

	if err := os.WriteFile(tmpFile, []byte("providers: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, reloadCalled, _ := startWatcher(t, tmpFile, 50*time.Millisecond)

	staged := filepath.Join(tmpDir, "meridian.yaml.tmp")
	if err := os.WriteFile(staged, []byte("providers: {}\naliases: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(staged, tmpFile); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloadCalled:
	case <-time.After(500 * time.Millisecond):
		t.Error("Reload not called after atomic rename")
	}
}

func TestFileWatcher_Debouncing(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "meridian.yaml")

	if err := os.WriteFile(tmpFile, []byte("providers: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, reloadCount := startWatcher(t, tmpFile, 200*time.Millisecond)

	// Make multiple rapid modifications
	for i := 0; i < 5; i++ {
		content := []byte("providers: {}\n# rev " + string(rune('0'+i)) + "\n")
		if err := os.WriteFile(tmpFile, content, 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond) // Less than debounce interval
	}

	// Wait for debounce interval + some buffer
	time.Sleep(400 * time.Millisecond)

	count := reloadCount.Load()
	if count == 0 {
		t.Error("Reload was never called")
	}
	if count > 2 {
		t.Errorf("Reload called %d times, want <= 2 (debouncing failed)", count)
	}
}

func TestFileWatcher_Stop(t *testing.T) {
	watcher, _, _ := startWatcher(t, t.TempDir(), 50*time.Millisecond)

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop() error = %v, want nil", err)
	}

	watcher.mu.RLock()
	running := watcher.running
	watcher.mu.RUnlock()

	if running {
		t.Error("Watcher still running after Stop()")
	}
}

func TestFileWatcher_DoubleStart(t *testing.T) {
	watcher, _, _ := startWatcher(t, t.TempDir(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := watcher.Watch(ctx, func() error { return nil })

	if err == nil {
		t.Error("Second Watch() call error = nil, want error")
	}
}

func TestDebouncer_Trigger(t *testing.T) {
	debouncer := NewDebouncer(100 * time.Millisecond)
	defer debouncer.Stop()

	var callCount atomic.Int32
	callback := func() {
		callCount.Add(1)
	}

	// Trigger multiple times
	for i := 0; i < 5; i++ {
		debouncer.Trigger(callback)
		time.Sleep(20 * time.Millisecond) // Less than debounce interval
	}

	// Wait for debounce interval
	time.Sleep(150 * time.Millisecond)

	count := callCount.Load()
	if count != 1 {
		t.Errorf("Callback called %d times, want 1", count)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	debouncer := NewDebouncer(100 * time.Millisecond)

	var callCount atomic.Int32
	callback := func() {
		callCount.Add(1)
	}

	debouncer.Trigger(callback)
	debouncer.Stop()

	time.Sleep(150 * time.Millisecond)

	count := callCount.Load()
	if count != 0 {
		t.Errorf("Callback called %d times after Stop(), want 0", count)
	}
}

func TestFileWatcher_FilterExtensions(t *testing.T) {
	config := DefaultFileWatcherConfig()
	config.Path = t.TempDir()

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = watcher.Stop() }()

	tests := []struct {
		ext   string
		valid bool
	}{
		{".yaml", true},
		{".yml", true},
		{".txt", false},
		{".json", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got := watcher.hasValidExtension(tt.ext)
			if got != tt.valid {
				t.Errorf("hasValidExtension(%q) = %v, want %v", tt.ext, got, tt.valid)
			}
		})
	}
}

func TestFileWatcher_ShouldProcessEvent(t *testing.T) {
	config := DefaultFileWatcherConfig()
	config.Path = t.TempDir()

	watcher, err := NewFileWatcher(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = watcher.Stop() }()
	watcher.watchFile = "meridian.yaml"

	tests := []struct {
		name        string
		event       fsnotify.Event
		shouldAllow bool
	}{
		{"write to watched file", fsnotify.Event{Name: "/etc/meridian/meridian.yaml", Op: fsnotify.Write}, true},
		{"create of watched file", fsnotify.Event{Name: "/etc/meridian/meridian.yaml", Op: fsnotify.Create}, true},
		{"chmod filtered", fsnotify.Event{Name: "/etc/meridian/meridian.yaml", Op: fsnotify.Chmod}, false},
		{"sibling filtered", fsnotify.Event{Name: "/etc/meridian/other.yaml", Op: fsnotify.Write}, false},
		{"staged file filtered", fsnotify.Event{Name: "/etc/meridian/meridian.yaml.tmp", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := watcher.shouldProcessEvent(tt.event)
			if got != tt.shouldAllow {
				t.Errorf("shouldProcessEvent(%q) = %v, want %v", tt.event.Name, got, tt.shouldAllow)
			}
		})
	}

	// Directory watch applies the extension filter instead of the
	// base-name filter.
	watcher.watchFile = ""

	dirTests := []struct {
		name        string
		event       fsnotify.Event
		shouldAllow bool
	}{
		{"yaml in directory", fsnotify.Event{Name: "/etc/meridian/extra.yml", Op: fsnotify.Write}, true},
		{"txt in directory", fsnotify.Event{Name: "/etc/meridian/notes.txt", Op: fsnotify.Write}, false},
	}

	for _, tt := range dirTests {
		t.Run(tt.name, func(t *testing.T) {
			got := watcher.shouldProcessEvent(tt.event)
			if got != tt.shouldAllow {
				t.Errorf("shouldProcessEvent(%q) = %v, want %v", tt.event.Name, got, tt.shouldAllow)
			}
		})
	}
}
