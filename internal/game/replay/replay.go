// Package replay records the event stream of a game so it can be saved to
// disk and stepped through afterwards.
package replay

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

const formatVersion = 1

// Journal is a recorded game: every published event in order plus a cursor
// for playback.
type Journal struct {
	Name         string
	Events       []rules.Event
	CurrentIndex int
	mu           sync.RWMutex
}

// NewJournal creates an empty journal.
func NewJournal(name string) *Journal {
	return &Journal{Name: name}
}

// Attach records every event published on bus and returns the
// subscription handle.
func (j *Journal) Attach(bus *rules.EventBus) int {
	return bus.Subscribe(j.Record)
}

// Record appends an event.
func (j *Journal) Record(event rules.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Events = append(j.Events, event)
}

// Start resets playback to the beginning.
func (j *Journal) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.CurrentIndex = 0
}

// Next returns the event under the cursor and advances it.
func (j *Journal) Next() (rules.Event, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.CurrentIndex < len(j.Events) {
		event := j.Events[j.CurrentIndex]
		j.CurrentIndex++
		return event, true
	}
	return rules.Event{}, false
}

// Previous moves the cursor back and returns the event there.
func (j *Journal) Previous() (rules.Event, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.CurrentIndex > 0 {
		j.CurrentIndex--
		return j.Events[j.CurrentIndex], true
	}
	return rules.Event{}, false
}

// Skip moves the cursor by count events, clamped to the journal.
func (j *Journal) Skip(count int) (rules.Event, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.CurrentIndex = min(max(j.CurrentIndex+count, 0), max(len(j.Events)-1, 0))
	if j.CurrentIndex < len(j.Events) {
		return j.Events[j.CurrentIndex], true
	}
	return rules.Event{}, false
}

// Size returns the number of recorded events.
func (j *Journal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.Events)
}

// EventAt returns the event at index.
func (j *Journal) EventAt(index int) (rules.Event, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if index >= 0 && index < len(j.Events) {
		return j.Events[index], true
	}
	return rules.Event{}, false
}

// Filter returns the recorded events of the given type.
func (j *Journal) Filter(eventType rules.EventType) []rules.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []rules.Event
	for _, e := range j.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// FileName is the name a journal is saved under.
func FileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return unicode.ToLower(r)
		}
		return '_'
	}, name)
	return clean + ".replay"
}

// SaveToFile writes the journal to a gzipped gob file in directory.
func (j *Journal) SaveToFile(directory string) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, FileName(j.Name))
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	meta := metadata{
		Name:       j.Name,
		Timestamp:  time.Now(),
		Version:    formatVersion,
		EventCount: len(j.Events),
	}
	if err := encoder.Encode(&meta); err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range j.Events {
		if err := encoder.Encode(&j.Events[i]); err != nil {
			return "", fmt.Errorf("failed to encode event %d: %w", i, err)
		}
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to flush replay: %w", err)
	}
	return filename, nil
}

// LoadFromFile reads a journal written by SaveToFile.
func LoadFromFile(filename string) (*Journal, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var meta metadata
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if meta.Version != formatVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}

	j := NewJournal(meta.Name)
	j.Events = make([]rules.Event, 0, meta.EventCount)
	for i := 0; i < meta.EventCount; i++ {
		var event rules.Event
		if err := decoder.Decode(&event); err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", i, err)
		}
		j.Events = append(j.Events, event)
	}
	return j, nil
}

type metadata struct {
	Name       string
	Timestamp  time.Time
	Version    int
	EventCount int
}

// Recorder saves journals to a directory. It is safe for concurrent use.
type Recorder struct {
	logger  *zap.Logger
	saveDir string
	mu      sync.Mutex
	saved   map[string]string // journal name -> file
}

// NewRecorder creates a recorder writing to saveDir.
func NewRecorder(logger *zap.Logger, saveDir string) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logger:  logger,
		saveDir: saveDir,
		saved:   make(map[string]string),
	}
}

// Save writes j to disk.
func (r *Recorder) Save(j *Journal) error {
	filename, err := j.SaveToFile(r.saveDir)
	if err != nil {
		return fmt.Errorf("failed to save replay %q: %w", j.Name, err)
	}

	r.mu.Lock()
	r.saved[j.Name] = filename
	r.mu.Unlock()

	r.logger.Info("saved replay to disk",
		zap.String("scenario", j.Name),
		zap.Int("event_count", j.Size()),
		zap.String("file", filename),
	)
	return nil
}

// Load reads back a journal saved by this recorder.
func (r *Recorder) Load(name string) (*Journal, error) {
	r.mu.Lock()
	filename, ok := r.saved[name]
	r.mu.Unlock()
	if !ok {
		filename = filepath.Join(r.saveDir, FileName(name))
	}

	j, err := LoadFromFile(filename)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loaded replay from disk",
		zap.String("scenario", name),
		zap.Int("event_count", j.Size()),
	)
	return j, nil
}

// Saved lists the journals written so far.
func (r *Recorder) Saved() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return maps.Clone(r.saved)
}
