package logwriter

import "sync"

// MemoryWriter keeps entries in memory. Used by tests to assert on telemetry.
type MemoryWriter struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) Write(entry LogEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	return nil
}

func (w *MemoryWriter) Flush() error {
	return nil
}

// Entries returns a copy of everything written so far.
func (w *MemoryWriter) Entries() []LogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]LogEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// ByEvent returns the entries written for one event name.
func (w *MemoryWriter) ByEvent(event string) []LogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []LogEntry
	for _, e := range w.entries {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (w *MemoryWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}
