// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"sort"
	"sync"
	"time"
)

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	}
	return "unknown"
}

// Event is one path change after debouncing.
type Event struct {
	Path string
	Op   Op
}

// Debouncer collects events and emits them as one batch after a quiet
// period. Repeated events for a path collapse to the latest one.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	events   map[string]Event
	timer    *time.Timer
	output   chan []Event
	stopped  bool
}

// NewDebouncer returns a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		events:   make(map[string]Event),
		output:   make(chan []Event, 16),
	}
}

// Output returns the channel of batches, sorted by path.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Add records an event and restarts the quiet period.
func (d *Debouncer) Add(path string, op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.events[path] = Event{Path: path, Op: op}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

// Stop cancels a pending flush and closes the output channel.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.events) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		batch = append(batch, e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.events = make(map[string]Event)

	select {
	case d.output <- batch:
	default:
		// Consumer is behind; keep the events for the next flush.
		for _, e := range batch {
			d.events[e.Path] = e
		}
		d.timer = time.AfterFunc(d.interval, d.flush)
	}
}
