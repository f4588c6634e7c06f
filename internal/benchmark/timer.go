// Package benchmark measures named, possibly nested, sections of work.
package benchmark

import (
	"fmt"
	"sync"
	"time"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
)

// DefaultCriticalTime flags sections slower than this.
const DefaultCriticalTime = 500 * time.Millisecond

// Record is one measured section.
type Record struct {
	Name     string
	Depth    int
	Started  time.Time
	Duration time.Duration
	Running  bool
	Critical bool
}

// Timer is a stop watch for named sections. It is safe for concurrent use.
type Timer struct {
	mutex    sync.Mutex
	enabled  bool
	critical time.Duration
	records  []*Record
	running  map[string]*Record
	created  time.Time
	now      func() time.Time
}

// New creates an enabled timer.
func New() *Timer {
	t := &Timer{
		enabled:  true,
		critical: DefaultCriticalTime,
		running:  make(map[string]*Record),
		now:      time.Now,
	}
	t.created = t.now()
	return t
}

// Enable turns measuring on.
func (t *Timer) Enable() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.enabled = true
}

// Disable turns measuring off. Start and Stop become no-ops.
func (t *Timer) Disable() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.enabled = false
}

// Enabled reports whether the timer measures.
func (t *Timer) Enabled() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.enabled
}

// SetCriticalTime sets the duration above which a section is critical.
func (t *Timer) SetCriticalTime(d time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.critical = d
}

// CriticalTime returns the critical duration.
func (t *Timer) CriticalTime() time.Duration {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.critical
}

// Start begins the section name. Sections started while others run are
// nested one level deeper.
func (t *Timer) Start(name string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.enabled {
		return nil
	}
	if name == "" {
		return docerrors.NewInvalidArgumentError("EMPTY_TIMER_NAME", "timer name must not be empty")
	}
	if _, ok := t.running[name]; ok {
		return docerrors.NewInvalidArgumentError("TIMER_RUNNING",
			fmt.Sprintf("timer %q is already running", name))
	}

	r := &Record{Name: name, Depth: len(t.running), Started: t.now(), Running: true}
	t.running[name] = r
	t.records = append(t.records, r)
	return nil
}

// Stop ends the section name.
func (t *Timer) Stop(name string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.enabled {
		return nil
	}
	r, ok := t.running[name]
	if !ok {
		return docerrors.NewInvalidArgumentError("TIMER_NOT_RUNNING",
			fmt.Sprintf("timer %q was not started or is already stopped", name))
	}

	delete(t.running, name)
	r.Running = false
	r.Duration = t.now().Sub(r.Started)
	r.Critical = t.critical > 0 && r.Duration > t.critical
	return nil
}

// Measure runs fn as the section name.
func (t *Timer) Measure(name string, fn func() error) error {
	if err := t.Start(name); err != nil {
		return err
	}
	fnErr := fn()
	if err := t.Stop(name); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// Report returns the sections in start order. Running sections report the
// time elapsed so far.
func (t *Timer) Report() []Record {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := t.now()
	out := make([]Record, len(t.records))
	for i, r := range t.records {
		out[i] = *r
		if r.Running {
			out[i].Duration = now.Sub(r.Started)
		}
	}
	return out
}

// TotalTime returns the time since the timer was created.
func (t *Timer) TotalTime() time.Duration {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.now().Sub(t.created)
}

// Reset drops all records and restarts the total time.
func (t *Timer) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.records = nil
	t.running = make(map[string]*Record)
	t.created = t.now()
}
