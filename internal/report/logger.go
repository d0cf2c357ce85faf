package report

import (
	"errors"
	"sync"
)

// Logger accumulates values between dumps. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	values   map[string]any
	counts   map[string]int
	excluded map[string][]string
	formats  []Writer
}

func NewLogger(formats ...Writer) *Logger {
	return &Logger{
		values:   map[string]any{},
		counts:   map[string]int{},
		excluded: map[string][]string{},
		formats:  formats,
	}
}

// Record sets key to value; the last value recorded before a dump wins.
// exclude names formats that should not see the key.
func (l *Logger) Record(key string, value any, exclude ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[key] = value
	l.excluded[key] = exclude
}

// RecordMean keeps the running mean of every value recorded for key.
func (l *Logger) RecordMean(key string, value float64, exclude ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old, _ := l.values[key].(float64)
	n := l.counts[key]
	l.values[key] = old*float64(n)/float64(n+1) + value/float64(n+1)
	l.counts[key] = n + 1
	l.excluded[key] = exclude
}

// Dump writes the recorded values to every format and clears them.
func (l *Logger) Dump(step int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, f := range l.formats {
		if err := f.Write(l.values, l.excluded, step); err != nil {
			errs = append(errs, err)
		}
	}
	clear(l.values)
	clear(l.counts)
	clear(l.excluded)
	return errors.Join(errs...)
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, f := range l.formats {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
