package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// EventLog is the append-only behavioral event store.
type EventLog interface {
	Append(event models.TrackableEvent) (models.TrackableEvent, error)
	Query(filter models.EventFilter) ([]models.TrackableEvent, error)
	Prune(policy models.RetentionPolicy, now time.Time) (int, error)
	Close() error
}

// MaxEventBytes caps one encoded event. Append rejects larger events and
// readers skip longer lines.
const MaxEventBytes = 64 * 1024

// jsonlEventLog implements EventLog with one JSON object per line.
type jsonlEventLog struct {
	path      string
	file      *os.File
	mu        sync.Mutex
	count     int
	retention models.RetentionPolicy
	now       func() time.Time
	logger    *zap.Logger
}

// EventLogOption configures a JSONL event log.
type EventLogOption func(*jsonlEventLog)

// WithRetention applies policy when the log is opened and whenever appends
// push it more than a tenth past policy.MaxEvents.
func WithRetention(policy models.RetentionPolicy, now func() time.Time) EventLogOption {
	return func(l *jsonlEventLog) {
		l.retention = policy
		if now != nil {
			l.now = now
		}
	}
}

// WithEventLogLogger reports background retention failures.
func WithEventLogLogger(logger *zap.Logger) EventLogOption {
	return func(l *jsonlEventLog) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewJSONLEventLog opens (creating if needed) the JSONL log at path.
func NewJSONLEventLog(path string, opts ...EventLogOption) (EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating event log directory: %v", models.ErrStoreUnavailable, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening event log: %v", models.ErrStoreUnavailable, err)
	}
	l := &jsonlEventLog{path: path, file: f, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}

	all, _, err := l.readAll()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	l.count = len(all)
	if l.retention.MaxAge > 0 || l.retention.MaxEvents > 0 {
		if _, err := l.prune(l.retention, l.now()); err != nil {
			_ = l.file.Close()
			return nil, err
		}
	}
	return l, nil
}

// Append validates the event, assigns an id when missing, and writes it.
// Events encoding to more than MaxEventBytes fail with ErrInvalidEvent.
func (l *jsonlEventLog) Append(event models.TrackableEvent) (models.TrackableEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := event.Validate(); err != nil {
		return models.TrackableEvent{}, err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return models.TrackableEvent{}, fmt.Errorf("marshalling event: %w", err)
	}
	if len(data) > MaxEventBytes {
		return models.TrackableEvent{}, fmt.Errorf("%w: encoded event is %d bytes, limit is %d", models.ErrInvalidEvent, len(data), MaxEventBytes)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return models.TrackableEvent{}, fmt.Errorf("%w: writing event: %v", models.ErrStoreUnavailable, err)
	}
	l.count++

	if limit := l.retention.MaxEvents; limit > 0 && l.count > limit+limit/10 {
		if removed, err := l.prune(l.retention, l.now()); err != nil {
			l.logger.Warn("event log retention failed", zap.Error(err))
		} else {
			l.logger.Debug("event log retention applied", zap.Int("removed", removed))
		}
	}
	return event, nil
}

// readLine returns the next line without its terminator. Lines longer than
// MaxEventBytes are consumed and reported as tooLong.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > MaxEventBytes+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(line, "\r\n"), tooLong, err
	}
}

// readAll decodes every well-formed line. Malformed and over-long lines are
// skipped and counted.
func (l *jsonlEventLog) readAll() ([]models.TrackableEvent, int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: opening event log for reading: %v", models.ErrStoreUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	var events []models.TrackableEvent
	skipped := 0
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, tooLong, err := readLine(r)
		switch {
		case tooLong:
			skipped++
		case len(line) > 0:
			var event models.TrackableEvent
			if json.Unmarshal(line, &event) != nil {
				skipped++
				break
			}
			events = append(events, event)
		}
		if errors.Is(err, io.EOF) {
			return events, skipped, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading event log: %v", models.ErrStoreUnavailable, err)
		}
	}
}

// Query returns matching events in timestamp order.
func (l *jsonlEventLog) Query(filter models.EventFilter) ([]models.TrackableEvent, error) {
	l.mu.Lock()
	all, _, err := l.readAll()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	events := make([]models.TrackableEvent, 0, len(all))
	for _, e := range all {
		if filter.Matches(e) {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

// Prune drops events older than MaxAge and then all but the newest MaxEvents.
// The log is rewritten to a temp file and renamed over the original, which
// also drops unreadable lines. It returns the number of events removed.
func (l *jsonlEventLog) Prune(policy models.RetentionPolicy, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prune(policy, now)
}

// prune expects l.mu to be held.
func (l *jsonlEventLog) prune(policy models.RetentionPolicy, now time.Time) (int, error) {
	all, skipped, err := l.readAll()
	if err != nil {
		return 0, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	kept := all
	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge)
		kept = make([]models.TrackableEvent, 0, len(all))
		for _, e := range all {
			if !e.Timestamp.Before(cutoff) {
				kept = append(kept, e)
			}
		}
	}
	if policy.MaxEvents > 0 && len(kept) > policy.MaxEvents {
		kept = kept[len(kept)-policy.MaxEvents:]
	}
	l.count = len(all)
	removed := len(all) - len(kept)
	if removed == 0 && skipped == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".events-*.jsonl")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temp log: %v", models.ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, e := range kept {
		if err := enc.Encode(e); err != nil {
			_ = tmp.Close()
			return 0, fmt.Errorf("%w: rewriting event log: %v", models.ErrStoreUnavailable, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("%w: flushing event log: %v", models.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("%w: closing temp log: %v", models.ErrStoreUnavailable, err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		return 0, fmt.Errorf("%w: replacing event log: %v", models.ErrStoreUnavailable, err)
	}
	_ = l.file.Close()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: reopening event log: %v", models.ErrStoreUnavailable, err)
	}
	l.file = f
	l.count = len(kept)
	return removed, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}
