// Package session owns the lifecycle of one BLE scan: start and stop, elapsed time,
// and the deduplicated set of devices seen while active.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/micro-ha/ble-scanner/internal/discovery"
	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/oui"
)

const defaultStopTimeout = 5 * time.Second

// Classifier decides target membership for a MAC.
type Classifier interface {
	IsTarget(mac string) bool
}

// Listener observes live set changes. Callbacks run on the source goroutine,
// in emission order, after the session lock has been released.
type Listener interface {
	DeviceDiscovered(d model.LiveDevice)
	DeviceUpdated(d model.LiveDevice)
}

// Session is the Idle/Active scan state machine.
type Session struct {
	classifier  Classifier
	listener    Listener
	now         func() time.Time
	newID       func() string
	stopTimeout time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	active     bool
	generation uint64
	mode       scan.Mode
	startedAt  *time.Time
	devices    []model.LiveDevice
	index      map[string]int
	total      int
	targets    int
	cancel     context.CancelFunc
	done       chan struct{}
}

type Option func(*Session)

func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithStopTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// SetListener replaces the listener. It takes effect for the next sighting.
func (s *Session) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

func New(classifier Classifier, opts ...Option) *Session {
	if classifier == nil {
		classifier = oui.NewPrefixMatcher(oui.DefaultTargetPrefix)
	}
	closed := make(chan struct{})
	close(closed)
	s := &Session{
		classifier:  classifier,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		stopTimeout: defaultStopTimeout,
		logger:      slog.Default(),
		index:       map[string]int{},
		done:        closed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resets the live set and metrics and begins consuming source until Stop.
// ctx bounds the lifetime of the source goroutine, so callers pass a process
// context rather than a request context.
func (s *Session) Start(ctx context.Context, source discovery.Source) error {
	if source == nil {
		return errors.New("scan source is required")
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return scan.ErrAlreadyActive
	}
	s.generation++
	gen := s.generation
	started := s.now()
	s.active = true
	s.mode = source.Mode()
	s.startedAt = &started
	s.resetLocked()

	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("scan started", "mode", source.Mode(), "generation", gen)

	go func() {
		defer close(done)
		err := source.Scan(scanCtx, func(sighting model.Sighting) {
			s.Emit(gen, sighting)
		})
		switch {
		case err == nil:
			s.logger.Debug("scan source exhausted", "generation", gen)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		default:
			s.logger.Warn("scan source failed", "generation", gen, "err", err)
		}
	}()
	return nil
}

// Emit applies one sighting for generation gen. Sightings from a stopped or
// replaced generation are dropped.
func (s *Session) Emit(gen uint64, sighting model.Sighting) {
	mac := oui.NormalizeMAC(sighting.MACAddress)

	s.mu.Lock()
	if !s.active || gen != s.generation {
		s.mu.Unlock()
		return
	}
	listener := s.listener
	seenAt := sighting.ObservedAt
	if seenAt.IsZero() {
		seenAt = s.now()
	}

	if i, ok := s.index[mac]; ok {
		s.devices[i].RSSI = sighting.RSSI
		s.devices[i].LastSeen = seenAt
		updated := s.devices[i]
		s.mu.Unlock()
		if listener != nil {
			listener.DeviceUpdated(updated)
		}
		return
	}

	device := model.LiveDevice{
		ID:                   s.newID(),
		MACAddress:           mac,
		Name:                 sighting.Name,
		DeviceType:           sighting.DeviceType,
		RSSI:                 sighting.RSSI,
		LastSeen:             seenAt,
		FirstSeenThisSession: seenAt,
		IsTarget:             s.classifier.IsTarget(mac),
	}
	s.index[mac] = len(s.devices)
	s.devices = append(s.devices, device)
	s.total++
	if device.IsTarget {
		s.targets++
	}
	s.mu.Unlock()

	if listener != nil {
		listener.DeviceDiscovered(device)
	}
}

// Stop halts the active scan. It is a no-op when idle. When Stop returns no
// further sighting is attributed to the stopped generation.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.generation++
	s.startedAt = nil
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.logger.Warn("scan source did not stop in time; late sightings will be dropped")
	}
	s.logger.Info("scan stopped")
}

// Clear empties the live set and its counters without changing state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.devices = nil
	s.index = map[string]int{}
	s.total = 0
	s.targets = 0
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Generation identifies the current run; it changes on every Start and Stop.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Mode is the mode of the current or most recent run.
func (s *Session) Mode() scan.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SourceDone is closed when the source of the current run has returned.
func (s *Session) SourceDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// ElapsedSeconds is whole seconds since start, or 0 when idle.
func (s *Session) ElapsedSeconds(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.startedAt == nil {
		return 0
	}
	elapsed := now.Sub(*s.startedAt)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / time.Second)
}

// Devices returns a copy of the live set in first-seen order.
func (s *Session) Devices() []model.LiveDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LiveDevice(nil), s.devices...)
}

func (s *Session) Metrics() model.SessionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := model.SessionMetrics{
		IsActive:           s.active,
		TotalSightingCount: s.total,
		TargetDeviceCount:  s.targets,
	}
	if s.startedAt != nil {
		started := *s.startedAt
		m.StartedAt = &started
	}
	return m
}
