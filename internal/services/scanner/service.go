// Package scanner wires the scan session to persistence, notifications and the
// websocket stream, and builds the merged device view.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-ha/ble-scanner/internal/discovery"
	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/merge"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/notify"
	"github.com/micro-ha/ble-scanner/internal/pkg/utils"
	"github.com/micro-ha/ble-scanner/internal/session"
	"github.com/micro-ha/ble-scanner/internal/signal"
	"github.com/micro-ha/ble-scanner/internal/stream"
)

const maxAdvisories = 20

// Recorder persists a newly discovered live device.
type Recorder interface {
	RecordSighting(ctx context.Context, d model.LiveDevice) (devicedomain.Device, error)
}

// DeviceLister reads the persisted device set.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]devicedomain.Device, error)
}

// Broadcaster pushes messages to stream clients.
type Broadcaster interface {
	Broadcast(msgType string, data any) error
}

// Session is the scan state machine driven by the service.
type Session interface {
	Start(ctx context.Context, source discovery.Source) error
	Stop()
	Clear()
	Active() bool
	ElapsedSeconds(now time.Time) int64
	Devices() []model.LiveDevice
	Metrics() model.SessionMetrics
}

type AdvisoryKind string

const (
	AdvisoryDemoMode           AdvisoryKind = "demo_mode"
	AdvisoryPersistenceFailure AdvisoryKind = "persistence_failure"
	AdvisoryNotifyFailure      AdvisoryKind = "notify_failure"
)

// Advisory is a non-fatal condition surfaced to clients.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Message string       `json:"message"`
	At      time.Time    `json:"at"`
}

// Status is the scan snapshot returned by GET /api/scan and pushed on the stream.
type Status struct {
	model.SessionMetrics
	Mode           scan.Mode  `json:"mode"`
	DemoMode       bool       `json:"demoMode"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	Duration       string     `json:"duration"`
	Progress       float64    `json:"progress"`
	LiveCount      int        `json:"liveCount"`
	Advisories     []Advisory `json:"advisories"`
}

// Config carries the collaborators of a Service.
type Config struct {
	// BaseContext bounds scan sources and background writes. It must outlive
	// individual requests.
	BaseContext context.Context
	Mode        scan.Mode
	Live        discovery.Probe
	Simulated   discovery.Source
	Session     Session
	Recorder    Recorder
	Devices     DeviceLister
	Notifier    notify.Notifier
	Broadcaster Broadcaster
	Classifier  *signal.Classifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service owns the running scan and everything that reacts to it.
type Service struct {
	baseCtx    context.Context
	mode       scan.Mode
	live       discovery.Probe
	simulated  discovery.Source
	session    Session
	recorder   Recorder
	devices    DeviceLister
	notifier   notify.Notifier
	broadcast  Broadcaster
	classifier *signal.Classifier
	logger     *slog.Logger
	now        func() time.Time
	queue      *merge.UpsertQueue

	mu         sync.Mutex
	selection  discovery.Selection
	advisories []Advisory
	trigger    func()
}

func New(cfg Config) *Service {
	s := &Service{
		baseCtx:    cfg.BaseContext,
		mode:       cfg.Mode,
		live:       cfg.Live,
		simulated:  cfg.Simulated,
		session:    cfg.Session,
		recorder:   cfg.Recorder,
		devices:    cfg.Devices,
		notifier:   cfg.Notifier,
		broadcast:  cfg.Broadcaster,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		now:        cfg.Now,
		trigger:    func() {},
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = utils.NowUTC
	}
	if s.classifier == nil {
		s.classifier = signal.NewClassifier(model.DefaultStatusThresholds())
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	if s.mode == "" {
		s.mode = scan.ModeAuto
	}
	s.queue = merge.NewUpsertQueue(s.baseCtx, s.onPersistError)
	return s
}

// SetRefreshTrigger installs the callback that schedules a status broadcast.
func (s *Service) SetRefreshTrigger(trigger func()) {
	if trigger == nil {
		trigger = func() {}
	}
	s.mu.Lock()
	s.trigger = trigger
	s.mu.Unlock()
}

func (s *Service) triggerRefresh() {
	s.mu.Lock()
	trigger := s.trigger
	s.mu.Unlock()
	trigger()
}

// Start selects a source for the configured mode and begins a scan.
func (s *Service) Start() (Status, error) {
	if s.session.Active() {
		return s.Status(), scan.ErrAlreadyActive
	}
	source, selection, err := discovery.Select(s.mode, s.live, s.simulated)
	if err != nil {
		return s.Status(), err
	}
	if err := s.session.Start(s.baseCtx, source); err != nil {
		return s.Status(), err
	}

	s.mu.Lock()
	s.selection = selection
	s.mu.Unlock()
	if selection.Advisory != "" {
		s.addAdvisory(AdvisoryDemoMode, selection.Advisory)
	}
	s.logger.Info("scan session started", "mode", selection.Mode, "demo", selection.Demo)
	s.triggerRefresh()
	return s.Status(), nil
}

// Stop ends the scan; stopping an idle scanner is a no-op.
func (s *Service) Stop() Status {
	s.session.Stop()
	s.triggerRefresh()
	return s.Status()
}

// Clear empties the live set of the current scan.
func (s *Service) Clear() Status {
	s.session.Clear()
	s.triggerRefresh()
	return s.Status()
}

func (s *Service) Status() Status {
	now := s.now()
	elapsed := s.session.ElapsedSeconds(now)

	s.mu.Lock()
	selection := s.selection
	advisories := append([]Advisory(nil), s.advisories...)
	s.mu.Unlock()
	if advisories == nil {
		advisories = []Advisory{}
	}

	return Status{
		SessionMetrics: s.session.Metrics(),
		Mode:           selection.Mode,
		DemoMode:       selection.Demo,
		ElapsedSeconds: elapsed,
		Duration:       signal.FormatDuration(elapsed),
		Progress:       signal.ScanProgress(elapsed),
		LiveCount:      len(s.session.Devices()),
		Advisories:     advisories,
	}
}

// View merges the live set with persisted devices and decorates each row for
// display. Store failures degrade to the live set only.
func (s *Service) View(ctx context.Context, targetsOnly bool) []model.MergedDevice {
	live := s.session.Devices()

	var persisted []devicedomain.Device
	if s.devices != nil {
		items, err := s.devices.ListDevices(ctx)
		if err != nil {
			s.logger.Warn("fetch persisted devices failed", "err", err)
			s.addAdvisory(AdvisoryPersistenceFailure, "Stored devices unavailable: "+err.Error())
		} else {
			persisted = items
		}
	}

	merged := merge.Merge(live, persisted)
	if targetsOnly {
		merged = merge.Targets(merged)
	}
	now := s.now()
	for i := range merged {
		s.classifier.Decorate(&merged[i], now)
	}
	return merged
}

// Refresh pushes the current status to stream clients.
func (s *Service) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.broadcast == nil {
		return nil
	}
	return s.broadcast.Broadcast(stream.TypeStatus, s.Status())
}

// Snapshot is the first message sent to new stream clients.
func (s *Service) Snapshot() stream.Envelope {
	return stream.Envelope{Type: stream.TypeStatus, Data: s.Status()}
}

// DeviceDiscovered persists a new live device, announces targets and pushes the
// discovery to stream clients. Persistence runs on the MAC's queue lane.
func (s *Service) DeviceDiscovered(d model.LiveDevice) {
	if s.recorder != nil {
		err := s.queue.Submit(d.MACAddress, func(ctx context.Context) error {
			_, err := s.recorder.RecordSighting(ctx, d)
			return err
		})
		if err != nil {
			s.logger.Warn("device upsert not queued", "mac", d.MACAddress, "err", err)
		}
	}
	if d.IsTarget {
		if err := s.notifier.DeviceFound(s.baseCtx, d); err != nil {
			s.logger.Warn("target notification failed", "mac", d.MACAddress, "err", err)
			s.addAdvisory(AdvisoryNotifyFailure, err.Error())
		}
	}
	if s.broadcast != nil {
		if err := s.broadcast.Broadcast(stream.TypeDeviceDiscovered, d); err != nil {
			s.logger.Warn("broadcast discovery failed", "err", err)
		}
	}
	s.triggerRefresh()
}

func (s *Service) DeviceUpdated(model.LiveDevice) {
	s.triggerRefresh()
}

// Flush waits for queued writes.
func (s *Service) Flush() {
	s.queue.Wait()
}

// Close stops the scan and drains queued writes.
func (s *Service) Close() {
	s.session.Stop()
	s.queue.Close()
}

func (s *Service) onPersistError(mac string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error("device upsert failed", "mac", mac, "err", err)
	s.addAdvisory(AdvisoryPersistenceFailure, "Failed to save "+mac+": "+err.Error())
}

func (s *Service) addAdvisory(kind AdvisoryKind, message string) {
	a := Advisory{Kind: kind, Message: message, At: s.now()}
	s.mu.Lock()
	if n := len(s.advisories); n > 0 && s.advisories[n-1].Kind == kind && s.advisories[n-1].Message == message {
		s.advisories[n-1].At = a.At
		s.mu.Unlock()
		return
	}
	s.advisories = append(s.advisories, a)
	if len(s.advisories) > maxAdvisories {
		s.advisories = s.advisories[len(s.advisories)-maxAdvisories:]
	}
	s.mu.Unlock()

	if s.broadcast != nil {
		_ = s.broadcast.Broadcast(stream.TypeAdvisory, a)
	}
}

var _ session.Listener = (*Service)(nil)
