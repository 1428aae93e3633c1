package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/ble-scanner/internal/discovery"
	"github.com/micro-ha/ble-scanner/internal/discovery/discoverytest"
	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/oui"
	"github.com/micro-ha/ble-scanner/internal/session"
	"github.com/micro-ha/ble-scanner/internal/stream"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mu   sync.Mutex
	macs []string
	err  error
}

func (f *fakeRecorder) RecordSighting(_ context.Context, d model.LiveDevice) (devicedomain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.macs = append(f.macs, d.MACAddress)
	return devicedomain.Device{MACAddress: d.MACAddress}, f.err
}

func (f *fakeRecorder) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.macs...)
}

type fakeLister struct {
	items []devicedomain.Device
	err   error
}

func (f *fakeLister) ListDevices(context.Context) ([]devicedomain.Device, error) {
	return f.items, f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	found []string
}

func (f *fakeNotifier) DeviceFound(_ context.Context, d model.LiveDevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.found = append(f.found, d.MACAddress)
	return nil
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeBroadcaster) Broadcast(msgType string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, msgType)
	return nil
}

func (f *fakeBroadcaster) count(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.types {
		if t == msgType {
			n++
		}
	}
	return n
}

type absentLive struct{}

func (absentLive) Mode() scan.Mode { return scan.ModeLive }
func (absentLive) Available() error {
	return scan.ErrCapabilityAbsent
}
func (absentLive) Scan(context.Context, discovery.Emitter) error {
	return scan.ErrCapabilityAbsent
}

type harness struct {
	svc         *Service
	session     *session.Session
	clock       *discoverytest.ManualClock
	recorder    *fakeRecorder
	lister      *fakeLister
	notifier    *fakeNotifier
	broadcaster *fakeBroadcaster
}

func newHarness(t *testing.T, mode scan.Mode) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := discoverytest.NewManualClock(epoch, 2*time.Second)
	sess := session.New(oui.NewPrefixMatcher(oui.DefaultTargetPrefix), session.WithClock(clock.Now), session.WithLogger(logger))
	h := &harness{
		session:     sess,
		clock:       clock,
		recorder:    &fakeRecorder{},
		lister:      &fakeLister{},
		notifier:    &fakeNotifier{},
		broadcaster: &fakeBroadcaster{},
	}
	h.svc = New(Config{
		BaseContext: context.Background(),
		Mode:        mode,
		Live:        absentLive{},
		Simulated:   discovery.NewSimulatedSource(2*time.Second, clock),
		Session:     sess,
		Recorder:    h.recorder,
		Devices:     h.lister,
		Notifier:    h.notifier,
		Broadcaster: h.broadcaster,
		Logger:      logger,
		Now:         clock.Now,
	})
	sess.SetListener(h.svc)
	t.Cleanup(h.svc.Close)
	return h
}

func (h *harness) runCatalog(t *testing.T) {
	t.Helper()
	for i := 0; i < len(discovery.DefaultCatalog); i++ {
		require.True(t, h.clock.Tick(), "tick %d", i)
	}
	select {
	case <-h.session.SourceDone():
	case <-time.After(2 * time.Second):
		t.Fatal("simulated source did not finish")
	}
	h.svc.Flush()
}

func TestAutoModeFallsBackToDemoAndPersistsEachDevice(t *testing.T) {
	h := newHarness(t, scan.ModeAuto)

	status, err := h.svc.Start()
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.True(t, status.DemoMode)
	assert.Equal(t, scan.ModeSimulated, status.Mode)
	require.Len(t, status.Advisories, 1)
	assert.Equal(t, AdvisoryDemoMode, status.Advisories[0].Kind)

	h.runCatalog(t)

	assert.Len(t, h.recorder.recorded(), 5)
	assert.Len(t, h.notifier.found, 5)
	assert.Equal(t, 5, h.broadcaster.count(stream.TypeDeviceDiscovered))

	status = h.svc.Status()
	assert.Equal(t, 5, status.TotalSightingCount)
	assert.Equal(t, 5, status.TargetDeviceCount)
	assert.Equal(t, int64(10), status.ElapsedSeconds)
	assert.Equal(t, "0:10", status.Duration)
	assert.Equal(t, 5, status.LiveCount)

	_, err = h.svc.Start()
	assert.ErrorIs(t, err, scan.ErrAlreadyActive)

	status = h.svc.Stop()
	assert.False(t, status.IsActive)
	assert.Zero(t, status.ElapsedSeconds)
	h.svc.Stop()
}

func TestLiveModeWithoutAdapterFails(t *testing.T) {
	h := newHarness(t, scan.ModeLive)

	_, err := h.svc.Start()
	require.ErrorIs(t, err, scan.ErrCapabilityAbsent)
	assert.False(t, h.session.Active())
}

func TestViewMergesLiveOverStored(t *testing.T) {
	h := newHarness(t, scan.ModeSimulated)
	stale := "Old Name"
	h.lister.items = []devicedomain.Device{
		{ID: 7, MACAddress: discovery.DefaultCatalog[0].MACAddress, Name: &stale, ScanCount: 3, IsTargetDevice: true, LastSeen: epoch.Add(-time.Hour)},
		{ID: 8, MACAddress: "AA:BB:CC:DD:EE:FF", ScanCount: 1, LastSeen: epoch.Add(-time.Hour)},
	}

	_, err := h.svc.Start()
	require.NoError(t, err)
	h.runCatalog(t)

	view := h.svc.View(context.Background(), false)
	require.Len(t, view, 6)
	assert.Equal(t, discovery.DefaultCatalog[0].Name, view[0].Name, "live entry shadows stored row")
	assert.Equal(t, model.OriginLive, view[0].Origin)
	assert.Equal(t, model.OriginStored, view[5].Origin)
	assert.Equal(t, model.StatusDisconnected, view[5].Status)
	assert.Equal(t, "1h ago", view[5].LastSeenLabel)

	targets := h.svc.View(context.Background(), true)
	assert.Len(t, targets, 5)
}

func TestViewDegradesToLiveWhenStoreFails(t *testing.T) {
	h := newHarness(t, scan.ModeSimulated)
	h.lister.err = errors.New("database is locked")

	_, err := h.svc.Start()
	require.NoError(t, err)
	h.runCatalog(t)

	view := h.svc.View(context.Background(), false)
	assert.Len(t, view, 5)

	kinds := []AdvisoryKind{}
	for _, a := range h.svc.Status().Advisories {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, AdvisoryPersistenceFailure)
}

func TestPersistFailureBecomesAdvisory(t *testing.T) {
	h := newHarness(t, scan.ModeSimulated)
	h.recorder.err = errors.New("disk full")

	_, err := h.svc.Start()
	require.NoError(t, err)
	h.runCatalog(t)

	found := false
	for _, a := range h.svc.Status().Advisories {
		if a.Kind == AdvisoryPersistenceFailure {
			found = true
		}
	}
	assert.True(t, found)
	assert.True(t, h.session.Active(), "persistence failures do not stop the scan")
}

func TestRefreshBroadcastsStatus(t *testing.T) {
	h := newHarness(t, scan.ModeSimulated)
	triggered := 0
	h.svc.SetRefreshTrigger(func() { triggered++ })

	require.NoError(t, h.svc.Refresh(context.Background()))
	assert.Equal(t, 1, h.broadcaster.count(stream.TypeStatus))

	h.svc.Clear()
	assert.Equal(t, 1, triggered)

	snap := h.svc.Snapshot()
	assert.Equal(t, stream.TypeStatus, snap.Type)
}
