package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/ble-scanner/internal/discovery"
	"github.com/micro-ha/ble-scanner/internal/discovery/discoverytest"
	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/oui"
	"github.com/micro-ha/ble-scanner/internal/session"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// idleSource never emits on its own; tests drive the session through Emit.
type idleSource struct{}

func (idleSource) Mode() scan.Mode { return scan.ModeSimulated }

func (idleSource) Scan(ctx context.Context, _ discovery.Emitter) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingListener struct {
	mu         sync.Mutex
	discovered []model.LiveDevice
	updated    []model.LiveDevice
}

func (r *recordingListener) DeviceDiscovered(d model.LiveDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered = append(r.discovered, d)
}

func (r *recordingListener) DeviceUpdated(d model.LiveDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, d)
}

func newSession(t *testing.T, now func() time.Time, opts ...session.Option) *session.Session {
	t.Helper()
	seq := 0
	base := []session.Option{
		session.WithClock(now),
		session.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("dev-%d", seq)
		}),
	}
	s := session.New(oui.NewPrefixMatcher(oui.DefaultTargetPrefix), append(base, opts...)...)
	t.Cleanup(s.Stop)
	return s
}

func sighting(mac, name string, rssi int, at time.Time) model.Sighting {
	return model.Sighting{MACAddress: mac, Name: name, DeviceType: "Beacon", RSSI: rssi, ObservedAt: at}
}

func TestRepeatSightingsAreIdempotent(t *testing.T) {
	listener := &recordingListener{}
	s := newSession(t, func() time.Time { return epoch }, session.WithListener(listener))
	require.NoError(t, s.Start(context.Background(), idleSource{}))
	gen := s.Generation()

	s.Emit(gen, sighting("00:25:DF:01:02:03", "first", -70, epoch.Add(time.Second)))
	s.Emit(gen, sighting("00:25:df:01:02:03", "renamed", -55, epoch.Add(3*time.Second)))
	s.Emit(gen, sighting("00-25-DF-01-02-03", "again", -60, epoch.Add(4*time.Second)))

	devices := s.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "00:25:DF:01:02:03", devices[0].MACAddress)
	assert.Equal(t, "first", devices[0].Name)
	assert.Equal(t, -60, devices[0].RSSI)
	assert.Equal(t, epoch.Add(4*time.Second), devices[0].LastSeen)
	assert.Equal(t, epoch.Add(time.Second), devices[0].FirstSeenThisSession)
	assert.True(t, devices[0].IsTarget)

	m := s.Metrics()
	assert.Equal(t, 1, m.TotalSightingCount)
	assert.Equal(t, 1, m.TargetDeviceCount)

	assert.Len(t, listener.discovered, 1)
	assert.Len(t, listener.updated, 2)
}

func TestOrderAndTargetCounting(t *testing.T) {
	s := newSession(t, func() time.Time { return epoch })
	require.NoError(t, s.Start(context.Background(), idleSource{}))
	gen := s.Generation()

	s.Emit(gen, sighting("AA:BB:CC:00:00:01", "other", -80, epoch))
	s.Emit(gen, sighting("00:25:DF:00:00:02", "target", -50, epoch))
	s.Emit(gen, sighting("bogus", "broken", -90, epoch))

	devices := s.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, []string{"AA:BB:CC:00:00:01", "00:25:DF:00:00:02", "BOGUS"},
		[]string{devices[0].MACAddress, devices[1].MACAddress, devices[2].MACAddress})
	assert.Equal(t, []string{"dev-1", "dev-2", "dev-3"}, []string{devices[0].ID, devices[1].ID, devices[2].ID})
	assert.False(t, devices[0].IsTarget)
	assert.True(t, devices[1].IsTarget)
	assert.False(t, devices[2].IsTarget)

	m := s.Metrics()
	assert.Equal(t, 3, m.TotalSightingCount)
	assert.Equal(t, 1, m.TargetDeviceCount)
}

func TestStartTwiceFails(t *testing.T) {
	s := newSession(t, func() time.Time { return epoch })
	require.NoError(t, s.Start(context.Background(), idleSource{}))
	require.ErrorIs(t, s.Start(context.Background(), idleSource{}), scan.ErrAlreadyActive)
	assert.True(t, s.Active())
}

func TestStopIsIdempotentAndResetsElapsed(t *testing.T) {
	now := epoch
	s := newSession(t, func() time.Time { return now })

	s.Stop()
	assert.False(t, s.Active())
	assert.Zero(t, s.ElapsedSeconds(epoch.Add(time.Minute)))

	require.NoError(t, s.Start(context.Background(), idleSource{}))
	assert.Equal(t, int64(7), s.ElapsedSeconds(epoch.Add(7900*time.Millisecond)))
	assert.Zero(t, s.ElapsedSeconds(epoch.Add(-time.Second)))

	s.Emit(s.Generation(), sighting("00:25:DF:00:00:01", "a", -40, epoch))
	s.Stop()
	s.Stop()

	assert.False(t, s.Active())
	assert.Zero(t, s.ElapsedSeconds(epoch.Add(time.Minute)))
	m := s.Metrics()
	assert.Nil(t, m.StartedAt)
	assert.False(t, m.IsActive)
	assert.Equal(t, 1, m.TotalSightingCount, "counts stay readable after stop")
}

func TestLateSightingsFromStoppedGenerationAreDropped(t *testing.T) {
	listener := &recordingListener{}
	s := newSession(t, func() time.Time { return epoch }, session.WithListener(listener))
	require.NoError(t, s.Start(context.Background(), idleSource{}))
	stale := s.Generation()
	s.Stop()

	s.Emit(stale, sighting("00:25:DF:00:00:01", "late", -40, epoch))
	assert.Empty(t, s.Devices())

	require.NoError(t, s.Start(context.Background(), idleSource{}))
	s.Emit(stale, sighting("00:25:DF:00:00:01", "late", -40, epoch))
	assert.Empty(t, s.Devices())
	assert.Zero(t, s.Metrics().TotalSightingCount)
	assert.Empty(t, listener.discovered)
}

func TestRestartClearsLiveState(t *testing.T) {
	s := newSession(t, func() time.Time { return epoch })
	require.NoError(t, s.Start(context.Background(), idleSource{}))
	gen := s.Generation()
	for i := 1; i <= 3; i++ {
		s.Emit(gen, sighting(fmt.Sprintf("00:25:DF:00:00:0%d", i), "d", -60, epoch))
	}
	require.Len(t, s.Devices(), 3)
	s.Stop()

	require.NoError(t, s.Start(context.Background(), idleSource{}))
	assert.Empty(t, s.Devices())
	m := s.Metrics()
	assert.Zero(t, m.TotalSightingCount)
	assert.Zero(t, m.TargetDeviceCount)
	assert.True(t, m.IsActive)
	require.NotNil(t, m.StartedAt)
}

func TestClearEmptiesLiveSet(t *testing.T) {
	s := newSession(t, func() time.Time { return epoch })
	require.NoError(t, s.Start(context.Background(), idleSource{}))
	s.Emit(s.Generation(), sighting("00:25:DF:00:00:01", "a", -40, epoch))

	s.Clear()

	assert.Empty(t, s.Devices())
	assert.Zero(t, s.Metrics().TotalSightingCount)
	assert.True(t, s.Active())
}

func TestSimulatedScanEndToEnd(t *testing.T) {
	clock := discoverytest.NewManualClock(epoch, 2*time.Second)
	listener := &recordingListener{}
	s := newSession(t, clock.Now, session.WithListener(listener))
	src := discovery.NewSimulatedSource(2*time.Second, clock)

	require.NoError(t, s.Start(context.Background(), src))
	for i := 0; i < 5; i++ {
		require.True(t, clock.Tick(), "tick %d", i)
	}
	select {
	case <-s.SourceDone():
	case <-time.After(2 * time.Second):
		t.Fatal("simulated source did not exhaust")
	}

	devices := s.Devices()
	require.Len(t, devices, 5)
	wantTargets := 0
	for i, tpl := range discovery.DefaultCatalog {
		assert.Equal(t, tpl.MACAddress, devices[i].MACAddress)
		if oui.NewPrefixMatcher(oui.DefaultTargetPrefix).IsTarget(tpl.MACAddress) {
			wantTargets++
		}
	}

	m := s.Metrics()
	assert.Equal(t, 5, m.TotalSightingCount)
	assert.Equal(t, wantTargets, m.TargetDeviceCount)
	assert.True(t, s.Active(), "exhaustion keeps the session active")
	assert.Equal(t, int64(10), s.ElapsedSeconds(epoch.Add(10*time.Second)))
	assert.Len(t, listener.discovered, 5)
}
