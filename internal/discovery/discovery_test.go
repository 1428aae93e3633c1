package discovery_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"github.com/micro-ha/ble-scanner/internal/discovery"
	"github.com/micro-ha/ble-scanner/internal/discovery/discoverytest"
	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestSimulatedSourceEmitsCatalogOnceThenStops(t *testing.T) {
	clock := discoverytest.NewManualClock(epoch, 2*time.Second)
	src := discovery.NewSimulatedSource(2*time.Second, clock, discovery.WithRand(rand.New(rand.NewPCG(1, 2))))

	var (
		mu  sync.Mutex
		got []model.Sighting
	)
	done := make(chan error, 1)
	go func() {
		done <- src.Scan(context.Background(), func(s model.Sighting) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		})
	}()

	for i := 0; i < src.CatalogSize(); i++ {
		require.True(t, clock.Tick(), "tick %d not consumed", i)
	}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("simulated source did not stop after catalog exhausted")
	}
	assert.False(t, clock.Tick(), "exhausted source must not consume more ticks")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, len(discovery.DefaultCatalog))
	for i, s := range got {
		assert.Equal(t, discovery.DefaultCatalog[i].MACAddress, s.MACAddress)
		assert.Equal(t, discovery.DefaultCatalog[i].Name, s.Name)
		assert.Equal(t, discovery.DefaultCatalog[i].DeviceType, s.DeviceType)
		assert.GreaterOrEqual(t, s.RSSI, -90)
		assert.LessOrEqual(t, s.RSSI, -40)
		assert.Equal(t, epoch.Add(time.Duration(i+1)*2*time.Second), s.ObservedAt)
	}
}

func TestSimulatedSourceStopsOnCancel(t *testing.T) {
	clock := discoverytest.NewManualClock(epoch, 2*time.Second)
	src := discovery.NewSimulatedSource(0, clock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- src.Scan(ctx, func(model.Sighting) {})
	}()
	require.True(t, clock.Tick())
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scan did not return after cancel")
	}
}

type fakeAdapter struct {
	mu        sync.Mutex
	enableErr error
	enables   int
	stopped   chan struct{}
	once      sync.Once
}

func newFakeAdapter(enableErr error) *fakeAdapter {
	return &fakeAdapter{enableErr: enableErr, stopped: make(chan struct{})}
}

func (f *fakeAdapter) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enables++
	return f.enableErr
}

func (f *fakeAdapter) setEnableErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableErr = err
}

func (f *fakeAdapter) Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	<-f.stopped
	return nil
}

func (f *fakeAdapter) StopScan() error {
	f.once.Do(func() { close(f.stopped) })
	return nil
}

func TestLiveSourceUnavailable(t *testing.T) {
	src := discovery.NewLiveSource(newFakeAdapter(errors.New("no adapter")), nil)

	err := src.Available()
	require.ErrorIs(t, err, scan.ErrCapabilityAbsent)

	err = src.Scan(context.Background(), func(model.Sighting) {})
	require.ErrorIs(t, err, scan.ErrCapabilityAbsent)

	var nilAdapter discovery.Adapter
	require.ErrorIs(t, discovery.NewLiveSource(nilAdapter, nil).Available(), scan.ErrCapabilityAbsent)
}

func TestLiveSourceReprobesUntilAdapterAppears(t *testing.T) {
	adapter := newFakeAdapter(errors.New("no adapter"))
	src := discovery.NewLiveSource(adapter, nil)
	simulated := discovery.NewSimulatedSource(time.Second, discoverytest.NewManualClock(epoch, time.Second))

	_, sel, err := discovery.Select(scan.ModeAuto, src, simulated)
	require.NoError(t, err)
	assert.True(t, sel.Demo)

	adapter.setEnableErr(nil)
	got, sel, err := discovery.Select(scan.ModeAuto, src, simulated)
	require.NoError(t, err)
	assert.Same(t, src, got)
	assert.False(t, sel.Demo)

	require.NoError(t, src.Available())
	assert.Equal(t, 2, adapter.enables, "a successful enable is not repeated")
}

func TestLiveSourceStopsAdapterOnCancel(t *testing.T) {
	adapter := newFakeAdapter(nil)
	src := discovery.NewLiveSource(adapter, nil)
	require.NoError(t, src.Available())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Scan(ctx, func(model.Sighting) {})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("live scan did not stop")
	}
}

func TestSelect(t *testing.T) {
	clock := discoverytest.NewManualClock(epoch, time.Second)
	simulated := discovery.NewSimulatedSource(time.Second, clock)
	absent := discovery.NewLiveSource(newFakeAdapter(errors.New("no adapter")), clock)
	present := discovery.NewLiveSource(newFakeAdapter(nil), clock)

	src, sel, err := discovery.Select(scan.ModeAuto, absent, simulated)
	require.NoError(t, err)
	assert.Same(t, simulated, src)
	assert.True(t, sel.Demo)
	assert.Equal(t, scan.ModeSimulated, sel.Mode)
	assert.NotEmpty(t, sel.Advisory)

	src, sel, err = discovery.Select(scan.ModeAuto, present, simulated)
	require.NoError(t, err)
	assert.Same(t, present, src)
	assert.False(t, sel.Demo)

	_, _, err = discovery.Select(scan.ModeLive, absent, simulated)
	require.ErrorIs(t, err, scan.ErrCapabilityAbsent)

	src, sel, err = discovery.Select(scan.ModeSimulated, present, simulated)
	require.NoError(t, err)
	assert.Same(t, simulated, src)
	assert.True(t, sel.Demo)
}
