package discovery

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	"github.com/micro-ha/ble-scanner/internal/model"
)

const (
	DefaultSimulatedInterval = 2 * time.Second

	minSimulatedRSSI = -90
	maxSimulatedRSSI = -40
)

// Template is one fixed device emitted by the simulator.
type Template struct {
	Name       string
	MACAddress string
	DeviceType string
}

// DefaultCatalog is the demo device set.
var DefaultCatalog = []Template{
	{Name: "Temperature Sensor Pro", MACAddress: "00:25:DF:A3:B7:C9", DeviceType: "Environmental Monitor"},
	{Name: "Smart Lock Gateway", MACAddress: "00:25:DF:F1:E2:D3", DeviceType: "Access Control"},
	{Name: "Beacon Module v2", MACAddress: "00:25:DF:88:99:AA", DeviceType: "Location Beacon"},
	{Name: "Humidity Sensor", MACAddress: "00:25:DF:12:34:56", DeviceType: "Environmental Monitor"},
	{Name: "Motion Detector", MACAddress: "00:25:DF:AB:CD:EF", DeviceType: "Security Device"},
}

// SimulatedSource emits each catalog entry once, one per tick.
type SimulatedSource struct {
	catalog  []Template
	interval time.Duration
	clock    Clock

	mu  sync.Mutex
	rng *rand.Rand
}

type SimulatedOption func(*SimulatedSource)

func WithCatalog(catalog []Template) SimulatedOption {
	return func(s *SimulatedSource) {
		s.catalog = append([]Template(nil), catalog...)
	}
}

func WithRand(rng *rand.Rand) SimulatedOption {
	return func(s *SimulatedSource) {
		if rng != nil {
			s.rng = rng
		}
	}
}

func NewSimulatedSource(interval time.Duration, clock Clock, opts ...SimulatedOption) *SimulatedSource {
	if interval <= 0 {
		interval = DefaultSimulatedInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &SimulatedSource{
		catalog:  append([]Template(nil), DefaultCatalog...),
		interval: interval,
		clock:    clock,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x25df)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedSource) Mode() scan.Mode {
	return scan.ModeSimulated
}

// CatalogSize is the maximum number of sightings per Scan call.
func (s *SimulatedSource) CatalogSize() int {
	return len(s.catalog)
}

func (s *SimulatedSource) Scan(ctx context.Context, emit Emitter) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for i := range s.catalog {
		var at time.Time
		select {
		case <-ctx.Done():
			return ctx.Err()
		case at = <-ticker.C():
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emit(s.sighting(i, at.UTC()))
	}
	return nil
}

func (s *SimulatedSource) sighting(index int, at time.Time) model.Sighting {
	tpl := s.catalog[index%len(s.catalog)]
	return model.Sighting{
		MACAddress: tpl.MACAddress,
		Name:       tpl.Name,
		DeviceType: tpl.DeviceType,
		RSSI:       s.randomRSSI(),
		ObservedAt: at,
	}
}

func (s *SimulatedSource) randomRSSI() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return minSimulatedRSSI + s.rng.IntN(maxSimulatedRSSI-minSimulatedRSSI+1)
}
