package registry

import (
	"strings"
	"sync"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/chart"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
)

// Variant is the pair of chart kinds assigned to a device.
type Variant struct {
	Primary   chart.Kind
	Secondary chart.Kind
}

// VariantTable is indexed by registration order; devices past the end all
// get the last entry.
type VariantTable []Variant

// DefaultVariants returns the table used when none is configured.
func DefaultVariants() VariantTable {
	return VariantTable{
		{chart.KindBar, chart.KindBar},
		{chart.KindDoughnut, chart.KindDoughnut},
		{chart.KindPolarArea, chart.KindPolarArea},
		{chart.KindLine, chart.KindLine},
		{chart.KindPie, chart.KindPie},
	}
}

// ParseVariants builds a table from "primary:secondary" entries.
func ParseVariants(entries []string) (VariantTable, error) {
	errFactory := errors.New()

	if len(entries) == 0 {
		return nil, errFactory.WithData(errors.ErrInvalidConfig, "chart.variants must not be empty")
	}

	table := make(VariantTable, 0, len(entries))
	for _, entry := range entries {
		primary, secondary, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, "chart variant must be primary:secondary, got "+entry)
		}

		p, err := chart.ParseKind(strings.TrimSpace(primary))
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
		s, err := chart.ParseKind(strings.TrimSpace(secondary))
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}

		table = append(table, Variant{Primary: p, Secondary: s})
	}

	return table, nil
}

// Pick returns the variant for the n-th registered device.
func (t VariantTable) Pick(n int) Variant {
	return t[min(n, len(t)-1)]
}

// DeviceCharts is the chart state owned by one device.
type DeviceCharts struct {
	ID           string
	Index        int
	Variant      Variant
	Distribution *chart.Chart
	Counter      *chart.Chart
}

// DeviceSnapshot is a copy of a device's charts for readers.
type DeviceSnapshot struct {
	ID           string         `json:"id"`
	Index        int            `json:"index"`
	Distribution chart.Snapshot `json:"distribution"`
	Counter      chart.Snapshot `json:"counter"`
}

// Snapshot copies both charts.
func (d *DeviceCharts) Snapshot() DeviceSnapshot {
	return DeviceSnapshot{
		ID:           d.ID,
		Index:        d.Index,
		Distribution: d.Distribution.Snapshot(),
		Counter:      d.Counter.Snapshot(),
	}
}

// Registry maps device identifiers to their charts. Entries are never
// removed.
type Registry struct {
	mu       sync.RWMutex
	variants VariantTable
	devices  map[string]*DeviceCharts
	order    []*DeviceCharts
	onCreate func(*DeviceCharts)
}

// Option configures a Registry.
type Option func(*Registry)

// WithOnCreate registers fn to run once for every newly created entry,
// before Ensure returns it.
func WithOnCreate(fn func(*DeviceCharts)) Option {
	return func(r *Registry) {
		r.onCreate = fn
	}
}

// New creates an empty registry. An empty variant table falls back to
// DefaultVariants.
func New(variants VariantTable, opts ...Option) *Registry {
	if len(variants) == 0 {
		variants = DefaultVariants()
	}

	r := &Registry{
		variants: variants,
		devices:  make(map[string]*DeviceCharts),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Ensure returns the charts for id, creating them on first sight. The bool
// reports whether the entry was created by this call.
func (r *Registry) Ensure(id string) (*DeviceCharts, bool) {
	r.mu.RLock()
	dev, ok := r.devices[id]
	r.mu.RUnlock()
	if ok {
		return dev, false
	}

	r.mu.Lock()
	if dev, ok = r.devices[id]; ok {
		r.mu.Unlock()
		return dev, false
	}

	count := len(r.order)
	variant := r.variants.Pick(count)
	dev = &DeviceCharts{
		ID:           id,
		Index:        count,
		Variant:      variant,
		Distribution: chart.NewDistribution(variant.Primary),
		Counter:      chart.NewCounter(variant.Secondary),
	}
	r.devices[id] = dev
	r.order = append(r.order, dev)
	onCreate := r.onCreate
	r.mu.Unlock()

	if onCreate != nil {
		onCreate(dev)
	}

	return dev, true
}

// Get looks up an existing entry.
func (r *Registry) Get(id string) (*DeviceCharts, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]

	return dev, ok
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Devices returns all entries in first-seen order.
func (r *Registry) Devices() []*DeviceCharts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*DeviceCharts{}, r.order...)
}

// Snapshots copies every device's charts in first-seen order.
func (r *Registry) Snapshots() []DeviceSnapshot {
	devices := r.Devices()
	snaps := make([]DeviceSnapshot, len(devices))
	for i, d := range devices {
		snaps[i] = d.Snapshot()
	}

	return snaps
}
