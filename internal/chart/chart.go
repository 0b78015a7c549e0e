package chart

import (
	"slices"
	"sync"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
)

const (
	distributionDataset = "Quantidade de Peças"
	counterDataset      = "Encoder"
	counterLabel        = "Contagem"
	counterColor        = "#0077ff"
)

// Kind is the presentation style of a chart.
type Kind string

const (
	KindBar       Kind = "bar"
	KindDoughnut  Kind = "doughnut"
	KindPolarArea Kind = "polarArea"
	KindLine      Kind = "line"
	KindPie       Kind = "pie"
)

// ParseKind validates a chart kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindBar, KindDoughnut, KindPolarArea, KindLine, KindPie:
		return k, nil
	default:
		return "", errors.New().WithData(errors.ErrInvalidChartKind, s)
	}
}

// Chart holds a single dataset: an ordered label axis with one value and
// one color per label. Mutation is expected from a single goroutine; readers
// take copies through Snapshot.
type Chart struct {
	mu        sync.RWMutex
	kind      Kind
	dataset   string
	labels    []string
	data      []float64
	colors    []string
	revision  uint64
	onRefresh func(*Chart)
}

// Snapshot is an immutable copy of a chart's series.
type Snapshot struct {
	Kind     Kind      `json:"kind"`
	Dataset  string    `json:"dataset"`
	Labels   []string  `json:"labels"`
	Data     []float64 `json:"data"`
	Colors   []string  `json:"colors"`
	Revision uint64    `json:"revision"`
}

// New constructs a chart of the given kind with an initial series.
func New(kind Kind, dataset string, labels []string, data []float64, colors []string) *Chart {
	return &Chart{
		kind:    kind,
		dataset: dataset,
		labels:  append([]string{}, labels...),
		data:    append([]float64{}, data...),
		colors:  append([]string{}, colors...),
	}
}

// NewDistribution constructs an empty per-category chart.
func NewDistribution(kind Kind) *Chart {
	return New(kind, distributionDataset, nil, nil, nil)
}

// NewCounter constructs a single-slot counter chart initialised to zero.
func NewCounter(kind Kind) *Chart {
	return New(kind, counterDataset, []string{counterLabel}, []float64{0}, []string{counterColor})
}

// SetRefreshHook registers fn to be called after every Refresh.
func (c *Chart) SetRefreshHook(fn func(*Chart)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// Kind returns the chart's presentation style.
func (c *Chart) Kind() Kind {
	return c.kind
}

// ApplyDistribution sets the value for category, appending it to the label
// axis if it has not been seen before.
func (c *Chart) ApplyDistribution(category string, value float64) {
	c.mu.Lock()
	idx := slices.Index(c.labels, category)
	if idx == -1 {
		c.labels = append(c.labels, category)
		c.data = append(c.data, value)
		c.colors = append(c.colors, ColorFor(category))
	} else {
		c.data[idx] = value
	}
	c.mu.Unlock()

	c.Refresh()
}

// ApplyCounter overwrites the single counter slot.
func (c *Chart) ApplyCounter(value float64) {
	c.mu.Lock()
	if len(c.data) == 0 {
		c.labels = []string{counterLabel}
		c.data = []float64{value}
		c.colors = []string{counterColor}
	} else {
		c.data[0] = value
	}
	c.mu.Unlock()

	c.Refresh()
}

// Refresh marks the chart as changed and notifies the refresh hook.
func (c *Chart) Refresh() {
	c.mu.Lock()
	c.revision++
	hook := c.onRefresh
	c.mu.Unlock()

	if hook != nil {
		hook(c)
	}
}

// Snapshot returns a copy of the chart's current series.
func (c *Chart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Kind:     c.kind,
		Dataset:  c.dataset,
		Labels:   append([]string{}, c.labels...),
		Data:     append([]float64{}, c.data...),
		Colors:   append([]string{}, c.colors...),
		Revision: c.revision,
	}
}

