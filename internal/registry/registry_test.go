package registry_test

import (
	"fmt"
	"testing"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/chart"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIsIdempotent(t *testing.T) {
	var created int
	reg := registry.New(nil, registry.WithOnCreate(func(*registry.DeviceCharts) { created++ }))

	first, isNew := reg.Ensure("ESP32_A01")
	require.True(t, isNew)

	for i := 0; i < 5; i++ {
		again, isNew := reg.Ensure("ESP32_A01")
		assert.False(t, isNew)
		assert.Same(t, first, again)
		assert.Same(t, first.Distribution, again.Distribution)
		assert.Same(t, first.Counter, again.Counter)
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, reg.Len())
}

func TestVariantAssignmentByRegistrationOrder(t *testing.T) {
	table := registry.DefaultVariants()
	reg := registry.New(table)

	for i := 0; i < len(table)+3; i++ {
		dev, _ := reg.Ensure(fmt.Sprintf("dev-%d", i))
		want := table[min(i, len(table)-1)]

		assert.Equal(t, i, dev.Index)
		assert.Equal(t, want, dev.Variant)
		assert.Equal(t, want.Primary, dev.Distribution.Kind())
		assert.Equal(t, want.Secondary, dev.Counter.Kind())
	}
}

func TestRepeatedEnsureDoesNotShiftVariants(t *testing.T) {
	reg := registry.New(nil)

	reg.Ensure("A")
	reg.Ensure("A")
	reg.Ensure("A")
	b, _ := reg.Ensure("B")

	assert.Equal(t, 1, b.Index)
	assert.Equal(t, chart.KindDoughnut, b.Distribution.Kind())
}

func TestDevicesInFirstSeenOrder(t *testing.T) {
	reg := registry.New(nil)
	for _, id := range []string{"C", "A", "B", "A"} {
		reg.Ensure(id)
	}

	var ids []string
	for _, d := range reg.Devices() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)

	snaps := reg.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "C", snaps[0].ID)
	assert.Equal(t, []float64{0}, snaps[0].Counter.Data)

	_, ok := reg.Get("Z")
	assert.False(t, ok)
}

func TestParseVariants(t *testing.T) {
	table, err := registry.ParseVariants([]string{"bar:pie", " line : doughnut "})
	require.NoError(t, err)
	assert.Equal(t, registry.VariantTable{
		{Primary: chart.KindBar, Secondary: chart.KindPie},
		{Primary: chart.KindLine, Secondary: chart.KindDoughnut},
	}, table)

	for _, bad := range [][]string{nil, {"bar"}, {"bar:radar"}} {
		_, err := registry.ParseVariants(bad)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	}
}

func TestSingleVariantTableClamps(t *testing.T) {
	reg := registry.New(registry.VariantTable{{Primary: chart.KindLine, Secondary: chart.KindPie}})

	for _, id := range []string{"a", "b", "c"} {
		dev, _ := reg.Ensure(id)
		assert.Equal(t, chart.KindLine, dev.Distribution.Kind())
		assert.Equal(t, chart.KindPie, dev.Counter.Kind())
	}
}
