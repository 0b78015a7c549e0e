package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/config"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/device"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/registry"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/router"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/server"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/telemetry"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

type fakeStatus []device.EndpointStatus

func (f fakeStatus) Status() []device.EndpointStatus {
	return f
}

type fixture struct {
	srv    *httptest.Server
	reg    *registry.Registry
	router *router.Router
	hub    *server.Hub
}

func newFixture(t *testing.T, status server.StatusSource) *fixture {
	t.Helper()

	hub := server.NewHub(nil)
	reg := registry.New(nil, registry.WithOnCreate(hub.Attach))
	cfg := config.ServerConfig{Listen: ":0", RenderWidth: 320, RenderHeight: 200}
	s := server.New(cfg, reg, hub, status)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &fixture{srv: srv, reg: reg, router: router.New(reg), hub: hub}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestIndex(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "/ws")
}

func TestDevicesAPI(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.router.Route(ctx, telemetry.Counter("B", 7))
	f.router.Route(ctx, telemetry.Distribution("A", "Grande", 5))

	resp, body := f.get(t, "/api/devices")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var devices []registry.DeviceSnapshot
	require.NoError(t, json.Unmarshal(body, &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, "B", devices[0].ID)
	assert.Equal(t, []float64{7}, devices[0].Counter.Data)
	assert.Equal(t, "A", devices[1].ID)
	assert.Equal(t, []string{"Grande"}, devices[1].Distribution.Labels)

	resp, body = f.get(t, "/api/devices/A")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dev registry.DeviceSnapshot
	require.NoError(t, json.Unmarshal(body, &dev))
	assert.Equal(t, 1, dev.Index)
	assert.Equal(t, []float64{5}, dev.Distribution.Data)

	resp, body = f.get(t, "/api/devices/Z")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), string(errors.ErrNotFound))
}

func TestChartPNG(t *testing.T) {
	f := newFixture(t, nil)
	f.router.Route(context.Background(), telemetry.Counter("B", 3))

	resp, body := f.get(t, "/api/devices/B/charts/counter")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, pngMagic))

	resp, body = f.get(t, "/api/devices/B/charts/counter?width=100&height=80")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.HasPrefix(body, pngMagic))

	// no categories yet
	resp, _ = f.get(t, "/api/devices/B/charts/distribution")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.get(t, "/api/devices/B/charts/radar")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.get(t, "/api/devices/Z/charts/counter")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChartPNGSinglePointLine(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C", "D"} {
		f.router.Route(ctx, telemetry.Counter(id, 1))
	}
	f.router.Route(ctx, telemetry.Distribution("D", "Grande", 4))

	dev, ok := f.reg.Get("D")
	require.True(t, ok)
	require.Equal(t, "line", string(dev.Counter.Kind()))

	for _, slot := range []string{"counter", "distribution"} {
		resp, body := f.get(t, "/api/devices/D/charts/"+slot)
		require.Equal(t, http.StatusOK, resp.StatusCode, slot)
		assert.True(t, bytes.HasPrefix(body, pngMagic), slot)
	}
}

func TestEndpointsAPI(t *testing.T) {
	f := newFixture(t, fakeStatus{
		{URL: "ws://10.110.22.14:8080/", Connected: true, Attempts: 1},
		{URL: "ws://10.110.22.5:8080/", Attempts: 3, ConsecutiveFailures: 3, LastError: "refused"},
	})

	resp, body := f.get(t, "/api/endpoints")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status []device.EndpointStatus
	require.NoError(t, json.Unmarshal(body, &status))
	require.Len(t, status, 2)
	assert.True(t, status[0].Connected)
	assert.Equal(t, "refused", status[1].LastError)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.router.Route(context.Background(), telemetry.Counter("B", 1))

	resp, body := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sensordash_devices_registered")
	assert.Contains(t, string(body), "sensordash_records_routed_total")
}

func readMessage(t *testing.T, conn *websocket.Conn) server.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg server.Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestWebSocketPushesUpdates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.router.Route(ctx, telemetry.Counter("B", 3))

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readMessage(t, conn)
	assert.Equal(t, server.MessageSnapshot, snapshot.Type)
	require.Len(t, snapshot.Devices, 1)
	assert.Equal(t, []float64{3}, snapshot.Devices[0].Counter.Data)

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	f.router.Route(ctx, telemetry.Counter("B", 7))

	update := readMessage(t, conn)
	assert.Equal(t, server.MessageDevice, update.Type)
	require.NotNil(t, update.Device)
	assert.Equal(t, "B", update.Device.ID)
	assert.Equal(t, []float64{7}, update.Device.Counter.Data)

	f.router.Route(ctx, telemetry.Distribution("A", "Media", 2))

	created := readMessage(t, conn)
	require.NotNil(t, created.Device)
	assert.Equal(t, "A", created.Device.ID)
	assert.Equal(t, []string{"Media"}, created.Device.Distribution.Labels)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	// reserve a free port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	hub := server.NewHub(nil)
	reg := registry.New(nil, registry.WithOnCreate(hub.Attach))
	s := server.New(config.ServerConfig{Listen: addr, RenderWidth: 320, RenderHeight: 200}, reg, hub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReportsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	hub := server.NewHub(nil)
	s := server.New(config.ServerConfig{Listen: ln.Addr().String(), RenderWidth: 320, RenderHeight: 200},
		registry.New(nil), hub, nil)

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrServeHTTP))
}

func TestWebSocketKeepsUpdateDuringConnect(t *testing.T) {
	hub := server.NewHub(nil)
	reg := registry.New(nil, registry.WithOnCreate(hub.Attach))
	rt := router.New(reg)
	ctx := context.Background()
	rt.Route(ctx, telemetry.Counter("B", 3))

	dev, ok := reg.Get("B")
	require.True(t, ok)

	// The snapshot is taken before the counter moves to 7, which is the
	// refresh a joining client must not miss.
	snapshot := func() []registry.DeviceSnapshot {
		stale := reg.Snapshots()
		go rt.Route(ctx, telemetry.Counter("B", 7))
		for dev.Counter.Snapshot().Data[0] != 7 {
			time.Sleep(time.Millisecond)
		}
		return stale
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, snapshot)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readMessage(t, conn)
	require.Equal(t, server.MessageSnapshot, initial.Type)
	require.Len(t, initial.Devices, 1)
	assert.Equal(t, []float64{3}, initial.Devices[0].Counter.Data)

	update := readMessage(t, conn)
	assert.Equal(t, server.MessageDevice, update.Type)
	require.NotNil(t, update.Device)
	assert.Equal(t, []float64{7}, update.Device.Counter.Data)
	assert.Greater(t, update.Device.Counter.Revision, initial.Devices[0].Counter.Revision)
}
