package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	promFramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensordash_frames_received_total",
		Help: "Total number of WebSocket frames received from devices",
	}, []string{"endpoint"})
	promDecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensordash_decode_errors_total",
		Help: "Frames dropped because they could not be decoded",
	}, []string{"endpoint"})
	promReconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensordash_reconnects_total",
		Help: "Connection attempts made after a close or failed dial",
	}, []string{"endpoint"})
	promConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sensordash_endpoint_connected",
		Help: "1 while the device endpoint has an open connection",
	}, []string{"endpoint"})
	promRecordsRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensordash_records_routed_total",
		Help: "Telemetry records routed, by shape",
	}, []string{"kind"})
	promDevicesRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensordash_devices_registered",
		Help: "Number of devices with chart state",
	})
)

func init() {
	prometheus.MustRegister(
		promFramesReceived,
		promDecodeErrors,
		promReconnects,
		promConnected,
		promRecordsRouted,
		promDevicesRegistered,
	)
}

func ObserveFrame(endpoint string) {
	promFramesReceived.WithLabelValues(endpoint).Inc()
}

func ObserveDecodeError(endpoint string) {
	promDecodeErrors.WithLabelValues(endpoint).Inc()
}

func ObserveReconnect(endpoint string) {
	promReconnects.WithLabelValues(endpoint).Inc()
}

func SetConnected(endpoint string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	promConnected.WithLabelValues(endpoint).Set(v)
}

func ObserveRouted(kind string) {
	promRecordsRouted.WithLabelValues(kind).Inc()
}

func SetDevicesRegistered(n int) {
	promDevicesRegistered.Set(float64(n))
}
