package device

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
)

const (
	DefaultPort             = 8080
	DefaultPath             = "/"
	DefaultReconnectDelay   = 2 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultTCPKeepAlive     = 15 * time.Second
)

// DefaultEndpoints are the production sorting line devices.
var DefaultEndpoints = []string{"10.110.22.14", "10.110.22.5", "10.110.22.7"}

// Config describes the static device list and the reconnect policy.
// ReadTimeout closes a connection that delivers neither a frame nor a pong
// for that long, with pings sent at half the interval. 0 disables it and
// leaves dead peers to TCP keepalive.
type Config struct {
	Endpoints        []string
	Port             int
	Path             string
	ReconnectDelay   time.Duration
	MaxRetries       int // consecutive failed dials before giving up, 0 = forever
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Endpoints:        append([]string{}, DefaultEndpoints...),
		Port:             DefaultPort,
		Path:             DefaultPath,
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if len(c.Endpoints) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "at least one device endpoint is required")
	}
	seen := make(map[string]bool, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if strings.TrimSpace(e) == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "device endpoint must not be empty")
		}
		url := EndpointURL(e, c.Port, c.Path)
		if seen[url] {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "duplicate device endpoint "+url)
		}
		seen[url] = true
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"devices.port", c.Port})
	}
	if c.ReconnectDelay <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"devices.reconnect_delay", c.ReconnectDelay})
	}
	if c.HandshakeTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"devices.handshake_timeout", c.HandshakeTimeout})
	}
	if c.ReadTimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value time.Duration
		}{"devices.read_timeout", c.ReadTimeout})
	}
	if c.MaxRetries < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "devices.max_retries must not be negative")
	}

	return nil
}

// URLs returns the WebSocket URL of every configured endpoint.
func (c Config) URLs() []string {
	urls := make([]string, len(c.Endpoints))
	for i, e := range c.Endpoints {
		urls[i] = EndpointURL(e, c.Port, c.Path)
	}

	return urls
}

// EndpointURL builds ws://host:port/path for a bare host. Values that
// already carry a scheme are returned unchanged, and a host that already
// names a port keeps it.
func EndpointURL(endpoint string, port int, path string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.Contains(endpoint, "://") {
		return endpoint
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	host := endpoint
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		host = net.JoinHostPort(strings.Trim(endpoint, "[]"), strconv.Itoa(port))
	}

	return "ws://" + host + path
}
