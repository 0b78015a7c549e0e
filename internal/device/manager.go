package device

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/logger"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/metrics"
	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/telemetry"
	"github.com/gorilla/websocket"
)

const (
	dispatchBuffer = 64
	closeGrace     = time.Second
)

// Handler consumes decoded records. Handle is always called from a single
// goroutine.
type Handler interface {
	Handle(ctx context.Context, rec telemetry.Record)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec telemetry.Record)

func (f HandlerFunc) Handle(ctx context.Context, rec telemetry.Record) {
	f(ctx, rec)
}

// Manager keeps one WebSocket connection open per configured endpoint and
// feeds every decoded record to the handler in per-connection order.
type Manager struct {
	cfg     Config
	urls    []string
	handler Handler
	logger  logger.Logger
	dialer  *websocket.Dialer
	records chan telemetry.Record

	mu     sync.RWMutex
	status map[string]*EndpointStatus
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.logger = log
	}
}

func NewManager(cfg Config, handler Handler, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		urls:    cfg.URLs(),
		handler: handler,
		logger:  logger.Component("device"),
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
			NetDialContext: (&net.Dialer{
				Timeout:   cfg.HandshakeTimeout,
				KeepAlive: DefaultTCPKeepAlive,
			}).DialContext,
		},
		records: make(chan telemetry.Record, dispatchBuffer),
		status:  make(map[string]*EndpointStatus, len(cfg.Endpoints)),
	}
	for _, url := range m.urls {
		m.status[url] = &EndpointStatus{URL: url}
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run connects to every endpoint and blocks until ctx is cancelled or every
// endpoint has exhausted its retries. A Manager runs once.
func (m *Manager) Run(ctx context.Context) error {
	errFactory := errors.New()

	if err := m.cfg.Validate(); err != nil {
		return err
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		for rec := range m.records {
			m.handler.Handle(ctx, rec)
		}
	}()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		gaveUp []string
	)
	for _, url := range m.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := m.serve(ctx, url); err != nil {
				mu.Lock()
				gaveUp = append(gaveUp, url)
				mu.Unlock()
			}
		}(url)
	}

	wg.Wait()
	close(m.records)
	<-dispatchDone

	if len(gaveUp) > 0 && ctx.Err() == nil {
		return errFactory.WithData(errors.ErrRetriesExhausted, struct {
			Endpoints []string
		}{gaveUp})
	}

	return nil
}

// serve owns one endpoint: dial, read until the connection closes, wait the
// reconnect delay, repeat.
func (m *Manager) serve(ctx context.Context, url string) error {
	errFactory := errors.New()
	failures := 0

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if !m.sleep(ctx, m.cfg.ReconnectDelay) {
				return nil
			}
			metrics.ObserveReconnect(url)
		}

		m.updateStatus(url, func(s *EndpointStatus) { s.Attempts++ })
		m.logger.Debug().Str("endpoint", url).Int("attempt", attempt+1).Msg("Connecting to device")

		conn, err := m.dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			failures++
			appErr := errFactory.Wrap(errors.ErrTransport, err)
			m.updateStatus(url, func(s *EndpointStatus) {
				s.ConsecutiveFailures = failures
				s.LastError = appErr.Error()
			})
			m.logger.WarnWithCode(appErr).
				Str("endpoint", url).
				Int("failures", failures).
				Dur("retry_in", m.cfg.ReconnectDelay).
				Msg("Failed to connect to device")

			if m.cfg.MaxRetries > 0 && failures >= m.cfg.MaxRetries {
				giveUp := errFactory.WithData(errors.ErrRetriesExhausted, struct {
					Endpoint string
					Failures int
				}{url, failures})
				m.logger.ErrorWithCode(giveUp).Str("endpoint", url).Msg("Giving up on device")
				return giveUp
			}
			continue
		}

		failures = 0
		now := time.Now()
		m.updateStatus(url, func(s *EndpointStatus) {
			s.Connected = true
			s.ConsecutiveFailures = 0
			s.ConnectedSince = now
			s.LastError = ""
		})
		metrics.SetConnected(url, true)
		m.logger.Info().Str("endpoint", url).Msg("Connected to device")

		readErr := m.read(ctx, url, conn)

		m.updateStatus(url, func(s *EndpointStatus) {
			s.Connected = false
			s.ConnectedSince = time.Time{}
			if readErr != nil {
				s.LastError = readErr.Error()
			}
		})
		metrics.SetConnected(url, false)

		if ctx.Err() != nil {
			m.logger.Info().Str("endpoint", url).Msg("Connection closed on shutdown")
			return nil
		}
		m.logger.Info().Str("endpoint", url).Dur("retry_in", m.cfg.ReconnectDelay).Msg("Connection closed")
	}
}

func (m *Manager) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := m.dialer.DialContext(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return conn, err
}

// read consumes frames until the connection fails or ctx is cancelled. The
// returned error is nil on shutdown.
func (m *Manager) read(ctx context.Context, url string, conn *websocket.Conn) error {
	errFactory := errors.New()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(closeGrace)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	if m.cfg.ReadTimeout > 0 {
		if err := m.keepAlive(conn, done); err != nil {
			return errFactory.Wrap(errors.ErrTransport, err)
		}
	}

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			appErr := errFactory.Wrap(errors.ErrTransport, err)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Info().Str("endpoint", url).Msg("Device closed the connection")
			} else {
				m.logger.WarnWithCode(appErr).Str("endpoint", url).Msg("Read from device failed")
			}
			return appErr
		}

		if m.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}

		metrics.ObserveFrame(url)
		m.updateStatus(url, func(s *EndpointStatus) {
			s.Frames++
			s.LastFrame = time.Now()
		})

		if messageType != websocket.TextMessage {
			m.dropFrame(url, errFactory.WithData(errors.ErrDecodeFrame, struct {
				MessageType int
			}{messageType}))
			continue
		}

		rec, err := telemetry.Decode(payload)
		if err != nil {
			m.dropFrame(url, err)
			continue
		}

		select {
		case m.records <- rec:
		case <-ctx.Done():
			return nil
		}
	}
}

// keepAlive arms the read deadline, extends it on every pong and pings the
// device until done is closed. A silent peer makes ReadMessage fail with a
// timeout.
func (m *Manager) keepAlive(conn *websocket.Conn, done <-chan struct{}) error {
	timeout := m.cfg.ReadTimeout
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	})

	go func() {
		ticker := time.NewTicker(timeout / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(closeGrace)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return nil
}

func (m *Manager) dropFrame(url string, err error) {
	metrics.ObserveDecodeError(url)
	m.updateStatus(url, func(s *EndpointStatus) { s.DecodeErrors++ })

	var appErr errors.Error
	if errors.As(err, &appErr) {
		m.logger.WarnWithCode(appErr).Str("endpoint", url).Msg("Dropping frame")
		return
	}
	m.logger.Warn().Err(err).Str("endpoint", url).Msg("Dropping frame")
}

// sleep waits d and reports false when ctx was cancelled first.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
