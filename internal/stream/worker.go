package stream

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkordell/murmur/internal/logging"
	"github.com/mkordell/murmur/internal/timeline"
)

const (
	handshakeTimeout = 15 * time.Second
	readTimeout      = 90 * time.Second
	emitTimeout      = time.Second
)

// errAuth marks a handshake rejected for credential reasons; the worker
// disables the subscription instead of retrying.
var errAuth = errors.New("stream authentication rejected")

// Socket is the minimal surface of a streaming connection the worker
// needs. *websocket.Conn satisfies it via sockConn.
type Socket interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens one streaming connection. Interface for testing.
type Dialer interface {
	DialStream(ctx context.Context) (Socket, error)
}

// WebsocketDialer dials a Mastodon streaming URL with gorilla/websocket.
type WebsocketDialer struct {
	URL string
}

// DialStream establishes the websocket connection. A 401/403 handshake
// response maps to errAuth so the worker can disable the subscription.
func (d WebsocketDialer) DialStream(ctx context.Context) (Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errAuth
		}
		return nil, err
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	return sockConn{conn}, nil
}

// sockConn adapts *websocket.Conn, refreshing the read deadline per frame.
type sockConn struct {
	conn *websocket.Conn
}

func (s sockConn) ReadMessage() (int, []byte, error) {
	messageType, data, err := s.conn.ReadMessage()
	if err == nil {
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
	return messageType, data, err
}

func (s sockConn) Close() error { return s.conn.Close() }

// Worker owns one streaming subscription. It runs on its own goroutine,
// blocks only on socket I/O, and communicates exclusively through the
// outbound event channel it was given.
type Worker struct {
	desc   Descriptor
	dialer Dialer
	out    chan<- Event
	cancel context.CancelFunc
	done   chan struct{}
	rng    *rand.Rand
}

// Start launches a worker for the descriptor. Events flow into out until
// Stop is called or the subscription is disabled by an auth failure.
func Start(ctx context.Context, desc Descriptor, dialer Dialer, out chan<- Event) *Worker {
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		desc:   desc,
		dialer: dialer,
		out:    out,
		cancel: cancel,
		done:   make(chan struct{}),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	go w.run(ctx)
	return w
}

// Stop signals the worker and waits for it to exit, bounded by timeout so
// the caller is never blocked on a wedged socket.
func (w *Worker) Stop(timeout time.Duration) {
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(timeout):
		logging.Warn("stream worker did not stop in time",
			"timeline", w.desc.Kind.DisplayName(), "timeout", timeout)
	}
}

// Done exposes the exit channel for join-with-timeout callers.
func (w *Worker) Done() <-chan struct{} { return w.done }

// run is the reconnect loop: Connecting -> Connected -> {Disconnected ->
// Backoff(n) -> Connecting} until cancelled, or Disabled on auth failure.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		w.emitStatus(StatusChanged{Desc: w.desc, State: timeline.StreamConnecting})

		sock, err := w.dialer.DialStream(ctx)
		if err != nil {
			if errors.Is(err, errAuth) {
				logging.Warn("stream disabled: credential rejected",
					"timeline", w.desc.Kind.DisplayName())
				w.emitStatus(StatusChanged{Desc: w.desc, State: timeline.StreamDisabled, Err: err.Error()})
				return
			}
			if ctx.Err() != nil {
				return
			}
			attempt++
			if !w.backoff(ctx, attempt, err) {
				return
			}
			continue
		}

		w.emitStatus(StatusChanged{Desc: w.desc, State: timeline.StreamConnected})
		err = w.readLoop(ctx, sock, &attempt)
		sock.Close()

		if ctx.Err() != nil {
			return
		}
		attempt++
		if !w.backoff(ctx, attempt, err) {
			return
		}
	}
}

// readLoop forwards frames until the socket fails. Resets the failure
// counter on every successfully decoded frame. Decode failures drop the
// single frame and keep reading.
func (w *Worker) readLoop(ctx context.Context, sock Socket, attempt *int) error {
	// Close the socket when cancelled so a blocked read returns within
	// one I/O timeout.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			sock.Close()
		case <-watchDone:
		}
	}()

	for {
		messageType, data, err := sock.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		event, ok := decodeEvent(w.desc, data)
		if !ok {
			logging.Debug("dropping undecodable stream frame",
				"timeline", w.desc.Kind.DisplayName(), "bytes", len(data))
			continue
		}
		*attempt = 0
		w.emit(event)
	}
}

// backoff waits out the jittered delay for the given consecutive-failure
// count, emitting a degraded status first. Returns false when cancelled.
func (w *Worker) backoff(ctx context.Context, attempt int, cause error) bool {
	delay := Delay(attempt-1, w.rng)
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	logging.Debug("stream backoff",
		"timeline", w.desc.Kind.DisplayName(), "attempt", attempt, "delay", delay)
	w.emitStatus(StatusChanged{
		Desc:      w.desc,
		State:     timeline.StreamBackoff,
		Attempt:   attempt,
		NextRetry: time.Now().Add(delay),
		Err:       errText,
	})

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// emit delivers a data event, blocking briefly under back-pressure. If the
// loop cannot drain in time the event is dropped with a warning rather
// than stalling the network thread.
func (w *Worker) emit(event Event) {
	select {
	case w.out <- event:
		return
	default:
	}
	timer := time.NewTimer(emitTimeout)
	defer timer.Stop()
	select {
	case w.out <- event:
	case <-timer.C:
		logging.Warn("response channel full, dropping stream event",
			"timeline", w.desc.Kind.DisplayName())
	}
}

// emitStatus delivers a lifecycle update without ever blocking: status
// records are the low-priority traffic dropped first under back-pressure.
func (w *Worker) emitStatus(event StatusChanged) {
	select {
	case w.out <- event:
	default:
		logging.Debug("response channel full, dropping stream status",
			"timeline", w.desc.Kind.DisplayName())
	}
}
