package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Handler processes one message. It runs in its own goroutine.
type Handler func(ctx context.Context, topic string, payload []byte)

type MessageCallback func(topic string, payload []byte)

// Conn is the part of a broker client the session drives.
type Conn interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte, cb MessageCallback) error
	Disconnect(quiesce time.Duration)
}

// Hooks are invoked by the connection on lifecycle events. The client is
// expected to reconnect on its own after OnConnectionLost.
type Hooks struct {
	OnConnect        func()
	OnConnectionLost func(err error)
	OnReconnecting   func()
}

type Dialer func(hooks Hooks) Conn

// SessionLog records broker session events; nil disables it.
type SessionLog interface {
	Append(ctx context.Context, message string) error
}

type Options struct {
	Topic   string
	QoS     byte
	Quiesce time.Duration
	// Backoff drives retries of the first connect; nil means exponential
	// backoff without an elapsed-time limit.
	Backoff func() backoff.BackOff
}

type Session struct {
	opts    Options
	dial    Dialer
	handler Handler
	log     SessionLog
	logger  *zap.Logger

	conn  Conn
	ctx   context.Context
	state atomic.Int32
	count atomic.Uint64

	mu        sync.Mutex
	stopped   bool
	inflight  sync.WaitGroup
	listeners []func(State)
}

func NewSession(opts Options, dial Dialer, handler Handler, log SessionLog) *Session {
	if opts.Quiesce == 0 {
		opts.Quiesce = 250 * time.Millisecond
	}
	return &Session{
		opts:    opts,
		dial:    dial,
		handler: handler,
		log:     log,
		logger: common.GetLoggerWith(
			common.LoggerNameMQTTSession,
			zap.String(common.LoggerFieldCategory, common.LoggerCategoryConnection),
		),
		ctx: context.Background(),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Received is the number of messages dispatched so far.
func (s *Session) Received() uint64 {
	return s.count.Load()
}

// OnStateChange registers fn to be called after every state transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.logger.Info("Session state changed", zap.Stringer("from", prev), zap.Stringer("to", next))

	s.mu.Lock()
	listeners := append([]func(State){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
}

func (s *Session) hooks() Hooks {
	return Hooks{
		OnConnect:        s.onConnect,
		OnConnectionLost: s.onConnectionLost,
		OnReconnecting:   func() { s.setState(Connecting) },
	}
}

// Start connects, retrying the first attempt until it succeeds or ctx is
// done. Later reconnects are left to the client. ctx is also the parent
// context of every message handler.
func (s *Session) Start(ctx context.Context) error {
	s.ctx = ctx
	s.conn = s.dial(s.hooks())
	s.setState(Connecting)

	var b backoff.BackOff
	if s.opts.Backoff != nil {
		b = s.opts.Backoff()
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = 0
		b = exp
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return s.conn.Connect(ctx)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		s.logger.Warn("Connect failed, retrying", zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
	})
	if err != nil {
		s.setState(Disconnected)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("connect cancelled: %w", ctxErr)
		}
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (s *Session) onConnect() {
	s.setState(Connected)
	s.logger.Info("client connect successfully")

	if s.log != nil {
		if err := s.log.Append(s.ctx, "client connect successfully"); err != nil {
			s.logger.Error("Session log append failed", zap.Error(err))
		}
	}

	if err := s.conn.Subscribe(s.opts.Topic, s.opts.QoS, s.dispatch); err != nil {
		s.logger.Error("Subscribe failed", zap.String("topic", s.opts.Topic), zap.Error(err))
		return
	}
	s.logger.Info("Subscribed", zap.String("topic", s.opts.Topic), zap.Uint8("qos", s.opts.QoS))
}

func (s *Session) onConnectionLost(err error) {
	s.setState(Disconnected)
	s.logger.Warn("Connection lost", zap.Error(err))
}

func (s *Session) dispatch(topic string, payload []byte) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	n := s.count.Add(1)
	s.logger.Debug("Message received", zap.Uint64("count", n), zap.String("topic", topic))

	go func() {
		defer s.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("Message handler panicked", zap.String("topic", topic), zap.Any("panic", p))
			}
		}()
		s.handler(s.ctx, topic, payload)
	}()
}

// Stop disconnects and waits for in-flight handlers, at most until ctx is done.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.conn != nil {
		s.conn.Disconnect(s.opts.Quiesce)
	}
	s.setState(Disconnected)
	s.logger.Info("closed", zap.Uint64("received", s.count.Load()))

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for message handlers: %w", ctx.Err())
	}
}
