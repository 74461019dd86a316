package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/metrics"
	"cryptocom-momo-bot-go/internal/models"
)

// State is the connection lifecycle of a Stream.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateListening
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

const (
	defaultReadTimeout      = 60 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	readLimit               = 1 << 20
)

// Handler receives decoded market data in arrival order.
type Handler interface {
	OnTick(ctx context.Context, tick models.Tick)
	OnBook(ctx context.Context, book models.OrderBookUpdate)
}

// SentimentRefresher is poked on every data frame; it must not block.
type SentimentRefresher interface {
	RefreshIfStale(ctx context.Context)
}

// Conn is the subset of *websocket.Conn the stream uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a websocket connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials real websocket connections.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

// Dial opens a gorilla websocket connection and caps the read size.
func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// Transition describes a state change. Cause is set only when entering StateDisconnected.
type Transition struct {
	From  State
	To    State
	Cause error
}

// Stream is a reconnecting market data subscription for one instrument.
type Stream struct {
	url            string
	instrument     string
	bookDepth      int
	reconnectDelay time.Duration
	readTimeout    time.Duration

	dialer    Dialer
	handler   Handler
	sentiment SentimentRefresher
	logger    *zap.Logger
	now       func() time.Time

	state        atomic.Int32
	nextID       atomic.Int64
	onTransition func(Transition)
}

// Option configures a Stream.
type Option func(*Stream)

// WithDialer replaces the default websocket dialer.
func WithDialer(d Dialer) Option { return func(s *Stream) { s.dialer = d } }

// WithReadTimeout sets how long a session waits for any frame before reconnecting.
func WithReadTimeout(d time.Duration) Option { return func(s *Stream) { s.readTimeout = d } }

// WithTransitionHook registers a callback invoked synchronously on every state change.
func WithTransitionHook(fn func(Transition)) Option {
	return func(s *Stream) { s.onTransition = fn }
}

// NewStream creates a new Stream.
func NewStream(cfg config.Market, handler Handler, sentiment SentimentRefresher, logger *zap.Logger, opts ...Option) *Stream {
	s := &Stream{
		url:            cfg.WSURL,
		instrument:     cfg.Instrument(),
		bookDepth:      cfg.BookDepth,
		reconnectDelay: cfg.ReconnectDelay,
		readTimeout:    defaultReadTimeout,
		dialer:         WSDialer{},
		handler:        handler,
		sentiment:      sentiment,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Channels returns the subscription channel names for the configured instrument.
func (s *Stream) Channels() []string {
	return []string{
		fmt.Sprintf("%s.%s", channelPrefixTicker, s.instrument),
		fmt.Sprintf("%s.%s.%d", channelPrefixOrderBook, s.instrument, s.bookDepth),
	}
}

// Connect keeps a session alive until ctx is cancelled, reconnecting after a
// fixed delay on every failure. It only returns the context error.
func (s *Stream) Connect(ctx context.Context) error {
	for {
		cause := s.session(ctx)
		s.setState(StateDisconnected, cause)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		metrics.StreamReconnectsTotal.Inc()
		s.logger.Warn("Market data stream disconnected, reconnecting",
			zap.Error(cause),
			zap.Duration("delay", s.reconnectDelay))

		select {
		case <-time.After(s.reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Stream) session(ctx context.Context) error {
	s.setState(StateConnecting, nil)

	conn, err := s.dialer.Dial(ctx, s.url)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	// Unblocks ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.setState(StateSubscribed, nil)
	s.logger.Info("Subscribed to market data",
		zap.String("url", s.url),
		zap.Strings("channels", s.Channels()))

	s.setState(StateListening, nil)
	s.sentiment.RefreshIfStale(ctx)

	for {
		if s.readTimeout > 0 {
			if err := conn.SetReadDeadline(s.now().Add(s.readTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := s.route(ctx, conn, data); err != nil {
			return err
		}
	}
}

func (s *Stream) subscribe(conn Conn) error {
	payload, err := encodeSubscribe(s.nextID.Add(1), s.now().UnixMilli(), s.Channels())
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// route handles one inbound frame. Heartbeats are answered before returning so
// the reply always precedes the next read. Only a failed reply is an error.
func (s *Stream) route(ctx context.Context, conn Conn, data []byte) error {
	f, err := decodeFrame(data)
	if err != nil {
		s.logger.Debug("Skipping malformed frame", zap.Error(err))
		return nil
	}

	if f.Method == methodHeartbeat {
		reply, err := encodeHeartbeatResponse(f.ID)
		if err != nil {
			return fmt.Errorf("encode heartbeat reply: %w", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			return fmt.Errorf("heartbeat reply: %w", err)
		}
		metrics.HeartbeatsTotal.Inc()
		return nil
	}

	s.sentiment.RefreshIfStale(ctx)

	if f.Result == nil {
		return nil
	}
	switch {
	case f.Result.isTicker():
		s.routeTicker(ctx, f.Result)
	case f.Result.isBook():
		s.routeBook(ctx, f.Result)
	}
	return nil
}

func (s *Stream) routeTicker(ctx context.Context, r *frameResult) {
	for _, d := range r.Data {
		symbol := d.Instrument
		if symbol == "" {
			symbol = r.InstrumentName
		}
		ts := s.now()
		if d.Time > 0 {
			ts = time.UnixMilli(int64(d.Time))
		}
		s.handler.OnTick(ctx, models.Tick{
			Symbol:    symbol,
			Price:     float64(d.Price),
			Volume:    float64(d.Volume),
			Bid:       float64(d.Bid),
			Ask:       float64(d.Ask),
			Timestamp: ts,
		})
	}
}

func (s *Stream) routeBook(ctx context.Context, r *frameResult) {
	if len(r.Data) == 0 {
		return
	}
	d := r.Data[0]
	s.handler.OnBook(ctx, models.OrderBookUpdate{
		Symbol:  r.InstrumentName,
		BestBid: topOfBook(d.Bids),
		BestAsk: topOfBook(d.Asks),
	})
}

func (s *Stream) setState(next State, cause error) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next && cause == nil {
		return
	}
	if next == StateDisconnected && cause == nil {
		cause = errors.New("connection closed")
	}
	if s.onTransition != nil {
		s.onTransition(Transition{From: prev, To: next, Cause: cause})
	}
}
