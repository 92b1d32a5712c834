package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// QuoteUpdate is one live aggregate pushed by the provider stream
type QuoteUpdate struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteHandler consumes live quote updates
type QuoteHandler func(QuoteUpdate)

// QuoteStream maintains a websocket subscription to the provider's live
// aggregate feed. Subscriptions survive reconnects.
type QuoteStream struct {
	url    string
	apiKey string
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	tickers map[string]bool
	handler QuoteHandler
	done    chan struct{}
}

// streamMessage is one frame of the provider's aggregate feed
type streamMessage struct {
	Event     string  `json:"ev"`
	Ticker    string  `json:"sym"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	EndMillis int64   `json:"e"`
}

// NewQuoteStream creates a live quote stream client
func NewQuoteStream(url, apiKey string, handler QuoteHandler, logger zerolog.Logger) *QuoteStream {
	return &QuoteStream{
		url:     url,
		apiKey:  apiKey,
		logger:  logger.With().Str("component", "quote_stream").Logger(),
		tickers: make(map[string]bool),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Subscribe adds a ticker to the live subscription set
func (s *QuoteStream) Subscribe(ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[ticker] = true
	if s.conn == nil {
		return nil
	}
	return s.sendSubscribe(ticker)
}

// Unsubscribe removes a ticker from the live subscription set
func (s *QuoteStream) Unsubscribe(ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickers, ticker)
	if s.conn == nil {
		return nil
	}
	return s.conn.WriteJSON(map[string]string{"action": "unsubscribe", "params": "A." + ticker})
}

// Run connects and pumps messages until the context is cancelled,
// reconnecting with backoff on failure
func (s *QuoteStream) Run(ctx context.Context) {
	defer close(s.done)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndPump(ctx); err != nil {
			s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("stream disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (s *QuoteStream) connectAndPump(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "auth", "params": s.apiKey}); err != nil {
		return fmt.Errorf("stream auth: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	for ticker := range s.tickers {
		if err := s.sendSubscribe(ticker); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}

		var messages []streamMessage
		if err := json.Unmarshal(payload, &messages); err != nil {
			s.logger.Debug().Err(err).Msg("skipping unparseable stream frame")
			continue
		}
		for _, msg := range messages {
			if msg.Event != "A" || s.handler == nil {
				continue
			}
			s.handler(QuoteUpdate{
				Ticker:    msg.Ticker,
				Price:     msg.Close,
				Volume:    msg.Volume,
				Timestamp: time.UnixMilli(msg.EndMillis).UTC(),
			})
		}
	}
}

// sendSubscribe must be called with the mutex held and a live connection
func (s *QuoteStream) sendSubscribe(ticker string) error {
	return s.conn.WriteJSON(map[string]string{"action": "subscribe", "params": "A." + ticker})
}
