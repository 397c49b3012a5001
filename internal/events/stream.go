package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultURL is the Automower Connect event endpoint
	DefaultURL = "wss://ws.openapi.husqvarna.dev/v1"

	// DefaultPingPeriod is how often a keep-alive "ping" text frame is sent.
	// The server drops connections that stay silent for too long.
	DefaultPingPeriod = 60 * time.Second

	// Time allowed to write a frame to the server
	writeWait = 10 * time.Second

	// Maximum message size accepted from the server
	maxMessageSize = 64 * 1024

	pingMessage = "ping"
)

// Handler receives every decoded event. It runs on the read loop, so a slow
// handler delays the next read.
type Handler func(Event)

// Stream subscribes to the mower event feed of one application
type Stream struct {
	url        string
	apiKey     string
	tokens     oauth2.TokenSource
	dialer     *websocket.Dialer
	pingPeriod time.Duration
	onConnect  func()
	logger     *zap.Logger
}

// Option configures a Stream
type Option func(*Stream)

// WithURL overrides the event endpoint
func WithURL(u string) Option {
	return func(s *Stream) { s.url = u }
}

// WithDialer sets the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Stream) { s.dialer = d }
}

// WithPingPeriod sets the keep-alive interval
func WithPingPeriod(d time.Duration) Option {
	return func(s *Stream) { s.pingPeriod = d }
}

// WithOnConnect registers a callback run once the handshake succeeds
func WithOnConnect(fn func()) Option {
	return func(s *Stream) { s.onConnect = fn }
}

// WithLogger sets the logging sink (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stream) { s.logger = logger }
}

// NewStream creates a stream authenticated with tokens and the application key
func NewStream(apiKey string, tokens oauth2.TokenSource, opts ...Option) *Stream {
	s := &Stream{
		url:        DefaultURL,
		apiKey:     apiKey,
		tokens:     tokens,
		dialer:     websocket.DefaultDialer,
		pingPeriod: DefaultPingPeriod,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pingPeriod <= 0 {
		s.pingPeriod = DefaultPingPeriod
	}
	return s
}

// Run connects and delivers events to handler until ctx is cancelled or the
// connection fails. It returns ctx.Err() after a cancellation.
func (s *Stream) Run(ctx context.Context, handler Handler) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Event stream connected", zap.String("url", s.url))
	if s.onConnect != nil {
		s.onConnect()
	}

	conn.SetReadLimit(maxMessageSize)

	var writeMu sync.Mutex
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepAlive(conn, &writeMu, done)
	}()

	// Unblock the read loop when ctx ends
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			writeMu.Unlock()
			_ = conn.Close()
		case <-done:
		}
	}()

	readErr := s.readLoop(conn, handler)

	close(done)
	_ = conn.Close()
	wg.Wait()

	if ctx.Err() != nil {
		s.logger.Info("Event stream closed", zap.String("url", s.url))
		return ctx.Err()
	}
	s.logger.Warn("Event stream disconnected", zap.String("url", s.url), zap.Error(readErr))
	return readErr
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	if s.apiKey != "" {
		header.Set("X-Api-Key", s.apiKey)
	}
	if provider, ok := tok.Extra("provider").(string); ok && provider != "" {
		header.Set("Authorization-Provider", provider)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("event stream handshake failed (url: %s, status: %d): %w", s.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to event stream (url: %s): %w", s.url, err)
	}
	return conn, nil
}

func (s *Stream) readLoop(conn *websocket.Conn, handler Handler) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("event stream closed by server: %w", err)
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := Decode(data)
		if err != nil {
			s.logger.Debug("Ignoring non-event message", zap.Int("length", len(data)), zap.Error(err))
			continue
		}
		s.logger.Debug("Event received",
			zap.String("type", ev.Type),
			zap.String("mower_id", ev.ID),
			zap.Int("length", len(data)),
		)
		handler(ev)
	}
}

func (s *Stream) keepAlive(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.TextMessage, []byte(pingMessage))
			writeMu.Unlock()
			if err != nil {
				s.logger.Debug("Keep-alive failed", zap.Error(err))
				return
			}
		}
	}
}

// ErrNotEvent is returned by Decode for messages without an event type
var ErrNotEvent = errors.New("message is not a mower event")

// Decode parses one event message
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, ErrNotEvent
	}
	return ev, nil
}
