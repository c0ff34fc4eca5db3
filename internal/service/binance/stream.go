package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"

	"github.com/gorilla/websocket"
)

const DefaultStreamURL = "wss://stream.binance.com:9443/ws"

// Stream implements PriceStream over the Binance miniTicker WebSocket
// feed. One connection carries all subscribed symbols.
type Stream struct {
	streamURL      string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	symbols   []string
	connected atomic.Bool
	subID     int64
}

// NewStream creates a Binance PriceStream.
func NewStream(streamURL string, reconnectDelay, pingInterval time.Duration) domrepo.PriceStream {
	if streamURL == "" {
		streamURL = DefaultStreamURL
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		streamURL:      streamURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("binance stream connect: %w", err)
	}
	s.conn = conn
	s.connected.Store(true)
	return nil
}

func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	if s.conn == nil || !s.connected.Load() {
		return fmt.Errorf("binance stream not connected")
	}
	if len(symbols) > 0 {
		s.symbols = symbols
	}
	params := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		params[i] = strings.ToLower(sym) + "@miniTicker"
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     atomic.AddInt64(&s.subID, 1),
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("binance subscribe: %w", err)
	}
	return nil
}

type miniTicker struct {
	Event  string `json:"e"`
	TimeMs int64  `json:"E"`
	Symbol string `json:"s"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// Read streams Tick events and errors until ctx is cancelled or the
// connection drops. The caller reconnects via Reconnect on error.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// keepalive loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PongMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("binance stream conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("binance stream read: %w", err)
					return
				}
				var m miniTicker
				if err := json.Unmarshal(b, &m); err != nil {
					// subscribe acks and other control frames
					continue
				}
				if m.Event != "24hrMiniTicker" {
					continue
				}
				price, err := strconv.ParseFloat(m.Close, 64)
				if err != nil {
					continue
				}
				vol, _ := strconv.ParseFloat(m.Volume, 64)
				tick := &models.Tick{Symbol: m.Symbol, Price: price, Volume: vol, Timestamp: m.TimeMs}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure, latest price wins anyway
				}
			}
		}
	}()

	return ticks, errs
}

func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx, nil)
}

func (s *Stream) Close() error {
	s.connected.Store(false)
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) IsConnected() bool { return s.connected.Load() }
