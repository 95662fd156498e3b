package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oszshare/internal/logging"
)

const defaultHandshakeTimeout = 2 * time.Second

// feedMessage is the subset of a gosumemory/tosu frame we consume.
type feedMessage struct {
	Menu struct {
		Beatmap struct {
			Path struct {
				Folder string `json:"folder"`
				File   string `json:"file"`
			} `json:"path"`
			Metadata struct {
				Difficulty string `json:"difficulty"`
			} `json:"metadata"`
			Stats struct {
				AR     float64 `json:"AR"`
				CS     float64 `json:"CS"`
				OD     float64 `json:"OD"`
				HP     float64 `json:"HP"`
				FullSR float64 `json:"fullSR"`
			} `json:"stats"`
		} `json:"bm"`
	} `json:"menu"`
}

// ParseFrame decodes one feed frame.
func ParseFrame(data []byte) (Snapshot, error) {
	var msg feedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Snapshot{}, fmt.Errorf("decode live state frame: %w", err)
	}
	bm := msg.Menu.Beatmap
	return Snapshot{
		FolderName: bm.Path.Folder,
		FileName:   bm.Path.File,
		AR:         bm.Stats.AR,
		CS:         bm.Stats.CS,
		HP:         bm.Stats.HP,
		OD:         bm.Stats.OD,
		Difficulty: bm.Metadata.Difficulty,
		StarRating: bm.Stats.FullSR,
	}, nil
}

// WebsocketSource keeps a subscription to a live state feed and serves the
// most recent frame while it is fresh. The connection is (re)established
// lazily by Poll.
type WebsocketSource struct {
	url        string
	staleAfter time.Duration
	dialer     *websocket.Dialer
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	conn     *websocket.Conn
	latest   Snapshot
	received time.Time
}

// NewWebsocketSource subscribes to url on first Poll.
func NewWebsocketSource(url string, staleAfter time.Duration, logger *slog.Logger) *WebsocketSource {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Second
	}
	return &WebsocketSource{
		url:        strings.TrimSpace(url),
		staleAfter: staleAfter,
		dialer:     &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		logger:     logging.NewComponentLogger(logger, "livestate-ws"),
		now:        time.Now,
	}
}

// Poll returns the latest frame, connecting first when needed.
func (s *WebsocketSource) Poll(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("connect live state feed: %w", err)
		}
		s.conn = conn
		s.logger.Info("live state feed connected",
			logging.String("url", s.url),
			logging.String(logging.FieldEventType, "livestate_connected"),
		)
		go s.readLoop(conn)
	}

	if s.received.IsZero() {
		return Snapshot{}, ErrNoData
	}
	if age := s.now().Sub(s.received); age > s.staleAfter {
		return Snapshot{}, fmt.Errorf("%w: last frame %s old", ErrNoData, age.Round(time.Millisecond))
	}
	return s.latest, nil
}

// Latest returns the most recent frame while it is fresh without touching
// the connection.
func (s *WebsocketSource) Latest() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.received.IsZero() || s.now().Sub(s.received) > s.staleAfter {
		return Snapshot{}, false
	}
	return s.latest, true
}

func (s *WebsocketSource) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.received = time.Time{}
			}
			s.mu.Unlock()
			s.logger.Debug("live state feed disconnected", logging.Error(err))
			return
		}
		snap, err := ParseFrame(data)
		if err != nil {
			s.logger.Debug("live state frame ignored", logging.Error(err))
			continue
		}
		s.mu.Lock()
		if s.conn != conn {
			s.mu.Unlock()
			return
		}
		s.latest = snap
		s.received = s.now()
		s.mu.Unlock()
	}
}

// Close drops the subscription.
func (s *WebsocketSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.received = time.Time{}
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
