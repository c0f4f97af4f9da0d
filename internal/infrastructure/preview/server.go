// Package preview serves the live booth channel: the browser pushes camera
// frames in, the server pushes capture state, settings and the text
// overlay preview out.
package preview

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/core/services"
	"selfiebooth/internal/infrastructure/camera"
	"selfiebooth/pkg/imaging"
)

// Message types.
const (
	TypeFrame    = "frame"
	TypeDenied   = "denied"
	TypePing     = "ping"
	TypeLocation = "location"

	TypeState       = "state"
	TypeSettings    = "settings"
	TypeTextPreview = "text_preview"
	TypePong        = "pong"
	TypeError       = "error"
)

// ConnectionRecorder tracks open preview sockets.
type ConnectionRecorder interface {
	PreviewConnected()
	PreviewDisconnected()
}

type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	LookupTimeout  time.Duration
	MaxFrameBytes  int64
	AllowedOrigins []string
}

// Inbound is a message from the booth page.
type Inbound struct {
	Type     string                  `json:"type"`
	Data     string                  `json:"data,omitempty"`
	Location *domain.LocationRequest `json:"location,omitempty"`
}

// Outbound is a message to the booth page.
type Outbound struct {
	Type        string                  `json:"type"`
	State       *domain.CaptureSnapshot `json:"state,omitempty"`
	Settings    *domain.Settings        `json:"settings,omitempty"`
	TextPreview *TextPreview            `json:"textPreview,omitempty"`
	Message     string                  `json:"message,omitempty"`
}

// TextPreview is the caption the live view renders over the video.
type TextPreview struct {
	Enabled bool             `json:"enabled"`
	Text    string           `json:"text"`
	Style   domain.TextStyle `json:"style"`
}

// Peer is one connected booth page. ServeConn needs to know who it is.
type Peer struct {
	ClientID string
	Tenant   *domain.Tenant
	Language language.Tag
}

type Server struct {
	feeds     *camera.FeedHub
	captures  *services.CaptureManager
	locations *services.LocationService
	events    ports.EventSubscriber
	recorder  ConnectionRecorder
	cfg       Config
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn

	logger *zap.SugaredLogger
}

func NewServer(
	feeds *camera.FeedHub,
	captures *services.CaptureManager,
	locations *services.LocationService,
	events ports.EventSubscriber,
	recorder ConnectionRecorder,
	cfg Config,
	logger *zap.SugaredLogger,
) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 5 * time.Second
	}
	s := &Server{
		feeds:     feeds,
		captures:  captures,
		locations: locations,
		events:    events,
		recorder:  recorder,
		cfg:       cfg,
		conns:     make(map[string]*conn),
		logger:    logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
		// A leading dot admits every subdomain, e.g. ".selfiebooth.de".
		if strings.HasPrefix(allowed, ".") && strings.HasSuffix(strings.ToLower(u.Hostname()), strings.ToLower(allowed)) {
			return true
		}
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Connections returns the number of open preview sockets.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

type conn struct {
	key  string
	peer Peer
	ws   *websocket.Conn
	feed *camera.FeedCamera

	send      chan Outbound
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	settings domain.Settings
	location *domain.LocationRequest
	stale    bool
	replaced bool
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// enqueue never blocks; a page that stops reading loses messages, not the
// server.
func (c *conn) enqueue(msg Outbound) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ServeConn upgrades the request and runs the channel until the page goes
// away. A second socket for the same capture session replaces the first.
func (s *Server) ServeConn(w http.ResponseWriter, r *http.Request, peer Peer) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("Preview upgrade failed", "error", err, "tenant_id", peer.Tenant.ID)
		return
	}
	defer ws.Close()

	key := services.SessionKey(peer.ClientID, peer.Tenant.ID)
	c := &conn{
		key:      key,
		peer:     peer,
		ws:       ws,
		feed:     s.feeds.Feed(key),
		send:     make(chan Outbound, 16),
		closed:   make(chan struct{}),
		settings: peer.Tenant.Settings,
	}

	s.mu.Lock()
	old, reconnect := s.conns[key]
	if reconnect {
		old.mu.Lock()
		old.replaced = true
		old.mu.Unlock()
		old.close()
		old.ws.Close()
	}
	s.conns[key] = c
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.PreviewConnected()
	}
	s.logger.Infow("Preview connected", "tenant_id", peer.Tenant.ID, "client_id", peer.ClientID, "reconnect", reconnect)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, release := s.captures.Hold(peer.ClientID, peer.Tenant.ID)
	defer release()
	unsubscribeState := session.OnChange(func(snap domain.CaptureSnapshot) {
		c.enqueue(stateMessage(snap))
	})
	defer unsubscribeState()

	unsubscribeEvents := func() {}
	if s.events != nil {
		unsubscribeEvents = s.events.Subscribe(func(e ports.Event) {
			s.onEvent(c, e)
		})
	}
	defer unsubscribeEvents()

	c.enqueue(stateMessage(session.Snapshot()))
	settings := c.currentSettings()
	c.enqueue(Outbound{Type: TypeSettings, Settings: &settings})
	s.sendTextPreview(ctx, c)

	// Start outlives this socket when a reconnect replaces it; Close ends it
	// otherwise.
	go func() {
		if err := session.Start(context.Background()); err != nil {
			s.logger.Debugw("Capture start from preview failed", "key", key, "error", err)
		}
	}()

	s.run(ctx, c)
	c.close()

	s.mu.Lock()
	if s.conns[key] == c {
		delete(s.conns, key)
	}
	s.mu.Unlock()

	c.mu.Lock()
	replaced := c.replaced
	c.mu.Unlock()
	if !replaced {
		s.captures.Close(peer.ClientID, peer.Tenant.ID)
	}

	if s.recorder != nil {
		s.recorder.PreviewDisconnected()
	}
	s.logger.Infow("Preview disconnected", "tenant_id", peer.Tenant.ID, "client_id", peer.ClientID, "replaced", replaced)
}

func (s *Server) run(ctx context.Context, c *conn) {
	ws := c.ws
	ws.SetReadLimit(s.cfg.MaxFrameBytes)
	ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	messages := make(chan Inbound, 4)
	errs := make(chan error, 1)

	go func() {
		for {
			var msg Inbound
			if err := ws.ReadJSON(&msg); err != nil {
				errs <- err
				return
			}
			ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
			select {
			case messages <- msg:
			case <-c.closed:
				return
			}
		}
	}()

	for {
		select {
		case msg := <-messages:
			if err := s.handleMessage(ctx, c, msg); err != nil {
				s.logger.Debugw("Preview message rejected", "key", c.key, "type", msg.Type, "error", err)
				c.enqueue(Outbound{Type: TypeError, Message: err.Error()})
			}

		case out := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := ws.WriteJSON(out); err != nil {
				s.logger.Debugw("Preview write failed", "key", c.key, "error", err)
				return
			}

		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debugw("Preview ping failed", "key", c.key, "error", err)
				return
			}

		case err := <-errs:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("Preview read failed", "key", c.key, "error", err)
			}
			return

		case <-c.closed:
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, c *conn, msg Inbound) error {
	switch msg.Type {
	case TypeFrame:
		frame, err := decodeFrame(msg.Data)
		if err != nil {
			return err
		}
		c.feed.Push(frame)

		c.mu.Lock()
		stale := c.stale
		c.stale = false
		c.mu.Unlock()
		if stale {
			s.sendTextPreview(ctx, c)
		}
		return nil

	case TypeDenied:
		c.feed.Deny()
		return nil

	case TypePing:
		c.enqueue(Outbound{Type: TypePong})
		return nil

	case TypeLocation:
		if msg.Location == nil {
			return fmt.Errorf("location message without location")
		}
		loc := *msg.Location
		c.mu.Lock()
		c.location = &loc
		c.mu.Unlock()
		s.sendTextPreview(ctx, c)
		return nil

	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

// onEvent keeps the connection's settings current. The new caption goes
// out with the next frame.
func (s *Server) onEvent(c *conn, e ports.Event) {
	if e.Type != ports.EventSettingsUpdated || e.TenantID != c.peer.Tenant.ID || e.Settings == nil {
		return
	}

	c.mu.Lock()
	if e.Settings.Version <= c.settings.Version {
		c.mu.Unlock()
		return
	}
	c.settings = e.Settings.Clone()
	c.stale = true
	settings := c.settings.Clone()
	c.mu.Unlock()

	c.enqueue(Outbound{Type: TypeSettings, Settings: &settings})
}

func (c *conn) currentSettings() domain.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Clone()
}

// sendTextPreview resolves the caption off the socket loop; a geocoding
// lookup must not stall frames.
func (s *Server) sendTextPreview(ctx context.Context, c *conn) {
	c.mu.Lock()
	settings := c.settings.Clone()
	var loc *domain.LocationRequest
	if c.location != nil {
		l := *c.location
		loc = &l
	}
	c.mu.Unlock()

	go func() {
		lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()

		text, err := s.locations.CaptionText(lookupCtx, c.peer.Language, settings, loc)
		if err != nil || ctx.Err() != nil {
			return
		}
		c.enqueue(Outbound{Type: TypeTextPreview, TextPreview: &TextPreview{
			Enabled: settings.TextOverlay.Enabled,
			Text:    text,
			Style:   settings.TextStyle(),
		}})
	}()
}

// stateMessage leaves the captured image out; the page fetches it over HTTP.
func stateMessage(snap domain.CaptureSnapshot) Outbound {
	snap.CapturedImage = ""
	return Outbound{Type: TypeState, State: &snap}
}

// decodeFrame accepts a data URL or bare base64 of a PNG or JPEG.
func decodeFrame(data string) (image.Image, error) {
	if data == "" {
		return nil, fmt.Errorf("empty frame")
	}
	return imaging.DecodeDataURL(data)
}
