package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

// CameraSource hands out the camera of one capture session key and frees it
// once the session is gone.
type CameraSource interface {
	CameraFor(key string) ports.Camera
	Release(key string)
}

// SessionKey identifies the capture session of a client on a tenant.
func SessionKey(clientID string, tenantID domain.TenantID) string {
	return string(tenantID) + ":" + clientID
}

type managedSession struct {
	session  *CaptureSession
	lastUsed time.Time
	holds    int
}

// CaptureManager owns one capture session per client and tenant. Sessions
// nobody touched for IdleTimeout and no preview socket holds are reaped.
type CaptureManager struct {
	source   CameraSource
	cfg      CaptureConfig
	recorder CaptureRecorder
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*managedSession
}

func NewCaptureManager(source CameraSource, cfg CaptureConfig, recorder CaptureRecorder, logger *zap.SugaredLogger) *CaptureManager {
	return &CaptureManager{
		source:   source,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*managedSession),
	}
}

func (m *CaptureManager) getOrCreateLocked(key string, tenantID domain.TenantID) *managedSession {
	if e, ok := m.sessions[key]; ok {
		e.lastUsed = m.now()
		return e
	}
	e := &managedSession{
		session:  NewCaptureSession(tenantID, m.source.CameraFor(key), m.cfg, m.recorder, m.logger),
		lastUsed: m.now(),
	}
	m.sessions[key] = e
	m.logger.Debugw("Capture session created", "capture_id", e.session.ID(), "tenant_id", tenantID)
	return e
}

// Session returns the session of clientID on tenantID, creating it stopped.
func (m *CaptureManager) Session(clientID string, tenantID domain.TenantID) *CaptureSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(SessionKey(clientID, tenantID), tenantID).session
}

// Hold is Session for a long-lived user such as a preview socket. The
// session is not reaped until done is called.
func (m *CaptureManager) Hold(clientID string, tenantID domain.TenantID) (session *CaptureSession, done func()) {
	key := SessionKey(clientID, tenantID)

	m.mu.Lock()
	e := m.getOrCreateLocked(key, tenantID)
	e.holds++
	m.mu.Unlock()

	var once sync.Once
	return e.session, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if cur, ok := m.sessions[key]; ok && cur == e {
				e.holds--
				e.lastUsed = m.now()
			}
		})
	}
}

// Lookup returns an existing session or domain.ErrCaptureNotFound.
func (m *CaptureManager) Lookup(clientID string, tenantID domain.TenantID) (*CaptureSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[SessionKey(clientID, tenantID)]
	if !ok {
		return nil, domain.ErrCaptureNotFound
	}
	e.lastUsed = m.now()
	return e.session, nil
}

// Close stops and forgets a session and frees its camera.
func (m *CaptureManager) Close(clientID string, tenantID domain.TenantID) {
	key := SessionKey(clientID, tenantID)

	m.mu.Lock()
	e, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if ok {
		e.session.Stop()
	}
	m.source.Release(key)
}

// StopAll releases every camera, used on shutdown.
func (m *CaptureManager) StopAll() {
	m.mu.Lock()
	closing := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for key, e := range closing {
		e.session.Stop()
		m.source.Release(key)
	}
	if len(closing) > 0 {
		m.logger.Infow("Capture sessions stopped", "count", len(closing))
	}
}

// Reap closes sessions idle since before now-idle that nothing holds and
// returns how many it closed.
func (m *CaptureManager) Reap(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []string
	var sessions []*CaptureSession
	for key, e := range m.sessions {
		if e.holds == 0 && e.lastUsed.Before(cutoff) {
			stale = append(stale, key)
			sessions = append(sessions, e.session)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for i, key := range stale {
		sessions[i].Stop()
		m.source.Release(key)
	}
	if len(stale) > 0 {
		m.logger.Infow("Idle capture sessions reaped", "count", len(stale))
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (m *CaptureManager) RunReaper(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(idle)
		}
	}
}

func (m *CaptureManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
