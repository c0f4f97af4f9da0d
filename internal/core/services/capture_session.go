package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/imaging"
	"selfiebooth/pkg/retry"
	"selfiebooth/pkg/tracing"
)

// CaptureConfig tunes the camera lifecycle of a capture session.
type CaptureConfig struct {
	Constraints    domain.Constraints
	ReadyTimeout   time.Duration
	ReleaseTimeout time.Duration
	Restart        retry.Config
}

// DefaultCaptureConfig asks for a 640x480 user-facing stream.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Constraints: domain.Constraints{
			FacingMode:  domain.FacingUser,
			IdealWidth:  640,
			IdealHeight: 480,
		},
		ReadyTimeout:   10 * time.Second,
		ReleaseTimeout: 2 * time.Second,
		Restart: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 300 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
	}
}

// CaptureRecorder receives capture outcomes. Implementations must be safe
// for concurrent use.
type CaptureRecorder interface {
	RecordCapture(tenantID, outcome string)
	RecordCameraRestart(tenantID, outcome string)
}

// CaptureSession owns the single camera stream of one booth client and
// drives it through starting, ready, capturing, captured and releasing.
type CaptureSession struct {
	id       domain.CaptureID
	tenantID domain.TenantID
	camera   ports.Camera
	cfg      CaptureConfig
	recorder CaptureRecorder
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	state     domain.CaptureState
	stream    ports.MediaStream
	captured  string
	frameID   *domain.FrameID
	restarts  int
	gen       uint64
	seq       uint64
	listeners map[uint64]func(domain.CaptureSnapshot)
	nextLis   uint64

	// notifyMu serializes listener calls; delivered is the seq of the last
	// snapshot handed to listeners.
	notifyMu  sync.Mutex
	delivered uint64
}

func NewCaptureSession(
	tenantID domain.TenantID,
	camera ports.Camera,
	cfg CaptureConfig,
	recorder CaptureRecorder,
	logger *zap.SugaredLogger,
) *CaptureSession {
	return &CaptureSession{
		id:        domain.CaptureID(uuid.NewString()),
		tenantID:  tenantID,
		camera:    camera,
		cfg:       cfg,
		recorder:  recorder,
		logger:    logger,
		state:     domain.StateStopped,
		listeners: make(map[uint64]func(domain.CaptureSnapshot)),
	}
}

func (s *CaptureSession) ID() domain.CaptureID { return s.id }

// OnChange registers fn for state changes. Calls are serialized and arrive
// in transition order; a snapshot overtaken by a newer one is skipped. fn
// must not start another transition on the same session.
func (s *CaptureSession) OnChange(fn func(domain.CaptureSnapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextLis
	s.nextLis++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *CaptureSession) Snapshot() domain.CaptureSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CaptureSession) snapshotLocked() domain.CaptureSnapshot {
	snap := domain.CaptureSnapshot{
		ID:            s.id,
		TenantID:      s.tenantID,
		State:         s.state,
		CapturedImage: s.captured,
		Restarts:      s.restarts,
	}
	if s.stream != nil {
		snap.StreamID = s.stream.ID()
		snap.Dimensions = s.stream.Dimensions()
	}
	if s.frameID != nil {
		id := *s.frameID
		snap.FrameID = &id
	}
	return snap
}

// setStateLocked changes the state and returns the notification to send once
// the lock is released.
func (s *CaptureSession) setStateLocked(state domain.CaptureState) func() {
	s.state = state
	s.seq++
	seq := s.seq
	snap := s.snapshotLocked()
	fns := make([]func(domain.CaptureSnapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		if seq <= s.delivered {
			return
		}
		s.delivered = seq
		for _, fn := range fns {
			fn(snap)
		}
	}
}

// traceState tags the span in ctx with the state the operation ended in.
func (s *CaptureSession) traceState(ctx context.Context) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	tracing.AddSpanAttributes(ctx, tracing.CaptureStateKey.String(string(state)))
}

// SelectFrame records the frame the user picked for the export.
func (s *CaptureSession) SelectFrame(id domain.FrameID) {
	s.mu.Lock()
	s.frameID = &id
	s.mu.Unlock()
}

// Start acquires a stream and waits for its first decoded frame. A refused
// or failing camera leaves the session in the denied state. Starting a
// running session is a no-op.
func (s *CaptureSession) Start(ctx context.Context) error {
	ctx, span := tracing.TraceCaptureTransition(ctx, "start", string(s.id), string(s.tenantID))
	defer span.End()
	defer s.traceState(ctx)

	s.mu.Lock()
	switch s.state {
	case domain.StateStopped, domain.StateDenied:
	case domain.StateReady, domain.StateCaptured:
		s.mu.Unlock()
		return nil
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", domain.ErrInvalidTransition, state)
	}
	s.gen++
	gen := s.gen
	notify := s.setStateLocked(domain.StateStarting)
	s.mu.Unlock()
	notify()

	err := s.acquire(ctx, gen)
	tracing.RecordError(ctx, err)
	return err
}

// acquire opens a stream for generation gen and moves the session to ready.
func (s *CaptureSession) acquire(ctx context.Context, gen uint64) error {
	stream, err := s.open(ctx)
	if err != nil {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return fmt.Errorf("capture session %s was stopped while starting", s.id)
		}
		notify := s.setStateLocked(domain.StateDenied)
		s.mu.Unlock()
		notify()

		s.logger.Warnw("Camera unavailable", "capture_id", s.id, "tenant_id", s.tenantID, "error", err)
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stopTracks(stream)
		return fmt.Errorf("capture session %s was stopped while starting", s.id)
	}
	s.stream = stream
	notify := s.setStateLocked(domain.StateReady)
	s.mu.Unlock()
	notify()

	s.logger.Infow("Camera ready", "capture_id", s.id, "stream_id", stream.ID(),
		"width", stream.Dimensions().Width, "height", stream.Dimensions().Height)
	return nil
}

func (s *CaptureSession) open(ctx context.Context) (ports.MediaStream, error) {
	stream, err := s.camera.Open(ctx, s.cfg.Constraints)
	if err != nil {
		if errors.Is(err, domain.ErrCameraDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCameraDenied, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	if err := stream.WaitReady(readyCtx); err != nil {
		stopTracks(stream)
		return nil, fmt.Errorf("%w: %v", domain.ErrVideoNotReady, err)
	}
	return stream, nil
}

// Capture grabs the current frame, mirrored like the live view, as a PNG
// data URL. With release set the camera is stopped afterwards.
func (s *CaptureSession) Capture(ctx context.Context, release bool) (domain.CaptureSnapshot, error) {
	ctx, span := tracing.TraceCaptureTransition(ctx, "capture", string(s.id), string(s.tenantID))
	defer span.End()
	defer s.traceState(ctx)

	s.mu.Lock()
	if s.state != domain.StateReady || s.stream == nil {
		state := s.state
		s.mu.Unlock()
		return domain.CaptureSnapshot{}, fmt.Errorf("%w: capture in state %s", domain.ErrVideoNotReady, state)
	}
	stream := s.stream
	gen := s.gen
	notify := s.setStateLocked(domain.StateCapturing)
	s.mu.Unlock()
	notify()

	dataURL, err := s.grab(ctx, stream)
	if err != nil {
		s.mu.Lock()
		var back func()
		if s.gen == gen && s.state == domain.StateCapturing {
			back = s.setStateLocked(domain.StateReady)
		}
		s.mu.Unlock()
		if back != nil {
			back()
		}
		s.recordCapture("failed")
		s.logger.Warnw("Capture failed", "capture_id", s.id, "error", err)
		tracing.RecordError(ctx, err)
		return domain.CaptureSnapshot{}, err
	}

	s.mu.Lock()
	if s.gen != gen || s.state != domain.StateCapturing {
		s.mu.Unlock()
		return domain.CaptureSnapshot{}, fmt.Errorf("%w: session changed during capture", domain.ErrInvalidTransition)
	}
	s.captured = dataURL
	if release {
		s.stream = nil
	}
	notify = s.setStateLocked(domain.StateCaptured)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	notify()

	if release {
		stopTracks(stream)
	}
	s.recordCapture("ok")
	return snap, nil
}

func (s *CaptureSession) grab(ctx context.Context, stream ports.MediaStream) (string, error) {
	if stream.Dimensions().Empty() {
		return "", domain.ErrVideoNotReady
	}
	frame, err := stream.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read frame: %w", err)
	}
	mirrored, err := imaging.Mirror(frame)
	if err != nil {
		return "", domain.ErrVideoNotReady
	}
	return imaging.EncodePNGDataURL(mirrored)
}

// CapturedImage returns the PNG data URL of the last capture.
func (s *CaptureSession) CapturedImage() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateCaptured || s.captured == "" {
		return "", domain.ErrNothingCaptured
	}
	return s.captured, nil
}

// Retake drops the captured image, releases every track of the current
// stream and acquires a new stream with bounded backoff.
func (s *CaptureSession) Retake(ctx context.Context) error {
	ctx, span := tracing.TraceCaptureTransition(ctx, "retake", string(s.id), string(s.tenantID))
	defer span.End()
	defer s.traceState(ctx)

	s.mu.Lock()
	switch s.state {
	case domain.StateCaptured, domain.StateReady, domain.StateDenied:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: retake from %s", domain.ErrInvalidTransition, state)
	}
	s.gen++
	gen := s.gen
	old := s.stream
	s.stream = nil
	s.captured = ""
	notify := s.setStateLocked(domain.StateReleasing)
	s.mu.Unlock()
	notify()

	if old != nil {
		if err := s.release(ctx, old); err != nil {
			s.logger.Warnw("Tracks did not confirm release", "capture_id", s.id, "stream_id", old.ID(), "error", err)
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return fmt.Errorf("capture session %s was stopped during retake", s.id)
	}
	s.restarts++
	notify = s.setStateLocked(domain.StateStarting)
	s.mu.Unlock()
	notify()

	policy := s.cfg.Restart
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger.Infow("Camera restart failed, retrying", "capture_id", s.id,
			"attempt", attempt, "delay", delay, "error", err)
	}

	stream, err := retry.DoWithResult(ctx, policy, s.open)
	if err != nil {
		s.recordRestart("failed")
	} else {
		s.recordRestart("ok")
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		if stream != nil {
			stopTracks(stream)
		}
		return fmt.Errorf("capture session %s was stopped during retake", s.id)
	}
	if err != nil {
		notify = s.setStateLocked(domain.StateDenied)
		s.mu.Unlock()
		notify()
		s.logger.Warnw("Camera restart gave up", "capture_id", s.id, "error", err)
		tracing.RecordError(ctx, err)
		return err
	}
	s.stream = stream
	notify = s.setStateLocked(domain.StateReady)
	s.mu.Unlock()
	notify()
	return nil
}

// release stops every track and waits until each one reports done.
func (s *CaptureSession) release(ctx context.Context, stream ports.MediaStream) error {
	tracks := stream.Tracks()
	for _, t := range tracks {
		t.Stop()
	}

	timeout := time.NewTimer(s.cfg.ReleaseTimeout)
	defer timeout.Stop()
	for _, t := range tracks {
		select {
		case <-t.Done():
		case <-timeout.C:
			return fmt.Errorf("track %s still live after %s", t.ID(), s.cfg.ReleaseTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop releases the camera. The session may be started again.
func (s *CaptureSession) Stop() {
	s.mu.Lock()
	s.gen++
	stream := s.stream
	s.stream = nil
	s.captured = ""
	notify := s.setStateLocked(domain.StateStopped)
	s.mu.Unlock()
	notify()

	if stream != nil {
		stopTracks(stream)
	}
}

func (s *CaptureSession) recordCapture(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordCapture(string(s.tenantID), outcome)
	}
}

func (s *CaptureSession) recordRestart(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordCameraRestart(string(s.tenantID), outcome)
	}
}

func stopTracks(stream ports.MediaStream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
