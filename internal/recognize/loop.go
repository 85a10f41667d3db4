package recognize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Loop tuning defaults, mirrored in config.
const (
	// DefaultRequiredMatches is how many consecutive identical matches a
	// live stream must produce before a check-in is committed. A single
	// noisy frame match must never trigger a side effect; two consecutive
	// identical false matches are far less likely than one.
	DefaultRequiredMatches = 2

	// DefaultScanInterval is the capture cadence. Must stay above typical
	// model inference time so ticks never overlap.
	DefaultScanInterval = 800 * time.Millisecond

	// DefaultSuccessHold is how long the success screen stays up before
	// the loop returns to idle.
	DefaultSuccessHold = 4 * time.Second

	// DefaultErrorHold is how long a recoverable error banner stays up.
	DefaultErrorHold = 3 * time.Second

	// DefaultSuffixLength is the number of phone digits collected in
	// manual entry mode before lookup fires.
	DefaultSuffixLength = 4
)

// State is the kiosk session state.
type State string

// Session states. Selecting is reached only from the manual path when
// several members share a phone suffix; Manual suspends the camera loop.
const (
	StateIdle      State = "idle"
	StateDetecting State = "detecting"
	StateSuccess   State = "success"
	StateError     State = "error"
	StateSelecting State = "selecting"
)

// CheckInResult is what the ledger reports after a committed check-in.
type CheckInResult struct {
	MemberID        string `json:"member_id"`
	MemberName      string `json:"member_name"`
	RemainingCredit int    `json:"remaining_credit"`
}

// CheckInFunc commits the check-in side effect for a matched identity.
// Its error message is shown verbatim on the kiosk error screen.
type CheckInFunc func(ctx context.Context, memberID string) (CheckInResult, error)

// GallerySource provides fresh identity snapshots for each lookup, so new
// enrollments and suspensions take effect on the next cycle without
// explicit invalidation. Implementations must already filter to active
// members.
type GallerySource interface {
	// Gallery returns active members with an enrolled embedding.
	Gallery(ctx context.Context) ([]GalleryEntry, error)
	// PhoneBook returns active members for phone-suffix lookup.
	PhoneBook(ctx context.Context) ([]PhoneEntry, error)
}

// FrameSource produces camera frames for the live loop. Grab returns
// ErrFrameNotReady while the camera warms up; any other error is fatal to
// the scanning session.
type FrameSource interface {
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionConfig tunes one kiosk scanning session. Zero values select the
// defaults above.
type SessionConfig struct {
	RequiredMatches int
	ScanInterval    time.Duration
	SuccessHold     time.Duration
	ErrorHold       time.Duration
	SuffixLength    int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.RequiredMatches <= 0 {
		c.RequiredMatches = DefaultRequiredMatches
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultScanInterval
	}
	if c.SuccessHold <= 0 {
		c.SuccessHold = DefaultSuccessHold
	}
	if c.ErrorHold <= 0 {
		c.ErrorHold = DefaultErrorHold
	}
	if c.SuffixLength <= 0 {
		c.SuffixLength = DefaultSuffixLength
	}
	return c
}

// Status is a point-in-time view of a session for UI rendering.
type Status struct {
	State      State          `json:"state"`
	Manual     bool           `json:"manual"`
	Digits     string         `json:"digits,omitempty"`
	Message    string         `json:"message,omitempty"`
	CheckIn    *CheckInResult `json:"check_in,omitempty"`
	Candidates []PhoneEntry   `json:"candidates,omitempty"`
}

// Session drives periodic capture, extraction, matching, and the debounced
// state machine for one kiosk. All state is session-local; nothing is
// shared across kiosks.
type Session struct {
	cfg       SessionConfig
	extractor Extractor
	matcher   *Matcher
	source    GallerySource
	checkIn   CheckInFunc
	now       func() time.Time

	mu         sync.Mutex
	state      State
	manual     bool
	digits     string
	message    string
	result     *CheckInResult
	candidates []PhoneEntry
	holdUntil  time.Time
	inFlight   bool

	// Debounce state: reset on any no-face or no-match frame, on commit,
	// and on every mode switch.
	lastMemberID string
	consecutive  int

	listeners []chan Status
}

// NewSession creates a kiosk session. The extractor, matcher, gallery
// source, and check-in side effect are injected so tests can run the
// whole state machine without a camera, a model server, or a clock.
func NewSession(cfg SessionConfig, extractor Extractor, matcher *Matcher, source GallerySource, checkIn CheckInFunc) *Session {
	return &Session{
		cfg:       cfg.withDefaults(),
		extractor: extractor,
		matcher:   matcher,
		source:    source,
		checkIn:   checkIn,
		now:       time.Now,
		state:     StateIdle,
	}
}

// Status returns the current session view.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireHoldLocked()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	return Status{
		State:      s.state,
		Manual:     s.manual,
		Digits:     s.digits,
		Message:    s.message,
		CheckIn:    s.result,
		Candidates: s.candidates,
	}
}

// AddListener registers a status listener. Each state change is delivered
// once; slow listeners drop updates instead of blocking the loop.
func (s *Session) AddListener() chan Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Status, 16)
	s.listeners = append(s.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (s *Session) RemoveListener(ch chan Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, listener := range s.listeners {
		if listener == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *Session) notifyLocked() {
	status := s.statusLocked()
	for _, listener := range s.listeners {
		select {
		case listener <- status:
		default:
		}
	}
}

// expireHoldLocked returns the session to idle once a timed success or
// error display has run its course.
func (s *Session) expireHoldLocked() {
	if (s.state == StateSuccess || s.state == StateError) && !s.holdUntil.IsZero() && !s.now().Before(s.holdUntil) {
		s.resetToIdleLocked()
		s.notifyLocked()
	}
}

func (s *Session) resetToIdleLocked() {
	s.state = StateIdle
	s.message = ""
	s.result = nil
	s.candidates = nil
	s.digits = ""
	s.holdUntil = time.Time{}
	s.resetDebounceLocked()
}

func (s *Session) resetDebounceLocked() {
	s.lastMemberID = ""
	s.consecutive = 0
}

// Run drives the session from a frame source until the context is
// cancelled or the source fails. The source is closed on every exit path.
// Ticks while a previous extraction is still in flight are skipped, never
// queued, so inference calls cannot pile up.
func (s *Session) Run(ctx context.Context, frames FrameSource) error {
	defer frames.Close()

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx, frames); err != nil {
				return err
			}
		}
	}
}

// tick runs one capture cycle. Only a camera failure is returned; every
// recognition-level problem degrades to idle.
func (s *Session) tick(ctx context.Context, frames FrameSource) error {
	s.mu.Lock()
	s.expireHoldLocked()
	ready := s.state == StateIdle && !s.manual && !s.inFlight
	s.mu.Unlock()
	if !ready {
		return nil
	}

	frame, err := frames.Grab(ctx)
	if err != nil {
		if errors.Is(err, ErrFrameNotReady) {
			s.mu.Lock()
			s.resetDebounceLocked()
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("camera frame grab failed: %w", err)
	}

	s.ProcessFrame(ctx, frame)
	return nil
}

// ProcessFrame feeds one frame through extract → match → debounce. It is
// a no-op unless the session is idle in camera mode; reentrant calls are
// rejected, so at most one extraction is in flight per session.
func (s *Session) ProcessFrame(ctx context.Context, frame []byte) {
	s.mu.Lock()
	s.expireHoldLocked()
	if s.state != StateIdle || s.manual || s.inFlight {
		s.mu.Unlock()
		return
	}
	s.state = StateDetecting
	s.inFlight = true
	s.notifyLocked()
	s.mu.Unlock()

	memberID, matched := s.detect(ctx, frame)

	s.mu.Lock()
	s.inFlight = false
	if s.manual {
		// Mode switched while detecting. Discard the frame result.
		s.mu.Unlock()
		return
	}
	if !matched {
		s.resetDebounceLocked()
		s.state = StateIdle
		s.notifyLocked()
		s.mu.Unlock()
		return
	}

	if memberID == s.lastMemberID {
		s.consecutive++
	} else {
		s.lastMemberID = memberID
		s.consecutive = 1
	}
	confirmed := s.consecutive >= s.cfg.RequiredMatches
	if !confirmed {
		// Await the next frame's confirmation.
		s.state = StateIdle
		s.notifyLocked()
		s.mu.Unlock()
		return
	}
	s.resetDebounceLocked()
	s.mu.Unlock()

	s.commit(ctx, memberID)
}

// detect runs extraction and matching for one frame. All failures are
// expected, silent outcomes of a live loop: no face, no gallery match, a
// model hiccup. They reset the debounce, nothing more.
func (s *Session) detect(ctx context.Context, frame []byte) (string, bool) {
	embedding, err := s.extractor.Extract(ctx, frame)
	if err != nil {
		if !errors.Is(err, ErrNoFace) {
			log.Printf("kiosk: extraction failed, skipping frame: %v", err)
		}
		return "", false
	}

	gallery, err := s.source.Gallery(ctx)
	if err != nil {
		log.Printf("kiosk: gallery snapshot failed, skipping frame: %v", err)
		return "", false
	}

	match, ok := s.matcher.Match(embedding, gallery)
	if !ok {
		return "", false
	}
	return match.MemberID, true
}

// commit invokes the check-in side effect and transitions to the timed
// success or error display.
func (s *Session) commit(ctx context.Context, memberID string) {
	result, err := s.checkIn(ctx, memberID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDebounceLocked()
	s.digits = ""
	s.candidates = nil
	if err != nil {
		s.state = StateError
		s.message = err.Error()
		s.result = nil
		s.holdUntil = s.now().Add(s.cfg.ErrorHold)
	} else {
		s.state = StateSuccess
		s.message = fmt.Sprintf("Welcome back, %s!", result.MemberName)
		s.result = &result
		s.holdUntil = s.now().Add(s.cfg.SuccessHold)
	}
	s.notifyLocked()
}

// SetManualMode toggles manual phone entry. Entering it suspends the
// camera-driven loop entirely; leaving it clears collected digits and the
// debounce state so the next scan starts fresh.
func (s *Session) SetManualMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual == enabled {
		return
	}
	s.resetToIdleLocked()
	s.manual = enabled
	s.notifyLocked()
}

// PressDigit appends one digit in manual mode. Reaching the configured
// suffix length triggers the phone lookup: zero matches show a timed
// error, one match commits directly, several enter the selecting state.
func (s *Session) PressDigit(ctx context.Context, digit string) error {
	s.mu.Lock()
	s.expireHoldLocked()
	if !s.manual || s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("not accepting digits in state %q", s.state)
	}
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		s.mu.Unlock()
		return fmt.Errorf("invalid digit %q", digit)
	}
	s.digits += digit
	complete := len(s.digits) >= s.cfg.SuffixLength
	digits := s.digits
	s.notifyLocked()
	s.mu.Unlock()

	if !complete {
		return nil
	}
	return s.lookupSuffix(ctx, digits)
}

func (s *Session) lookupSuffix(ctx context.Context, digits string) error {
	members, err := s.source.PhoneBook(ctx)
	if err != nil {
		return fmt.Errorf("phone lookup failed: %w", err)
	}
	matches := MatchByPhoneSuffix(digits, members)

	switch len(matches) {
	case 0:
		s.mu.Lock()
		s.state = StateError
		s.message = "no matching member"
		s.digits = ""
		s.holdUntil = s.now().Add(s.cfg.ErrorHold)
		s.notifyLocked()
		s.mu.Unlock()
		return nil
	case 1:
		s.commit(ctx, matches[0].MemberID)
		return nil
	default:
		s.mu.Lock()
		s.state = StateSelecting
		s.candidates = matches
		s.notifyLocked()
		s.mu.Unlock()
		return nil
	}
}

// Select resolves a multi-candidate suffix match by explicit choice.
func (s *Session) Select(ctx context.Context, memberID string) error {
	s.mu.Lock()
	if s.state != StateSelecting {
		s.mu.Unlock()
		return fmt.Errorf("no selection pending in state %q", s.state)
	}
	found := false
	for _, c := range s.candidates {
		if c.MemberID == memberID {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("member %s is not among the candidates", memberID)
	}
	s.candidates = nil
	s.mu.Unlock()

	s.commit(ctx, memberID)
	return nil
}

// Reset returns the session to camera-mode idle and clears all transient
// state, including the debounce counter and any pending selection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = false
	s.resetToIdleLocked()
	s.notifyLocked()
}
