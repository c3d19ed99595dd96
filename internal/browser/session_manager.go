// Package browser drives headless Chrome through go-rod.
// Each session lives in its own incognito context, so two sessions never share
// cookies or storage: they behave like two different users.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"superlists/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session describes the public metadata for a tracked browser context.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta      Session
	incognito *rod.Browser
	page      *rod.Page
	cancel    context.CancelFunc
}

type eventThrottler struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func newEventThrottler(ms int) *eventThrottler {
	if ms <= 0 {
		return nil
	}
	return &eventThrottler{
		interval: time.Duration(ms) * time.Millisecond,
		last:     make(map[string]time.Time),
	}
}

func (t *eventThrottler) Allow(key string) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[key]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
	}
	t.last[key] = now
	return true
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL       string        `json:"debugger_url"`
	Bin               string        `json:"bin"`
	Flags             []string      `json:"flags"`
	Headless          bool          `json:"headless"`
	ViewportWidth     int           `json:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height"`
	NavigationTimeout time.Duration `json:"navigation_timeout"`
	ConsoleThrottleMs int           `json:"console_throttle_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    800,
		NavigationTimeout: 3 * time.Second,
		ConsoleThrottleMs: 100,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

// GetNavigationTimeout bounds navigation and element lookups.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 3 * time.Second
	}
	return c.NavigationTimeout
}

// ErrUnknownSession is returned for session ids the manager does not track.
var ErrUnknownSession = errors.New("unknown session")

// SessionManager owns the Chrome instance and tracks active sessions.
type SessionManager struct {
	cfg        Config
	log        *zap.Logger
	mu         sync.RWMutex
	browser    *rod.Browser
	launcher   *launcher.Launcher
	sessions   map[string]*sessionRecord
	controlURL string // WebSocket URL for DevTools
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		log:      logging.Get(logging.CategoryBrowser),
		sessions: make(map[string]*sessionRecord),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if m.browser != nil {
		_, err := m.browser.Version()
		if err == nil {
			return nil
		}
		m.log.Warn("stale browser connection detected, reconnecting", zap.Error(err))
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.sessions = make(map[string]*sessionRecord)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		for _, rawFlag := range m.cfg.Flags {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		m.launcher = l
	}

	// The browser outlives the call that happened to start it.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.log.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes tracked sessions and the browser.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.sessions {
		rec.close()
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher.Cleanup()
		m.launcher = nil
	}
	m.controlURL = ""
	return err
}

// List returns metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// CreateSession opens a page in a fresh incognito context and navigates to url.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.log.Warn("failed to set viewport", zap.Error(err))
	}

	now := time.Now()
	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  now,
		LastActive: now,
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	rec := &sessionRecord{meta: meta, incognito: incognito, page: page, cancel: cancel}

	m.mu.Lock()
	m.sessions[meta.ID] = rec
	m.mu.Unlock()

	m.startEventStream(streamCtx, meta.ID, page)

	if url != "" {
		if err := m.Navigate(ctx, meta.ID, url); err != nil {
			_ = m.CloseSession(meta.ID)
			return nil, err
		}
	}
	return &meta, nil
}

// CloseSession closes the page and disposes its incognito context.
func (m *SessionManager) CloseSession(sessionID string) error {
	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	rec.close()
	return nil
}

func (r *sessionRecord) close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.page != nil {
		_ = r.page.Close()
	}
	if r.incognito != nil {
		_ = r.incognito.Close()
	}
}

// Page returns the underlying Rod page for a session.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return rec.page, true
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns session metadata.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// page returns the session page bound to ctx, limited by the navigation
// timeout. The caller must call the returned cancel.
func (m *SessionManager) page(ctx context.Context, sessionID string) (*rod.Page, context.CancelFunc, error) {
	page, ok := m.Page(sessionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.LastActive = time.Now()
		return s
	})
	tctx, cancel := context.WithTimeout(ctx, m.cfg.GetNavigationTimeout())
	return page.Context(tctx), cancel, nil
}

// Navigate loads url and waits for the load event.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return err
	}
	defer cancel()
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Type replaces the value of an input with text.
func (m *SessionManager) Type(ctx context.Context, sessionID, selector, text string) error {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return err
	}
	defer cancel()
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Submit types text into an input, presses Enter and waits for the resulting
// page load, the way a user submits a single-field form.
func (m *SessionManager) Submit(ctx context.Context, sessionID, selector, text string) error {
	if err := m.Type(ctx, sessionID, selector, text); err != nil {
		return err
	}

	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return err
	}
	defer cancel()
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("press enter in %s: %w", selector, err)
	}
	wait()
	return nil
}

// Text returns the rendered text of the first element matching selector.
func (m *SessionManager) Text(ctx context.Context, sessionID, selector string) (string, error) {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer cancel()
	el, err := page.Element(selector)
	if err != nil {
		return "", fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el.Text()
}

// Attribute returns an attribute of the first element matching selector.
// A missing attribute yields "".
func (m *SessionManager) Attribute(ctx context.Context, sessionID, selector, name string) (string, error) {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer cancel()
	el, err := page.Element(selector)
	if err != nil {
		return "", fmt.Errorf("element %s not found: %w", selector, err)
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// TextAll returns the rendered text of every element matching selector,
// waiting for the first one to appear.
func (m *SessionManager) TextAll(ctx context.Context, sessionID, selector string) ([]string, error) {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer cancel()
	if _, err := page.Element(selector); err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	els, err := page.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		txt, err := el.Text()
		if err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(txt))
	}
	return out, nil
}

// Info returns the current title and URL of the session page.
func (m *SessionManager) Info(ctx context.Context, sessionID string) (title, url string, err error) {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	defer cancel()
	info, err := page.Info()
	if err != nil {
		return "", "", fmt.Errorf("page info: %w", err)
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = info.URL
		return s
	})
	return info.Title, info.URL, nil
}

// Screenshot captures the session page as PNG.
func (m *SessionManager) Screenshot(ctx context.Context, sessionID string, fullPage bool) ([]byte, error) {
	page, cancel, err := m.page(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return page.Screenshot(fullPage, nil)
}

// startEventStream logs page console errors and uncaught exceptions until ctx ends.
func (m *SessionManager) startEventStream(ctx context.Context, sessionID string, page *rod.Page) {
	throttler := newEventThrottler(m.cfg.ConsoleThrottleMs)
	log := m.log.With(zap.String("session", sessionID))

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			if ev.Type != proto.RuntimeConsoleAPICalledTypeError && ev.Type != proto.RuntimeConsoleAPICalledTypeWarning {
				return
			}
			if !throttler.Allow("console") {
				return
			}
			log.Warn("console message",
				zap.String("type", string(ev.Type)),
				zap.String("text", stringifyConsoleArgs(ev.Args)))
		},
		func(ev *proto.RuntimeExceptionThrown) {
			if ev.ExceptionDetails == nil {
				return
			}
			log.Warn("uncaught exception", zap.String("text", ev.ExceptionDetails.Text))
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame == nil || ev.Frame.ParentID != "" {
				return
			}
			m.UpdateMetadata(sessionID, func(s Session) Session {
				s.URL = ev.Frame.URL
				s.LastActive = time.Now()
				return s
			})
			log.Debug("navigated", zap.String("url", ev.Frame.URL))
		},
	)
	go wait()
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
