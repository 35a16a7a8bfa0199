package browse

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/glasspane/glasspane/internal/dom"
	"github.com/glasspane/glasspane/internal/enforcer"
)

// Session holds the state of one browsing context: cookies, history, and the
// live document of the current page.
type Session struct {
	id        string
	userAgent string

	mu       sync.RWMutex
	cookies  map[string][]*http.Cookie // key: host
	history  []string
	referer  string
	doc      *dom.Document
	enforcer *enforcer.Enforcer
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserAgent returns the User-Agent presented upstream for this session.
func (s *Session) UserAgent() string { return s.userAgent }

// Referer returns the last navigated URL.
func (s *Session) Referer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referer
}

// History returns a copy of the navigation history.
func (s *Session) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Document returns the live document of the current page, or nil before the
// first navigation.
func (s *Session) Document() *dom.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Enforcer returns the enforcer attached to the current page, or nil.
func (s *Session) Enforcer() *enforcer.Enforcer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enforcer
}

// setPage swaps in the document and enforcer for a freshly navigated page
// and records it in the history.
func (s *Session) setPage(urlStr string, doc *dom.Document, enf *enforcer.Enforcer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.enforcer = enf
	s.history = append(s.history, urlStr)
	s.referer = urlStr
}

// cookieHeader builds the Cookie header value for a target URL.
func (s *Session) cookieHeader(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	header := ""
	for _, c := range s.cookies[parsed.Host] {
		if header != "" {
			header += "; "
		}
		header += c.Name + "=" + c.Value
	}
	return header
}

// storeCookies merges response cookies into the session jar, last write wins
// per name.
func (s *Session) storeCookies(urlStr string, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.cookies[parsed.Host]
	for _, c := range cookies {
		replaced := false
		for i, old := range existing {
			if old.Name == c.Name {
				existing[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
	}
	s.cookies[parsed.Host] = existing
}

// Info is the JSON view of a session.
type Info struct {
	ID        string   `json:"id"`
	UserAgent string   `json:"user_agent"`
	Referer   string   `json:"referer,omitempty"`
	History   []string `json:"history"`
	HasPage   bool     `json:"has_page"`
}

// Info returns a snapshot of the session state.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]string, len(s.history))
	copy(history, s.history)
	return Info{
		ID:        s.id,
		UserAgent: s.userAgent,
		Referer:   s.referer,
		History:   history,
		HasPage:   s.doc != nil,
	}
}

// Manager tracks browsing sessions by id.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	userAgent string
}

// NewManager creates a session manager. userAgent is presented upstream for
// every session it creates.
func NewManager(userAgent string) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		userAgent: userAgent,
	}
}

// GetOrCreate returns the session with the given id, creating it if needed.
// An empty id allocates a fresh session.
func (m *Manager) GetOrCreate(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = &Session{
			id:        id,
			userAgent: m.userAgent,
			cookies:   make(map[string][]*http.Cookie),
		}
		m.sessions[id] = s
	}
	return s
}

// Get returns an existing session or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
