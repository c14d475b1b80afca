package services

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"go2b/internal/models"
)

// Session is one in-flight questionnaire run. Items is a snapshot of the
// catalog taken at start, so a catalog reload cannot touch a running
// session. Answers grow strictly in item order.
type Session struct {
	Token   string
	Name    string
	Email   string
	Code    string
	Master  bool
	Items   []models.Item
	Answers []int
}

// RecordAnswer appends the answer for item index. Answers must arrive in
// strict sequence: index has to equal the number already recorded.
func (s *Session) RecordAnswer(index, value int) error {
	if index != len(s.Answers) {
		return NewInvalidError("answer out of sequence")
	}
	s.Answers = append(s.Answers, value)
	return nil
}

// Complete reports whether every item has been answered.
func (s *Session) Complete() bool {
	return len(s.Answers) == len(s.Items)
}

// SessionManager tracks in-flight sessions by token. Each session is owned
// by its single caller; the lock only guards the map itself.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: map[string]*Session{}}
}

// Start opens a session for a redeemed code and returns it with a fresh token.
func (m *SessionManager) Start(name, email, code string, master bool, items []models.Item) *Session {
	sess := &Session{
		Token:  strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:   strings.TrimSpace(name),
		Email:  strings.ToLower(strings.TrimSpace(email)),
		Code:   strings.ToUpper(strings.TrimSpace(code)),
		Master: master,
		Items:  items,
	}
	m.mu.Lock()
	m.sessions[sess.Token] = sess
	m.mu.Unlock()
	return sess
}

// Get resolves a session token.
func (m *SessionManager) Get(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return nil, NewUnauthorizedError("unknown session")
	}
	return sess, nil
}

// End discards a session, normally right after scoring.
func (m *SessionManager) End(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}
