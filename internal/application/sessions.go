package application

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"speaksmart/internal/conversation"
	"speaksmart/internal/domain"
)

// CaptureState tracks one audio submission: Idle -> Capturing ->
// Transcribing -> back to Idle once the transcript is updated or the
// submission fails.
type CaptureState int32

const (
	StateIdle CaptureState = iota
	StateCapturing
	StateTranscribing
)

func (s CaptureState) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateTranscribing:
		return "transcribing"
	default:
		return "idle"
	}
}

// MaxNotices bounds the notices kept per session; older ones are dropped.
const MaxNotices = 50

type entry struct {
	// op serialises every operation on the session; conversation.Session is
	// not safe for concurrent use.
	op      sync.Mutex
	session *conversation.Session
	notices []domain.Notice
	state   atomic.Int32
}

func (e *entry) addNotice(n domain.Notice) {
	if len(e.notices) >= MaxNotices {
		e.notices = append(e.notices[:0], e.notices[len(e.notices)-MaxNotices+1:]...)
	}
	e.notices = append(e.notices, n)
}

func (e *entry) setState(s CaptureState) {
	e.state.Store(int32(s))
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID      string
	Turns   []domain.Turn
	Notices []domain.Notice
	State   CaptureState
	Pending bool
}

// Sessions keys live conversations by session ID.
type Sessions struct {
	mu      sync.RWMutex
	entries map[string]*entry
	newID   func() string
}

func NewSessions() *Sessions {
	return &Sessions{
		entries: make(map[string]*entry),
		newID:   uuid.NewString,
	}
}

func (s *Sessions) Create() string {
	id := s.newID()
	s.CreateWithID(id)
	return id
}

// CreateWithID registers a session under a caller-chosen ID. An existing
// session with the same ID is kept.
func (s *Sessions) CreateWithID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return
	}
	s.entries[id] = &entry{session: conversation.NewSession(id)}
}

func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Sessions) get(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

func (s *Sessions) Snapshot(id string) (Snapshot, error) {
	e, err := s.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	e.op.Lock()
	defer e.op.Unlock()

	notices := make([]domain.Notice, len(e.notices))
	copy(notices, e.notices)

	return Snapshot{
		ID:      id,
		Turns:   e.session.Turns(),
		Notices: notices,
		State:   CaptureState(e.state.Load()),
		Pending: e.session.Pending(),
	}, nil
}

// State reads the capture state without waiting for an in-flight operation.
func (s *Sessions) State(id string) (CaptureState, error) {
	e, err := s.get(id)
	if err != nil {
		return StateIdle, err
	}
	return CaptureState(e.state.Load()), nil
}
