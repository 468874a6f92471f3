package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"duochat/internal/model"
)

type stateKey struct{ messageID, userID string }

type reactionKey struct{ messageID, userID, emoji string }

// MemoryStore is an in-process RowStore enforcing the same unique keys as the SQL schema.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[string]model.Participant
	messages     map[string]model.Message
	states       map[stateKey]model.MessageState
	reactions    map[reactionKey]model.Reaction

	// failures makes the named operation return an error; used by tests.
	failures map[string]error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participants: make(map[string]model.Participant),
		messages:     make(map[string]model.Message),
		states:       make(map[stateKey]model.MessageState),
		reactions:    make(map[reactionKey]model.Reaction),
		failures:     make(map[string]error),
	}
}

// FailOn makes every call to op return err until cleared with a nil err.
func (s *MemoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemoryStore) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *MemoryStore) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListParticipants"); err != nil {
		return nil, err
	}

	out := make([]model.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (s *MemoryStore) UpsertParticipant(ctx context.Context, p model.Participant) (model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpsertParticipant"); err != nil {
		return model.Participant{}, err
	}

	for _, existing := range s.participants {
		if existing.Handle == p.Handle {
			return existing, nil
		}
	}
	stamp(&p.ID, &p.CreatedAt)
	s.participants[p.ID] = p
	return p, nil
}

func (s *MemoryStore) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertMessage"); err != nil {
		return model.Message{}, err
	}

	stamp(&m.ID, &m.CreatedAt)
	if _, ok := s.messages[m.ID]; ok {
		return model.Message{}, fmt.Errorf("insert %s: %w", TableMessages, ErrDuplicate)
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (model.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("GetMessage"); err != nil {
		return model.Message{}, false, err
	}
	m, ok := s.messages[id]
	return m, ok, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListMessages"); err != nil {
		return nil, err
	}

	out := make([]model.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *MemoryStore) ListStates(ctx context.Context, userID string) ([]model.MessageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListStates"); err != nil {
		return nil, err
	}

	var out []model.MessageState
	for k, st := range s.states {
		if k.userID == userID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (s *MemoryStore) GetState(ctx context.Context, messageID, userID string) (model.MessageState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("GetState"); err != nil {
		return model.MessageState{}, false, err
	}
	st, ok := s.states[stateKey{messageID, userID}]
	return st, ok, nil
}

func (s *MemoryStore) InsertState(ctx context.Context, st model.MessageState) (model.MessageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertState"); err != nil {
		return model.MessageState{}, err
	}

	key := stateKey{st.MessageID, st.UserID}
	if _, ok := s.states[key]; ok {
		return model.MessageState{}, fmt.Errorf("insert %s: %w", TableMessageStates, ErrDuplicate)
	}
	stamp(&st.ID, &st.CreatedAt)
	s.states[key] = st
	return st, nil
}

func (s *MemoryStore) UpdateState(ctx context.Context, st model.MessageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateState"); err != nil {
		return err
	}

	key := stateKey{st.MessageID, st.UserID}
	existing, ok := s.states[key]
	if !ok {
		return fmt.Errorf("update state: %w", ErrNotFound)
	}
	existing.IsImportant = st.IsImportant
	existing.IsDeleted = st.IsDeleted
	s.states[key] = existing
	return nil
}

func (s *MemoryStore) ListReactions(ctx context.Context) ([]model.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("ListReactions"); err != nil {
		return nil, err
	}

	out := make([]model.Reaction, 0, len(s.reactions))
	for _, r := range s.reactions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) FindReaction(ctx context.Context, messageID, userID, emoji string) (model.Reaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("FindReaction"); err != nil {
		return model.Reaction{}, false, err
	}
	r, ok := s.reactions[reactionKey{messageID, userID, emoji}]
	return r, ok, nil
}

func (s *MemoryStore) InsertReaction(ctx context.Context, r model.Reaction) (model.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertReaction"); err != nil {
		return model.Reaction{}, err
	}

	key := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, ok := s.reactions[key]; ok {
		return model.Reaction{}, fmt.Errorf("insert %s: %w", TableReactions, ErrDuplicate)
	}
	stamp(&r.ID, &r.CreatedAt)
	s.reactions[key] = r
	return r, nil
}

func (s *MemoryStore) DeleteReaction(ctx context.Context, messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteReaction"); err != nil {
		return err
	}
	delete(s.reactions, reactionKey{messageID, userID, emoji})
	return nil
}
