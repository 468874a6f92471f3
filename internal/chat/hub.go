package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"duochat/internal/attachment"
	"duochat/internal/changefeed"
	"duochat/internal/config"
	"duochat/internal/logger"
	"duochat/internal/model"
	"duochat/internal/preference"
	"duochat/internal/store"
)

// Hub owns one Session per viewer and the fixed participant set.
type Hub struct {
	store    store.RowStore
	feed     changefeed.Feed
	uploader *attachment.Uploader
	prefs    preference.Store

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	participants []model.Participant
	sessions     map[string]*Session
}

// HubConfig carries the Hub's collaborators. Feed, Uploader and Prefs may be nil.
type HubConfig struct {
	Store    store.RowStore
	Feed     changefeed.Feed
	Uploader *attachment.Uploader
	Prefs    preference.Store
}

// NewHub creates a Hub whose sessions live until ctx is cancelled or Close is called.
func NewHub(ctx context.Context, cfg HubConfig) *Hub {
	ctx, cancel := context.WithCancel(ctx)
	return &Hub{
		store:    cfg.Store,
		feed:     cfg.Feed,
		uploader: cfg.Uploader,
		prefs:    cfg.Prefs,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Close stops every session.
func (h *Hub) Close() {
	h.cancel()
}

// SeedParticipants inserts the configured participants if missing and loads the set.
func (h *Hub) SeedParticipants(ctx context.Context, seeds []config.ParticipantSeed) error {
	for _, seed := range seeds {
		if _, err := h.store.UpsertParticipant(ctx, model.Participant{Handle: seed.Handle, DisplayName: seed.DisplayName}); err != nil {
			return fmt.Errorf("seed participant %s: %w", seed.Handle, err)
		}
	}
	return h.LoadParticipants(ctx)
}

// LoadParticipants reads the participant set from the store.
func (h *Hub) LoadParticipants(ctx context.Context) error {
	list, err := h.store.ListParticipants(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Handle < list[j].Handle })

	h.mu.Lock()
	h.participants = list
	h.mu.Unlock()
	return nil
}

// Participants returns the participant set ordered by handle.
func (h *Hub) Participants() []model.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Participant, len(h.participants))
	copy(out, h.participants)
	return out
}

// Resolve finds a participant by handle or id.
func (h *Hub) Resolve(handleOrID string) (model.Participant, error) {
	for _, p := range h.Participants() {
		if p.Handle == handleOrID || p.ID == handleOrID {
			return p, nil
		}
	}
	return model.Participant{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, handleOrID)
}

// Other returns the participant who is not viewerID.
func (h *Hub) Other(viewerID string) (model.Participant, bool) {
	for _, p := range h.Participants() {
		if p.ID != viewerID {
			return p, true
		}
	}
	return model.Participant{}, false
}

// CurrentViewer returns the last chosen viewer, or the first participant by
// handle when no valid choice is stored.
func (h *Hub) CurrentViewer(ctx context.Context) (model.Participant, error) {
	participants := h.Participants()
	if len(participants) == 0 {
		return model.Participant{}, ErrUnknownParticipant
	}

	if h.prefs != nil {
		handle, found, err := h.prefs.Get(ctx, preference.KeyCurrentViewer)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("could not read viewer preference")
		} else if found {
			if p, err := h.Resolve(handle); err == nil {
				return p, nil
			}
		}
	}
	return participants[0], nil
}

// SwitchViewer makes handle the current viewer and persists the choice.
func (h *Hub) SwitchViewer(ctx context.Context, handle string) (model.Participant, error) {
	p, err := h.Resolve(handle)
	if err != nil {
		return model.Participant{}, err
	}
	if h.prefs != nil {
		if err := h.prefs.Set(ctx, preference.KeyCurrentViewer, p.Handle); err != nil {
			return model.Participant{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	h.Session(p).notify(model.NotificationSuccess, "Switched to "+p.DisplayName)
	return p, nil
}

// Session returns the viewer's session, starting it on first use.
func (h *Hub) Session(viewer model.Participant) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[viewer.ID]; ok {
		return s
	}
	s := NewSession(SessionConfig{
		Viewer:       viewer,
		Participants: h.participants,
		Store:        h.store,
		Feed:         h.feed,
		Uploader:     h.uploader,
	})
	h.sessions[viewer.ID] = s
	s.Start(h.ctx)
	return s
}
