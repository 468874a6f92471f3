package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"duochat/internal/attachment"
	"duochat/internal/changefeed"
	"duochat/internal/logger"
	"duochat/internal/model"
	"duochat/internal/store"
)

const listenerBuffer = 8

// watchedTables are the streams whose changes invalidate a view.
var watchedTables = []string{store.TableMessages, store.TableReactions, store.TableMessageStates}

// Session is one viewer's live chat state. Derivations run one at a time;
// triggers that arrive while one is running collapse into a single follow-up run.
type Session struct {
	viewer       model.Participant
	participants []model.Participant
	store        store.RowStore
	feed         changefeed.Feed
	uploader     *attachment.Uploader

	trigger  chan struct{}
	deriveMu sync.Mutex

	mu     sync.RWMutex
	view   []model.MessageView
	loaded bool

	listenersMu sync.Mutex
	listeners   map[chan model.Envelope]struct{}
}

// SessionConfig carries a Session's collaborators. Feed and Uploader may be nil.
type SessionConfig struct {
	Viewer       model.Participant
	Participants []model.Participant
	Store        store.RowStore
	Feed         changefeed.Feed
	Uploader     *attachment.Uploader
}

// NewSession builds a Session; call Start to begin deriving.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		viewer:       cfg.Viewer,
		participants: cfg.Participants,
		store:        cfg.Store,
		feed:         cfg.Feed,
		uploader:     cfg.Uploader,
		trigger:      make(chan struct{}, 1),
		listeners:    make(map[chan model.Envelope]struct{}),
	}
}

// Viewer is the participant this session derives for.
func (s *Session) Viewer() model.Participant {
	return s.viewer
}

// Start runs the derivation loop and, when a feed is configured, the change
// feed subscriber. Both stop when ctx is cancelled.
func (s *Session) Start(ctx context.Context) {
	ctx = logger.WithLogger(ctx, logger.L().With().Str(logger.FieldViewer, s.viewer.ID).Logger())

	go s.loop(ctx)
	if s.feed != nil {
		sub := changefeed.NewSubscriber(s.feed, func(string) { s.Invalidate() }, watchedTables...)
		go sub.Run(ctx)
	}
	s.Invalidate()
}

func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			// Errors are already surfaced as notifications.
			_ = s.Refresh(ctx)
		}
	}
}

// Invalidate schedules a re-derivation without blocking.
func (s *Session) Invalidate() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Refresh re-reads all sources and re-derives the view synchronously.
// On failure the previous view is kept.
func (s *Session) Refresh(ctx context.Context) error {
	s.deriveMu.Lock()
	defer s.deriveMu.Unlock()

	var (
		messages  []model.Message
		reactions []model.Reaction
		states    []model.MessageState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		messages, err = s.store.ListMessages(gctx)
		return err
	})
	g.Go(func() (err error) {
		reactions, err = s.store.ListReactions(gctx)
		return err
	})
	g.Go(func() (err error) {
		states, err = s.store.ListStates(gctx, s.viewer.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("derivation sources unavailable, keeping previous view")
		s.notify(model.NotificationError, "Failed to load messages")
		return fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	view := DeriveView(messages, reactions, states, s.participants, s.viewer.ID)

	s.mu.Lock()
	s.view = view
	s.loaded = true
	s.mu.Unlock()

	s.broadcast(model.Envelope{Type: model.EnvelopeView, ViewerID: s.viewer.ID, Messages: view})
	return nil
}

// View returns the last derived view and whether any derivation has succeeded.
func (s *Session) View() ([]model.MessageView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.loaded
}

// CurrentView re-derives synchronously so the result reflects every write
// that completed before the call.
func (s *Session) CurrentView(ctx context.Context) ([]model.MessageView, error) {
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	view, _ := s.View()
	return view, nil
}

// Listen subscribes to view and notification envelopes. The returned
// function unsubscribes and closes the channel.
func (s *Session) Listen() (<-chan model.Envelope, func()) {
	ch := make(chan model.Envelope, listenerBuffer)
	s.listenersMu.Lock()
	s.listeners[ch] = struct{}{}
	s.listenersMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, ch)
			s.listenersMu.Unlock()
			close(ch)
		})
	}
}

// broadcast never blocks: a full listener loses its oldest envelope.
func (s *Session) broadcast(env model.Envelope) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for ch := range s.listeners {
		select {
		case ch <- env:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- env:
		default:
		}
	}
}

func (s *Session) notify(kind model.NotificationKind, msg string) {
	s.broadcast(model.Envelope{
		Type:         model.EnvelopeNotification,
		ViewerID:     s.viewer.ID,
		Notification: &model.Notification{Kind: kind, Message: msg, At: time.Now()},
	})
}
