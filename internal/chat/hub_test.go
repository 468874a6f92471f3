package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/config"
	"duochat/internal/preference"
	"duochat/internal/store"
)

func newHub(t *testing.T, prefs preference.Store) *Hub {
	t.Helper()
	h := NewHub(context.Background(), HubConfig{Store: store.NewMemoryStore(), Prefs: prefs})
	t.Cleanup(h.Close)
	require.NoError(t, h.SeedParticipants(context.Background(), []config.ParticipantSeed{
		{Handle: "yass", DisplayName: "Yass"},
		{Handle: "other", DisplayName: "Other"},
	}))
	return h
}

func TestHub_SeedIsIdempotent(t *testing.T) {
	h := newHub(t, nil)
	first := h.Participants()

	require.NoError(t, h.SeedParticipants(context.Background(), []config.ParticipantSeed{{Handle: "yass", DisplayName: "Renamed"}}))
	assert.Equal(t, first, h.Participants())
	require.Len(t, first, 2)
	assert.Equal(t, "other", first[0].Handle)
	assert.Equal(t, "yass", first[1].Handle)
}

func TestHub_ResolveAndOther(t *testing.T) {
	h := newHub(t, nil)

	y, err := h.Resolve("yass")
	require.NoError(t, err)
	byID, err := h.Resolve(y.ID)
	require.NoError(t, err)
	assert.Equal(t, y, byID)

	o, ok := h.Other(y.ID)
	require.True(t, ok)
	assert.Equal(t, "other", o.Handle)

	_, err = h.Resolve("mallory")
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestHub_CurrentViewerPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	prefs, err := preference.NewFileStore(path)
	require.NoError(t, err)
	h := newHub(t, prefs)
	ctx := context.Background()

	def, err := h.CurrentViewer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other", def.Handle)

	_, err = h.SwitchViewer(ctx, "yass")
	require.NoError(t, err)

	reopened, err := preference.NewFileStore(path)
	require.NoError(t, err)
	handle, found, err := reopened.Get(ctx, preference.KeyCurrentViewer)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "yass", handle)

	cur, err := h.CurrentViewer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "yass", cur.Handle)

	_, err = h.SwitchViewer(ctx, "mallory")
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestHub_StalePreferenceFallsBack(t *testing.T) {
	prefs, err := preference.NewFileStore(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	require.NoError(t, prefs.Set(context.Background(), preference.KeyCurrentViewer, "gone"))

	h := newHub(t, prefs)
	cur, err := h.CurrentViewer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other", cur.Handle)
}

func TestHub_SessionPerViewer(t *testing.T) {
	h := newHub(t, nil)
	y, err := h.Resolve("yass")
	require.NoError(t, err)
	o, err := h.Resolve("other")
	require.NoError(t, err)

	assert.Same(t, h.Session(y), h.Session(y))
	assert.NotSame(t, h.Session(y), h.Session(o))
	assert.Equal(t, y.ID, h.Session(y).Viewer().ID)
}
