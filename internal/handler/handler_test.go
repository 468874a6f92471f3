package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/attachment"
	"duochat/internal/changefeed"
	"duochat/internal/chat"
	"duochat/internal/config"
	"duochat/internal/model"
	"duochat/internal/preference"
	"duochat/internal/store"
)

const testOrigin = "http://localhost:3000"

type testEnv struct {
	h      *Handler
	router http.Handler
	store  *store.MemoryStore
	dir    string
}

// newTestHandler テスト用のHandlerを生成
func newTestHandler(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st := store.NewMemoryStore()
	objects, err := attachment.NewLocalStore(filepath.Join(dir, "attachments"), "/attachments")
	require.NoError(t, err)
	prefs, err := preference.NewFileStore(filepath.Join(dir, "prefs.json"))
	require.NoError(t, err)

	cfg := config.Config{
		AllowedOrigins:     []string{testOrigin},
		MaxAttachmentBytes: 1024,
	}
	feed := changefeed.NewLocalFeed()
	t.Cleanup(func() { feed.Close() })

	hub := chat.NewHub(ctx, chat.HubConfig{
		Store:    store.NewNotifying(st, feed),
		Feed:     feed,
		Uploader: attachment.NewUploader(objects, cfg.MaxAttachmentBytes),
		Prefs:    prefs,
	})
	t.Cleanup(hub.Close)
	require.NoError(t, hub.SeedParticipants(ctx, []config.ParticipantSeed{
		{Handle: "yass", DisplayName: "Yass"},
		{Handle: "other", DisplayName: "Other"},
	}))

	h := New(hub, cfg, objects.Dir())
	return testEnv{h: h, router: h.SetupRouter(), store: st, dir: dir}
}

func (e testEnv) do(t *testing.T, method, path, viewer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if viewer != "" {
		req.Header.Set(headerViewer, viewer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e testEnv) send(t *testing.T, viewer, content string) model.Message {
	t.Helper()
	w := e.do(t, "POST", "/messages", viewer, map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Message](t, w)
}

func TestHealthzAndPalette(t *testing.T) {
	e := newTestHandler(t)

	w := e.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "GET", "/reactions/palette", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ReactionPalette, decode[[]string](t, w))
}

func TestParticipantsAndViewerSwitch(t *testing.T) {
	e := newTestHandler(t)

	w := e.do(t, "GET", "/participants", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Participants []model.Participant `json:"participants"`
		Current      model.Participant   `json:"current"`
		Other        model.Participant   `json:"other"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Participants, 2)
	assert.Equal(t, "other", resp.Current.Handle)
	assert.Equal(t, "yass", resp.Other.Handle)

	w = e.do(t, "PUT", "/viewer", "", map[string]string{"handle": "yass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, "GET", "/viewer", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "yass", decode[model.Participant](t, w).Handle)

	w = e.do(t, "PUT", "/viewer", "", map[string]string{"handle": "mallory"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, "PUT", "/viewer", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMessage_Success(t *testing.T) {
	e := newTestHandler(t)

	msg := e.send(t, "yass", "Hello, World!")
	require.NotNil(t, msg.Content)
	assert.Equal(t, "Hello, World!", *msg.Content)
	assert.NotEmpty(t, msg.ID)

	w := e.do(t, "GET", "/messages", "other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[[]model.MessageView](t, w)
	require.Len(t, view, 1)
	assert.Equal(t, msg.ID, view[0].ID)
	require.NotNil(t, view[0].Sender)
	assert.Equal(t, "yass", view[0].Sender.Handle)
}

func TestCreateMessage_Validation(t *testing.T) {
	e := newTestHandler(t)

	w := e.do(t, "POST", "/messages", "yass", map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = e.do(t, "POST", "/messages", "yass", map[string]string{"content": "re", "reply_to_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, "POST", "/messages", "mallory", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest("POST", "/messages", strings.NewReader("{not json"))
	req.Header.Set(headerViewer, "yass")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(headerViewer, "yass")
	return req
}

func TestCreateMessage_WithAttachment(t *testing.T) {
	e := newTestHandler(t)

	req := multipartRequest(t, map[string]string{"content": "see attached"}, "notes.txt", []byte("hello file"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	msg := decode[model.Message](t, w)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "notes.txt", msg.Attachment.Name)
	assert.Equal(t, int64(len("hello file")), msg.Attachment.Size)
	assert.True(t, strings.HasPrefix(msg.Attachment.URL, "/attachments/"), msg.Attachment.URL)

	// The stored object is served back.
	get := httptest.NewRequest("GET", msg.Attachment.URL, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello file", rec.Body.String())
}

func TestCreateMessage_AttachmentTooLarge(t *testing.T) {
	e := newTestHandler(t)

	req := multipartRequest(t, nil, "big.bin", bytes.Repeat([]byte("x"), 2048))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	msgs, err := e.store.ListMessages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestImportantFlow(t *testing.T) {
	e := newTestHandler(t)
	msg := e.send(t, "yass", "keep me")

	w := e.do(t, "PUT", "/messages/"+msg.ID+"/important", "yass", map[string]bool{"value": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, "GET", "/messages/important", "yass", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.MessageView](t, w), 1)

	w = e.do(t, "GET", "/messages/important", "other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.MessageView](t, w))

	w = e.do(t, "POST", "/messages/"+msg.ID+"/important/toggle", "yass", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_important"])

	w = e.do(t, "PUT", "/messages/"+msg.ID+"/important", "yass", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "PUT", "/messages/missing/important", "yass", map[string]bool{"value": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteMessage_OnlyForViewer(t *testing.T) {
	e := newTestHandler(t)
	msg := e.send(t, "yass", "oops")

	w := e.do(t, "DELETE", "/messages/"+msg.ID, "yass", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, "GET", "/messages", "yass", nil)
	assert.Empty(t, decode[[]model.MessageView](t, w))

	w = e.do(t, "GET", "/messages", "other", nil)
	assert.Len(t, decode[[]model.MessageView](t, w), 1)

	w = e.do(t, "DELETE", "/messages/missing", "yass", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggleReaction(t *testing.T) {
	e := newTestHandler(t)
	msg := e.send(t, "yass", "react to me")

	w := e.do(t, "POST", "/messages/"+msg.ID+"/reactions", "other", map[string]string{"emoji": "😂"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["reacted"])

	w = e.do(t, "GET", "/messages", "yass", nil)
	view := decode[[]model.MessageView](t, w)
	require.Len(t, view, 1)
	assert.Equal(t, []model.ReactionGroup{{Emoji: "😂", Count: 1, UserIDs: []string{view[0].Reactions[0].UserID}}}, view[0].ReactionGroups)

	w = e.do(t, "POST", "/messages/"+msg.ID+"/reactions", "other", map[string]string{"emoji": "😂"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["reacted"])

	w = e.do(t, "POST", "/messages/"+msg.ID+"/reactions", "other", map[string]string{"emoji": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearConversation(t *testing.T) {
	e := newTestHandler(t)
	var ids []string
	for _, c := range []string{"one", "two", "three"} {
		ids = append(ids, e.send(t, "yass", c).ID)
	}
	w := e.do(t, "PUT", "/messages/"+ids[1]+"/important", "yass", map[string]bool{"value": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, "POST", "/conversation/clear", "yass", map[string]bool{"keep_important": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[chat.ClearResult](t, w)
	assert.Equal(t, 2, res.Cleared)
	assert.Equal(t, 1, res.Kept)

	w = e.do(t, "GET", "/messages", "yass", nil)
	view := decode[[]model.MessageView](t, w)
	require.Len(t, view, 1)
	assert.Equal(t, ids[1], view[0].ID)

	w = e.do(t, "GET", "/messages", "other", nil)
	assert.Len(t, decode[[]model.MessageView](t, w), 3)
}

func TestGetMessages_ReadFailure(t *testing.T) {
	e := newTestHandler(t)
	e.store.FailOn("ListMessages", assert.AnError)

	w := e.do(t, "GET", "/messages", "yass", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load messages")
}

func TestWebSocket_StreamsViews(t *testing.T) {
	e := newTestHandler(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?viewer=other"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {testOrigin}})
	require.NoError(t, err)
	defer conn.Close()

	sent := e.send(t, "yass", "live")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env model.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type != model.EnvelopeView {
			continue
		}
		assert.Equal(t, "other", handleOf(t, e, env.ViewerID))
		if len(env.Messages) == 1 {
			assert.Equal(t, sent.ID, env.Messages[0].ID)
			return
		}
	}
}

func handleOf(t *testing.T, e testEnv, id string) string {
	t.Helper()
	p, err := e.h.Hub.Resolve(id)
	require.NoError(t, err)
	return p.Handle
}
