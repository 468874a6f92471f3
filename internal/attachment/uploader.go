package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"duochat/internal/model"
)

// ErrTooLarge is returned for files over the configured limit.
var ErrTooLarge = errors.New("attachment too large")

// File is an attachment as received from a client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader validates files and writes them to an ObjectStore.
type Uploader struct {
	store    ObjectStore
	maxBytes int64
	now      func() time.Time
}

// NewUploader returns an Uploader enforcing maxBytes.
func NewUploader(store ObjectStore, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes, now: time.Now}
}

// MaxBytes is the per-file limit.
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload stores f and describes the stored object.
func (u *Uploader) Upload(ctx context.Context, f File) (model.Attachment, error) {
	if f.Size > u.maxBytes {
		return model.Attachment{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, f.Size, u.maxBytes)
	}

	now := u.now()
	name := f.Name
	if name == "" {
		name = "voice-" + strconv.FormatInt(now.UnixMilli(), 10) + ".webm"
		if f.ContentType == "" {
			f.ContentType = "audio/webm"
		}
	}

	body := f.Body
	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType, body = detectType(name, body)
	}

	url, err := u.store.Put(ctx, ObjectName(name, now), body, f.Size, contentType)
	if err != nil {
		return model.Attachment{}, err
	}

	return model.Attachment{URL: url, MIMEType: contentType, Name: name, Size: f.Size}, nil
}

// detectType guesses a MIME type from the extension, falling back to sniffing
// the first bytes of the body.
func detectType(name string, body io.Reader) (string, io.Reader) {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t, body
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(body, head)
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), body)
}
