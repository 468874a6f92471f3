package attachment

import (
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ObjectStore accepts a named blob and returns a durable URL for it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ObjectName builds a collision-resistant key: <unix-millis>-<random>.<ext>.
// The extension is taken from the original file name and omitted when it has none.
func ObjectName(original string, now time.Time) string {
	suffix := make([]byte, 7)
	for i := range suffix {
		suffix[i] = nameAlphabet[rand.Intn(len(nameAlphabet))]
	}

	name := strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
	if ext := strings.TrimPrefix(filepath.Ext(original), "."); ext != "" {
		name += "." + strings.ToLower(ext)
	}
	return name
}
