package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Intake accepts uploaded image binaries, stores them under
// collision-resistant keys, and returns servable reference paths.
type Intake struct {
	storage *Storage
	prefix  string
	now     func() time.Time
}

// NewIntake constructs an Intake writing through the given storage.
// prefix is the public URL prefix references are rooted at
// (e.g. "/uploads").
func NewIntake(storage *Storage, prefix string) *Intake {
	return &Intake{
		storage: storage,
		prefix:  strings.TrimSuffix(prefix, "/"),
		now:     time.Now,
	}
}

// Store writes the uploaded binary and returns its servable reference
// path. Keys combine a microsecond-resolution UTC timestamp with the
// sanitized original filename, so distinct uploads never collide and
// nothing is ever overwritten.
func (i *Intake) Store(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	key := i.objectKey(filename)
	if err := i.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}
	return i.prefix + "/" + key, nil
}

// Key converts a stored reference path back into an object key,
// reporting false when the path is not rooted at the public prefix.
func (i *Intake) Key(reference string) (string, bool) {
	if !strings.HasPrefix(reference, i.prefix+"/") {
		return "", false
	}
	key := strings.TrimPrefix(reference, i.prefix+"/")
	return key, key != ""
}

// Prefix returns the public URL prefix references are rooted at.
func (i *Intake) Prefix() string {
	return i.prefix
}

func (i *Intake) objectKey(filename string) string {
	t := i.now().UTC()
	timestamp := t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
	return timestamp + "_" + SanitizeFilename(filename)
}

// SanitizeFilename normalizes an original filename for storage:
// backslashes become slashes, any directory part is stripped, and
// spaces become underscores.
func SanitizeFilename(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
