package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestIntake(t *testing.T) (*Intake, *Storage) {
	t.Helper()

	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	st := NewStorage(local)
	if err := st.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	return NewIntake(st, "/uploads"), st
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"phone.jpg", "phone.jpg"},
		{"my phone.jpg", "my_phone.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\photos\old laptop.png`, "old_laptop.png"},
		{"", "upload"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIntakeStoreAndReadBack(t *testing.T) {
	intake, st := newTestIntake(t)
	ctx := context.Background()

	ref, err := intake.Store(ctx, "old phone.jpg", []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasPrefix(ref, "/uploads/") {
		t.Fatalf("expected reference under /uploads/, got %q", ref)
	}
	if !strings.HasSuffix(ref, "_old_phone.jpg") {
		t.Errorf("expected sanitized suffix, got %q", ref)
	}

	key, ok := intake.Key(ref)
	if !ok {
		t.Fatalf("Key(%q) did not resolve", ref)
	}

	reader, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(data, []byte("jpeg-bytes")) {
		t.Errorf("stored content mismatch: %q", data)
	}
}

func TestIntakeKeysNeverCollide(t *testing.T) {
	intake, _ := newTestIntake(t)
	ctx := context.Background()

	// Drive the clock one microsecond per upload, the finest
	// resolution the key format encodes.
	base := time.Date(2025, 10, 11, 12, 0, 0, 0, time.UTC)
	tick := 0
	intake.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Microsecond)
	}

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		ref, err := intake.Store(ctx, "same name.jpg", []byte("x"), "image/jpeg")
		if err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = true
	}
}

func TestIntakeKeyRejectsForeignPaths(t *testing.T) {
	intake, _ := newTestIntake(t)

	if _, ok := intake.Key("/elsewhere/file.jpg"); ok {
		t.Error("expected foreign prefix to be rejected")
	}
	if _, ok := intake.Key("/uploads/"); ok {
		t.Error("expected empty key to be rejected")
	}
}

func TestLocalStorageNeverOverwrites(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()
	if err := local.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}

	if err := local.Put(ctx, "a.jpg", strings.NewReader("one"), 3, "image/jpeg"); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := local.Put(ctx, "a.jpg", strings.NewReader("two"), 3, "image/jpeg"); err == nil {
		t.Error("expected error overwriting existing object")
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()

	if _, err := local.Get(ctx, "../secret"); err == nil {
		t.Error("expected traversal key to be rejected")
	}
	if err := local.Put(ctx, "/abs/path", strings.NewReader("x"), 1, ""); err == nil {
		t.Error("expected absolute key to be rejected")
	}
}
