package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func validMetadata() Metadata {
	return Metadata{
		ImagePath: "/tmp/sessions/abc.png",
		Width:     640,
		Height:    480,
		Format:    "PNG",
	}
}

func newTestStore(ttl time.Duration) *Store {
	// Long sweep interval so tests control expiry by calling sweep directly.
	return New(ttl, time.Hour)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	id, err := s.Create(validMetadata(), "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated session id")
	}

	session, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if session.ImagePath != "/tmp/sessions/abc.png" {
		t.Errorf("ImagePath = %q, want %q", session.ImagePath, "/tmp/sessions/abc.png")
	}
	if session.Width != 640 || session.Height != 480 {
		t.Errorf("Dimensions = %dx%d, want 640x480", session.Width, session.Height)
	}
	if session.LastMaskPath != "" {
		t.Errorf("New session should have no mask, got %q", session.LastMaskPath)
	}
}

func TestCreateWithCallerID(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	id, err := s.Create(validMetadata(), "my-token")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "my-token" {
		t.Errorf("id = %q, want %q", id, "my-token")
	}
}

func TestCreateInvalidMetadata(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
	}{
		{"empty image path", Metadata{Width: 10, Height: 10, Format: "PNG"}},
		{"zero width", Metadata{ImagePath: "/tmp/a.png", Height: 10, Format: "PNG"}},
		{"negative height", Metadata{ImagePath: "/tmp/a.png", Width: 10, Height: -1, Format: "PNG"}},
		{"missing format", Metadata{ImagePath: "/tmp/a.png", Width: 10, Height: 10}},
	}

	s := newTestStore(10 * time.Minute)
	defer s.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(tt.meta, ""); !errors.Is(err, ErrInvalidMetadata) {
				t.Errorf("Create = %v, want ErrInvalidMetadata", err)
			}
		})
	}
}

func TestGetUnknownSession(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestSetLastMask(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	id, _ := s.Create(validMetadata(), "")

	if err := s.SetLastMask(id, "/tmp/sessions/m1.png"); err != nil {
		t.Fatalf("SetLastMask failed: %v", err)
	}
	if err := s.SetLastMask(id, "/tmp/sessions/m2.png"); err != nil {
		t.Fatalf("SetLastMask failed: %v", err)
	}

	session, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if session.LastMaskPath != "/tmp/sessions/m2.png" {
		t.Errorf("LastMaskPath = %q, want the latest mask", session.LastMaskPath)
	}
	if len(session.MaskPaths) != 2 {
		t.Errorf("MaskPaths length = %d, want 2", len(session.MaskPaths))
	}

	if err := s.SetLastMask("unknown", "/tmp/x.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetLastMask on unknown = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	id, _ := s.Create(validMetadata(), "")

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second delete = %v, want ErrNotFound", err)
	}
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	base := time.Now()
	s.now = func() time.Time { return base }

	stale, _ := s.Create(validMetadata(), "")
	fresh, _ := s.Create(validMetadata(), "")

	// Refresh one session eight minutes in; the other goes untouched.
	s.now = func() time.Time { return base.Add(8 * time.Minute) }
	if _, err := s.Get(fresh); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// At eleven minutes the untouched session is past its TTL.
	s.now = func() time.Time { return base.Add(11 * time.Minute) }
	s.sweep()

	if _, err := s.Get(stale); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stale session survived the sweep: %v", err)
	}
	if _, err := s.Get(fresh); err != nil {
		t.Errorf("Fresh session was swept: %v", err)
	}
}

func TestGetRefreshesExpiry(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	base := time.Now()
	s.now = func() time.Time { return base }

	id, _ := s.Create(validMetadata(), "")

	// Touch the session every nine minutes; it must never expire.
	for i := 1; i <= 3; i++ {
		s.now = func() time.Time { return base.Add(time.Duration(i) * 9 * time.Minute) }
		s.sweep()
		if _, err := s.Get(id); err != nil {
			t.Fatalf("Session expired despite refresh at touch %d: %v", i, err)
		}
	}
}

func TestInfoReportsExpiryWithoutRefreshing(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	base := time.Now()
	s.now = func() time.Time { return base }

	id, _ := s.Create(validMetadata(), "")
	s.SetLastMask(id, "/tmp/m.png")

	info, err := s.Info(id)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.IsExpired {
		t.Error("Fresh session reported as expired")
	}
	if info.MaskCount != 1 {
		t.Errorf("MaskCount = %d, want 1", info.MaskCount)
	}

	s.now = func() time.Time { return base.Add(11 * time.Minute) }
	info, err = s.Info(id)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if !info.IsExpired {
		t.Error("Expired session reported as live")
	}

	// Info must not have refreshed last-access.
	s.sweep()
	if _, err := s.Info(id); !errors.Is(err, ErrNotFound) {
		t.Error("Info refreshed last-access and kept the session alive")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	id, _ := s.Create(validMetadata(), "")
	s.SetLastMask(id, "/tmp/m1.png")

	snap, _ := s.Get(id)
	snap.MaskPaths[0] = "mutated"

	again, _ := s.Get(id)
	if again.MaskPaths[0] != "/tmp/m1.png" {
		t.Error("Snapshot mutation leaked into the store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(10 * time.Minute)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, err := s.Create(validMetadata(), fmt.Sprintf("session-%d", n))
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if _, err := s.Get(id); err != nil {
				t.Errorf("Get failed: %v", err)
			}
			if err := s.SetLastMask(id, "/tmp/m.png"); err != nil {
				t.Errorf("SetLastMask failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := s.Count(); got != 20 {
		t.Errorf("Count = %d, want 20", got)
	}
}
