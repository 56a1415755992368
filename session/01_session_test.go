// /home/krylon/go/src/github.com/blicero/antenna/session/01_session_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 29. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 12:19:57 krylon>

package session

import (
	"testing"
	"time"

	"github.com/blicero/antenna/model"
	"github.com/google/uuid"
)

func TestStoreOpen(t *testing.T) {
	var err error

	if store, err = Open(); err != nil {
		store = nil
		t.Fatalf("Failed to open session store: %s",
			err.Error())
	}
} // func TestStoreOpen(t *testing.T)

func TestSessionCreateGet(t *testing.T) {
	if store == nil {
		t.SkipNow()
	}

	const userID = 42

	var (
		err error
		s   model.Session
		got *model.Session
	)

	if s, err = store.Create(userID); err != nil {
		t.Fatalf("Failed to create session: %s", err.Error())
	} else if s.ID == "" {
		t.Fatal("Session has no token")
	} else if got, err = store.Get(s.ID); err != nil {
		t.Fatalf("Failed to look up session: %s", err.Error())
	} else if got == nil {
		t.Fatal("Freshly created session was not found")
	} else if got.UserID != userID {
		t.Errorf("Session belongs to user %d, expected %d",
			got.UserID,
			userID)
	}

	if got, err = store.Get(uuid.NewString()); err != nil {
		t.Fatalf("Lookup of unknown token failed: %s", err.Error())
	} else if got != nil {
		t.Errorf("Lookup of unknown token returned a session: %v", got)
	}
} // func TestSessionCreateGet(t *testing.T)

func TestSessionExpiry(t *testing.T) {
	if store == nil {
		t.SkipNow()
	}

	// Plant an already-expired session in both tiers.
	var (
		err error
		now = time.Now()
		s   = model.Session{
			ID:      uuid.NewString(),
			UserID:  23,
			Created: now.Add(-2 * Lifetime),
			Expires: now.Add(-Lifetime),
		}
	)

	if err = store.persist(s); err != nil {
		t.Fatalf("Failed to persist session: %s", err.Error())
	}
	store.cache.Add(s.ID, s)

	var got *model.Session

	if got, err = store.Get(s.ID); err != nil {
		t.Fatalf("Failed to look up session: %s", err.Error())
	} else if got != nil {
		t.Error("Expired session was returned")
	}

	// Expiry must have purged both tiers.
	if _, ok := store.cache.Get(s.ID); ok {
		t.Error("Expired session is still cached")
	}

	store.cache.Remove(s.ID) // in case the check above failed

	if got, err = store.Get(s.ID); err != nil {
		t.Fatalf("Failed to look up session: %s", err.Error())
	} else if got != nil {
		t.Error("Expired session is still persisted")
	}
} // func TestSessionExpiry(t *testing.T)

func TestSessionExpiryBoundary(t *testing.T) {
	var (
		stamp = time.Unix(1750000000, 0)
		s     = model.Session{Expires: stamp}
	)

	// Only a session whose expiry lies strictly in the past is
	// expired; one expiring at the very instant of the check is still
	// valid.
	if s.IsExpiredAt(stamp) {
		t.Error("Session expiring at the instant of the check counts as expired")
	}
	if s.IsExpiredAt(stamp.Add(-time.Nanosecond)) {
		t.Error("Session counts as expired before its expiry time")
	}
	if !s.IsExpiredAt(stamp.Add(time.Nanosecond)) {
		t.Error("Session past its expiry time counts as valid")
	}
} // func TestSessionExpiryBoundary(t *testing.T)

func TestSessionDelete(t *testing.T) {
	if store == nil {
		t.SkipNow()
	}

	var (
		err error
		s   model.Session
		got *model.Session
	)

	if s, err = store.Create(7); err != nil {
		t.Fatalf("Failed to create session: %s", err.Error())
	} else if err = store.Delete(s.ID); err != nil {
		t.Fatalf("Failed to delete session: %s", err.Error())
	} else if got, err = store.Get(s.ID); err != nil {
		t.Fatalf("Failed to look up session: %s", err.Error())
	} else if got != nil {
		t.Error("Deleted session was returned")
	}

	// Deleting twice is not an error.
	if err = store.Delete(s.ID); err != nil {
		t.Errorf("Second delete failed: %s", err.Error())
	}
} // func TestSessionDelete(t *testing.T)

func TestStoreWarm(t *testing.T) {
	if store == nil {
		t.SkipNow()
	}

	var (
		err error
		s   model.Session
	)

	if s, err = store.Create(64); err != nil {
		t.Fatalf("Failed to create session: %s", err.Error())
	} else if err = store.Close(); err != nil {
		t.Fatalf("Failed to close session store: %s", err.Error())
	}

	if store, err = Open(); err != nil {
		store = nil
		t.Fatalf("Failed to re-open session store: %s", err.Error())
	}

	// The surviving session must be back in the cache without a disk
	// lookup.
	if _, ok := store.cache.Get(s.ID); !ok {
		t.Error("Re-opened store did not warm the cache")
	}

	var got *model.Session

	if got, err = store.Get(s.ID); err != nil {
		t.Fatalf("Failed to look up session: %s", err.Error())
	} else if got == nil {
		t.Error("Session did not survive the re-open")
	} else if got.UserID != 64 {
		t.Errorf("Session belongs to user %d, expected 64", got.UserID)
	}
} // func TestStoreWarm(t *testing.T)
