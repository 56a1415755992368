// /home/krylon/go/src/github.com/blicero/antenna/database/07_db_tx_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 30. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 14:02:11 krylon>

package database

import (
	"testing"
	"time"
)

func TestNestedTransaction(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const (
		urlKeep = "https://nested.example/keep.rss"
		urlDrop = "https://nested.example/drop.rss"
	)

	var (
		err    error
		alice  = users["alice"]
		laptop = devs["laptop"]
		stamp  = time.Unix(1760000000, 0)
	)

	if err = db.Begin(); err != nil {
		t.Fatalf("Failed to start transaction: %s", err.Error())
	}

	if _, err = db.SubscriptionUpsert(alice.ID, laptop.ID, urlKeep, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	}

	// A nested Begin degrades to a savepoint; rolling it back must
	// discard only the inner changes.
	if err = db.Begin(); err != nil {
		t.Fatalf("Nested Begin failed: %s", err.Error())
	} else if _, err = db.SubscriptionUpsert(alice.ID, laptop.ID, urlDrop, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	} else if err = db.Rollback(); err != nil {
		t.Fatalf("Nested Rollback failed: %s", err.Error())
	}

	if err = db.Commit(); err != nil {
		t.Fatalf("Failed to commit transaction: %s", err.Error())
	}

	var subs, serr = db.SubscriptionAllActiveForDevice(alice.ID, laptop.ID)

	if serr != nil {
		t.Fatalf("Failed to load active subscriptions: %s", serr.Error())
	}

	var kept bool

	for _, s := range subs {
		switch s.URL {
		case urlKeep:
			kept = true
		case urlDrop:
			t.Errorf("Rolled-back subscription %q was persisted", s.URL)
		}
	}

	if !kept {
		t.Error("Outer transaction's subscription was not persisted")
	}
} // func TestNestedTransaction(t *testing.T)

func TestNestedCommitScope(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const url = "https://nested.example/inner-commit.rss"

	var (
		err    error
		alice  = users["alice"]
		laptop = devs["laptop"]
		stamp  = time.Unix(1760000600, 0)
	)

	if err = db.Begin(); err != nil {
		t.Fatalf("Failed to start transaction: %s", err.Error())
	}

	// An inner Commit only releases the savepoint; the outer Rollback
	// still discards everything.
	if err = db.Begin(); err != nil {
		t.Fatalf("Nested Begin failed: %s", err.Error())
	} else if _, err = db.SubscriptionUpsert(alice.ID, laptop.ID, url, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	} else if err = db.Commit(); err != nil {
		t.Fatalf("Nested Commit failed: %s", err.Error())
	}

	if err = db.Rollback(); err != nil {
		t.Fatalf("Failed to roll back transaction: %s", err.Error())
	}

	var subID int64

	if subID, err = db.SubscriptionFind(alice.ID, url); err != nil {
		t.Fatalf("Failed to look up subscription: %s", err.Error())
	} else if subID != 0 {
		t.Errorf("Subscription %q survived the outer rollback", url)
	}
} // func TestNestedCommitScope(t *testing.T)
