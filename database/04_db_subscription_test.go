// /home/krylon/go/src/github.com/blicero/antenna/database/04_db_subscription_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 27. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 11:07:48 krylon>

package database

import (
	"testing"
	"time"

	"github.com/blicero/antenna/model"
)

func TestSubscriptionUpsert(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const url = "https://podcast.example/feed.rss"

	var (
		err    error
		alice  = users["alice"]
		phone  = devs["phone"]
		stamp  = time.Unix(1700000000, 0)
		id, i2 int64
	)

	if id, err = db.SubscriptionUpsert(alice.ID, phone.ID, url, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	} else if id == 0 {
		t.Fatal("Subscription got no ID")
	}

	// Re-adding must touch the existing row, not create a second one.
	if i2, err = db.SubscriptionUpsert(alice.ID, phone.ID, url, stamp.Add(time.Hour), nil); err != nil {
		t.Fatalf("Failed to re-add subscription: %s", err.Error())
	} else if i2 != id {
		t.Errorf("Re-add created a new row: %d vs %d", i2, id)
	}

	var subs, serr = db.SubscriptionAllActiveForDevice(alice.ID, phone.ID)

	if serr != nil {
		t.Fatalf("Failed to load active subscriptions: %s", serr.Error())
	}

	var cnt int

	for _, s := range subs {
		if s.URL == url {
			cnt++
		}
	}

	if cnt != 1 {
		t.Errorf("Expected exactly one active row for %s, got %d", url, cnt)
	}
} // func TestSubscriptionUpsert(t *testing.T)

func TestSubscriptionDeltaInclusive(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const url = "https://delta.example/feed.rss"

	var (
		err         error
		alice       = users["alice"]
		phone       = devs["phone"]
		stamp       = time.Unix(1710000000, 0)
		add, remove []string
	)

	if _, err = db.SubscriptionUpsert(alice.ID, phone.ID, url, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	}

	// since == changed must include the row.
	if add, _, err = db.SubscriptionDelta(alice.ID, phone.ID, stamp); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if !contains(add, url) {
		t.Errorf("Delta with since == changed misses %s: %v", url, add)
	}

	// since == changed+1 must not.
	if add, _, err = db.SubscriptionDelta(alice.ID, phone.ID, stamp.Add(time.Second)); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if contains(add, url) {
		t.Errorf("Delta with since > changed still contains %s", url)
	}

	// Soft-deleting moves the URL to the remove list.
	var delStamp = stamp.Add(2 * time.Second)

	if err = db.SubscriptionSoftDelete(alice.ID, phone.ID, url, delStamp); err != nil {
		t.Fatalf("Failed to delete subscription: %s", err.Error())
	} else if add, remove, err = db.SubscriptionDelta(alice.ID, phone.ID, time.Unix(0, 0)); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if contains(add, url) {
		t.Errorf("Deleted subscription %s still in add list", url)
	} else if !contains(remove, url) {
		t.Errorf("Deleted subscription %s missing from remove list: %v", url, remove)
	}
} // func TestSubscriptionDeltaInclusive(t *testing.T)

func TestSubscriptionApplyDelta(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const url = "https://a"

	var (
		err         error
		alice       = users["alice"]
		laptop      = devs["laptop"]
		add, remove []string
		rewrites    [][2]string
	)

	if _, rewrites, err = db.SubscriptionApplyDelta(alice.ID, laptop.ID, []string{url}, nil); err != nil {
		t.Fatalf("Failed to apply delta: %s", err.Error())
	} else if len(rewrites) != 0 {
		t.Errorf("Clean URL should produce no rewrites: %v", rewrites)
	}

	if add, remove, err = db.SubscriptionDelta(alice.ID, laptop.ID, time.Unix(0, 0)); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if !contains(add, url) || contains(remove, url) {
		t.Errorf("After add, delta should list %s as added: add=%v remove=%v",
			url, add, remove)
	}

	if _, _, err = db.SubscriptionApplyDelta(alice.ID, laptop.ID, nil, []string{url}); err != nil {
		t.Fatalf("Failed to apply delta: %s", err.Error())
	} else if add, remove, err = db.SubscriptionDelta(alice.ID, laptop.ID, time.Unix(0, 0)); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if contains(add, url) || !contains(remove, url) {
		t.Errorf("After remove, delta should list %s as removed: add=%v remove=%v",
			url, add, remove)
	}
} // func TestSubscriptionApplyDelta(t *testing.T)

func TestSubscriptionRewrites(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err      error
		alice    = users["alice"]
		laptop   = devs["laptop"]
		rewrites [][2]string
	)

	var add = []string{
		"  https://padded.example/feed.rss  ",
		"ftp://not.a.podcast/feed",
		"  gopher://padded.and.bogus/feed  ",
	}

	if _, rewrites, err = db.SubscriptionApplyDelta(alice.ID, laptop.ID, add, nil); err != nil {
		t.Fatalf("Failed to apply delta: %s", err.Error())
	}

	// Trimming and scheme validation report separately, so the padded
	// invalid URL shows up twice, first trimmed, then dropped.
	var expected = [][2]string{
		{"  https://padded.example/feed.rss  ", "https://padded.example/feed.rss"},
		{"ftp://not.a.podcast/feed", ""},
		{"  gopher://padded.and.bogus/feed  ", "gopher://padded.and.bogus/feed"},
		{"gopher://padded.and.bogus/feed", ""},
	}

	if len(rewrites) != len(expected) {
		t.Fatalf("Expected %d rewrites, got %d: %v",
			len(expected), len(rewrites), rewrites)
	}

	for i, rw := range rewrites {
		if rw != expected[i] {
			t.Errorf("Rewrite %d is %v, expected %v", i, rw, expected[i])
		}
	}

	// Removed URLs pass through the same sanitizer.
	if _, rewrites, err = db.SubscriptionApplyDelta(alice.ID, laptop.ID, nil,
		[]string{" ftp://not.a.podcast/feed "}); err != nil {
		t.Fatalf("Failed to apply delta: %s", err.Error())
	} else if len(rewrites) != 2 {
		t.Fatalf("Expected 2 rewrites for removal, got %d: %v",
			len(rewrites), rewrites)
	} else if rewrites[0][1] != "ftp://not.a.podcast/feed" || rewrites[1][1] != "" {
		t.Errorf("Unexpected removal rewrites: %v", rewrites)
	}

	var subs, serr = db.SubscriptionAllActiveForDevice(alice.ID, laptop.ID)

	if serr != nil {
		t.Fatalf("Failed to load active subscriptions: %s", serr.Error())
	}

	var trimmed bool

	for _, s := range subs {
		switch s.URL {
		case "https://padded.example/feed.rss":
			trimmed = true
		case "ftp://not.a.podcast/feed":
			t.Errorf("Invalid URL %q was persisted", s.URL)
		}
	}

	if !trimmed {
		t.Error("Trimmed URL was not persisted")
	}
} // func TestSubscriptionRewrites(t *testing.T)

func TestSubscriptionPerDevice(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const (
		urlPhone  = "https://phone-only.example/feed.rss"
		urlLaptop = "https://laptop-only.example/feed.rss"
	)

	var (
		err    error
		alice  = users["alice"]
		phone  = devs["phone"]
		laptop = devs["laptop"]
		stamp  = time.Unix(1720000000, 0)
	)

	if _, err = db.SubscriptionUpsert(alice.ID, phone.ID, urlPhone, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	} else if _, err = db.SubscriptionUpsert(alice.ID, laptop.ID, urlLaptop, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription: %s", err.Error())
	}

	var add []string

	if add, _, err = db.SubscriptionDelta(alice.ID, phone.ID, stamp); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if !contains(add, urlPhone) || contains(add, urlLaptop) {
		t.Errorf("Phone delta leaks across devices: %v", add)
	}

	if add, _, err = db.SubscriptionDelta(alice.ID, laptop.ID, stamp); err != nil {
		t.Fatalf("Failed to compute delta: %s", err.Error())
	} else if !contains(add, urlLaptop) || contains(add, urlPhone) {
		t.Errorf("Laptop delta leaks across devices: %v", add)
	}
} // func TestSubscriptionPerDevice(t *testing.T)

func TestSubscriptionUserIsolation(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const url = "https://bobs-secret.example/feed.rss"

	var (
		err   error
		alice = users["alice"]
		bob   = users["bob"]
		stamp = time.Unix(1730000000, 0)
	)

	var bdev *model.Device

	if bdev, err = db.DeviceEnsure(bob.ID, "phone"); err != nil {
		t.Fatalf("Failed to ensure device for bob: %s", err.Error())
	} else if _, err = db.SubscriptionUpsert(bob.ID, bdev.ID, url, stamp, nil); err != nil {
		t.Fatalf("Failed to add subscription for bob: %s", err.Error())
	}

	var subs, serr = db.SubscriptionAllActive(alice.ID)

	if serr != nil {
		t.Fatalf("Failed to load subscriptions: %s", serr.Error())
	}

	for _, s := range subs {
		if s.URL == url {
			t.Errorf("Bob's subscription %s is visible to alice", url)
		}
	}
} // func TestSubscriptionUserIsolation(t *testing.T)
