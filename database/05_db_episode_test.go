// /home/krylon/go/src/github.com/blicero/antenna/database/05_db_episode_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 28. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 11:41:26 krylon>

package database

import (
	"testing"
	"time"

	"github.com/blicero/antenna/model"
)

func TestEpisodeAppendNoDedup(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const (
		podcast = "https://episodes.example/feed.rss"
		episode = "https://episodes.example/ep001.mp3"
	)

	var (
		err   error
		alice = users["alice"]
		act   = model.EpisodeAction{
			Podcast:    podcast,
			Episode:    episode,
			Action:     model.ActionPlay,
			DeviceName: "phone",
		}
	)

	// The log is append-only, identical actions both persist.
	if _, _, err = db.EpisodeActionAppend(alice.ID, []model.EpisodeAction{act, act}); err != nil {
		t.Fatalf("Failed to append episode actions: %s", err.Error())
	}

	var actions []model.EpisodeAction

	if actions, err = db.EpisodeActionQuery(alice.ID, time.Unix(0, 0), podcast, "", false); err != nil {
		t.Fatalf("Failed to query episode actions: %s", err.Error())
	}

	var cnt int

	for _, a := range actions {
		if a.Episode == episode {
			cnt++
		}
	}

	if cnt != 2 {
		t.Errorf("Expected 2 entries for %s, got %d", episode, cnt)
	}
} // func TestEpisodeAppendNoDedup(t *testing.T)

func TestEpisodeLazySubscription(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const podcast = "https://never-subscribed.example/feed.rss"

	var (
		err   error
		alice = users["alice"]
		act   = model.EpisodeAction{
			Podcast: podcast,
			Episode: "https://never-subscribed.example/ep001.mp3",
			Action:  model.ActionDownload,
		}
	)

	if _, _, err = db.EpisodeActionAppend(alice.ID, []model.EpisodeAction{act}); err != nil {
		t.Fatalf("Failed to append episode action: %s", err.Error())
	}

	var subID int64

	if subID, err = db.SubscriptionFind(alice.ID, podcast); err != nil {
		t.Fatalf("Failed to look up subscription: %s", err.Error())
	} else if subID == 0 {
		t.Errorf("No subscription row was created for %s", podcast)
	}
} // func TestEpisodeLazySubscription(t *testing.T)

func TestEpisodeUploadedAtFiltering(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const (
		podcast = "https://backdated.example/feed.rss"
		episode = "https://backdated.example/ep001.mp3"
	)

	var (
		err   error
		alice = users["alice"]
		act   = model.EpisodeAction{
			Podcast: podcast,
			Episode: episode,
			Action:  model.ActionPlay,
			// An explicit timestamp far in the past.
			Changed: time.Unix(1000000, 0),
		}
		stamp time.Time
	)

	if stamp, _, err = db.EpisodeActionAppend(alice.ID, []model.EpisodeAction{act}); err != nil {
		t.Fatalf("Failed to append episode action: %s", err.Error())
	}

	// The query filters on receipt time, so the backdated action must
	// still show up for since == upload timestamp.
	var actions []model.EpisodeAction

	if actions, err = db.EpisodeActionQuery(alice.ID, stamp, podcast, "", false); err != nil {
		t.Fatalf("Failed to query episode actions: %s", err.Error())
	}

	var found bool

	for _, a := range actions {
		if a.Episode == episode {
			found = true
			if a.Changed.Unix() != 1000000 {
				t.Errorf("Client timestamp was not preserved: %d",
					a.Changed.Unix())
			}
		}
	}

	if !found {
		t.Error("Backdated action missing from uploaded_at-filtered query")
	}
} // func TestEpisodeUploadedAtFiltering(t *testing.T)

func TestEpisodeAggregated(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const (
		podcast = "https://aggregated.example/feed.rss"
		episode = "https://aggregated.example/ep001.mp3"
	)

	var (
		err      error
		alice    = users["alice"]
		position = int64(120)
		acts     = []model.EpisodeAction{
			{
				Podcast: podcast,
				Episode: episode,
				Action:  model.ActionDownload,
				Changed: time.Unix(1740000000, 0),
			},
			{
				Podcast:  podcast,
				Episode:  episode,
				Action:   model.ActionPlay,
				Changed:  time.Unix(1740000600, 0),
				Position: &position,
			},
		}
	)

	if _, _, err = db.EpisodeActionAppend(alice.ID, acts); err != nil {
		t.Fatalf("Failed to append episode actions: %s", err.Error())
	}

	var actions []model.EpisodeAction

	if actions, err = db.EpisodeActionQuery(alice.ID, time.Unix(0, 0), podcast, "", true); err != nil {
		t.Fatalf("Failed to query episode actions: %s", err.Error())
	} else if len(actions) != 1 {
		t.Fatalf("Aggregated query returned %d entries, expected 1", len(actions))
	} else if actions[0].Action != model.ActionPlay {
		t.Errorf("Aggregation kept the wrong action: %s", actions[0].Action)
	} else if actions[0].Position == nil || *actions[0].Position != position {
		t.Errorf("Aggregation lost the position field")
	}
} // func TestEpisodeAggregated(t *testing.T)

func TestEpisodeDeviceFilter(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const podcast = "https://devfilter.example/feed.rss"

	var (
		err   error
		alice = users["alice"]
		acts  = []model.EpisodeAction{
			{
				Podcast:    podcast,
				Episode:    "https://devfilter.example/ep001.mp3",
				Action:     model.ActionPlay,
				DeviceName: "phone",
			},
			{
				Podcast:    podcast,
				Episode:    "https://devfilter.example/ep002.mp3",
				Action:     model.ActionPlay,
				DeviceName: "laptop",
			},
		}
	)

	if _, _, err = db.EpisodeActionAppend(alice.ID, acts); err != nil {
		t.Fatalf("Failed to append episode actions: %s", err.Error())
	}

	var actions []model.EpisodeAction

	if actions, err = db.EpisodeActionQuery(alice.ID, time.Unix(0, 0), podcast, "phone", false); err != nil {
		t.Fatalf("Failed to query episode actions: %s", err.Error())
	}

	for _, a := range actions {
		if a.DeviceName != "phone" {
			t.Errorf("Device filter leaked action from device %q", a.DeviceName)
		}
	}

	if len(actions) != 1 {
		t.Errorf("Expected 1 action for device phone, got %d", len(actions))
	}
} // func TestEpisodeDeviceFilter(t *testing.T)

func TestEpisodeRewrites(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err      error
		alice    = users["alice"]
		rewrites [][2]string
		act      = model.EpisodeAction{
			Podcast: "  https://padded-episodes.example/feed.rss  ",
			Episode: " https://padded-episodes.example/ep001.mp3\n",
			Action:  model.ActionNew,
		}
	)

	// Both the podcast and the episode URL get trimmed, and both
	// rewrites are reported.
	if _, rewrites, err = db.EpisodeActionAppend(alice.ID, []model.EpisodeAction{act}); err != nil {
		t.Fatalf("Failed to append episode action: %s", err.Error())
	} else if len(rewrites) != 2 {
		t.Fatalf("Expected 2 rewrites, got %d: %v", len(rewrites), rewrites)
	} else if rewrites[0][1] != "https://padded-episodes.example/feed.rss" {
		t.Errorf("Unexpected podcast rewrite: %v", rewrites[0])
	} else if rewrites[1][0] != act.Episode || rewrites[1][1] != "https://padded-episodes.example/ep001.mp3" {
		t.Errorf("Unexpected episode rewrite: %v", rewrites[1])
	}
} // func TestEpisodeRewrites(t *testing.T)

func TestEpisodeUnknownDevice(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const podcast = "https://ghostdev.example/feed.rss"

	var (
		err   error
		alice = users["alice"]
		act   = model.EpisodeAction{
			Podcast:    podcast,
			Episode:    "https://ghostdev.example/ep001.mp3",
			Action:     model.ActionPlay,
			DeviceName: "wristwatch",
		}
	)

	if _, _, err = db.EpisodeActionAppend(alice.ID, []model.EpisodeAction{act}); err != nil {
		t.Fatalf("Failed to append episode action: %s", err.Error())
	}

	// Uploading an action for an unregistered device must not create
	// that device.
	var dev *model.Device

	if dev, err = db.DeviceGetByDevID(alice.ID, "wristwatch"); err != nil {
		t.Fatalf("Failed to look up device: %s", err.Error())
	} else if dev != nil {
		t.Errorf("Device %q was created as a side effect of an episode upload",
			dev.DeviceID)
	}

	// The action itself is stored, just without a device reference.
	var actions []model.EpisodeAction

	if actions, err = db.EpisodeActionQuery(alice.ID, time.Unix(0, 0), podcast, "", false); err != nil {
		t.Fatalf("Failed to query episode actions: %s", err.Error())
	} else if len(actions) != 1 {
		t.Fatalf("Expected 1 action for %s, got %d", podcast, len(actions))
	} else if actions[0].DeviceName != "" {
		t.Errorf("Action carries a device reference %q, expected none",
			actions[0].DeviceName)
	}
} // func TestEpisodeUnknownDevice(t *testing.T)
