// /home/krylon/go/src/github.com/blicero/antenna/model/model.go
// -*- mode: go; coding: utf-8; -*-
// Created on 09. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-14 21:48:33 krylon>

// Package model provides the data types used across the application.
package model

import (
	"fmt"
	"regexp"
	"time"
)

// DevicePattern is the pattern a client-supplied device ID must match.
var DevicePattern = regexp.MustCompile(`^[\w.-]+$`)

// User is an account on the server. The Password field holds the bcrypt
// hash of the user's password, never the cleartext.
type User struct {
	ID       int64
	Name     string
	Password string
}

func (u *User) String() string {
	return fmt.Sprintf("{ ID: %d, Name: %q }",
		u.ID,
		u.Name)
}

// Session ties an opaque token to a User for a limited period of time.
type Session struct {
	ID      string
	UserID  int64
	Created time.Time
	Expires time.Time
}

// IsExpired returns true if the Session is past its expiry time.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
} // func (s *Session) IsExpired() bool

// IsExpiredAt returns true if the Session is past its expiry time as
// of the given instant. A session expiring exactly at that instant is
// still valid.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return s.Expires.Before(t)
} // func (s *Session) IsExpiredAt(t time.Time) bool

// Device is a client a User syncs from, identified by a per-user unique
// string. Devices sharing a non-empty SyncGroup are considered
// synchronized with each other.
type Device struct {
	ID        int64
	UserID    int64
	DeviceID  string
	Caption   string
	Type      string
	SyncGroup string
}

func (d *Device) String() string {
	return fmt.Sprintf("{ ID: %d, UserID: %d, DeviceID: %q, Caption: %q, Type: %q, SyncGroup: %q }",
		d.ID,
		d.UserID,
		d.DeviceID,
		d.Caption,
		d.Type,
		d.SyncGroup)
}

// Subscription is a podcast feed a Device is subscribed to. Rows are
// never removed, removal sets the Deleted flag so it can be reported by
// delta queries. Data is an opaque extension map; it may carry a display
// title for the feed.
type Subscription struct {
	ID       int64
	UserID   int64
	DeviceID int64
	URL      string
	Deleted  bool
	Changed  time.Time
	Data     map[string]any
}

// Title returns the display title carried in the extension map, falling
// back to the feed URL.
func (s *Subscription) Title() string {
	if s.Data != nil {
		if t, ok := s.Data["title"].(string); ok && t != "" {
			return t
		}
	}

	return s.URL
} // func (s *Subscription) Title() string

// EpisodeAction is one playback/download/delete event for one episode.
// The log is append-only, identical actions may occur more than once.
//
// Changed is the event's logical timestamp as supplied by the client,
// UploadedAt is the server receipt time; delta queries filter on the
// latter so a client can never miss an action with a backdated Changed.
//
// Extra holds any fields outside the canonical set (plus the guid);
// when flattened for output, named fields win over Extra entries of the
// same name.
type EpisodeAction struct {
	ID             int64
	UserID         int64
	SubscriptionID int64
	DeviceID       int64
	Podcast        string
	Episode        string
	Action         Action
	Changed        time.Time
	UploadedAt     time.Time
	Position       *int64
	Started        *int64
	Total          *int64
	DeviceName     string
	Extra          map[string]any
}

// TimestampFormat is how episode action timestamps are rendered on the
// wire, per the gpodder protocol.
const TimestampFormat = "2006-01-02T15:04:05"

// Flatten merges the action into a single flat object for serialization.
func (a *EpisodeAction) Flatten() map[string]any {
	var obj = make(map[string]any, len(a.Extra)+8)

	for k, v := range a.Extra {
		obj[k] = v
	}

	obj["podcast"] = a.Podcast
	obj["episode"] = a.Episode
	obj["action"] = a.Action.String()
	obj["timestamp"] = a.Changed.UTC().Format(TimestampFormat)

	if a.Position != nil {
		obj["position"] = *a.Position
	}
	if a.Started != nil {
		obj["started"] = *a.Started
	}
	if a.Total != nil {
		obj["total"] = *a.Total
	}
	if a.DeviceName != "" {
		obj["device"] = a.DeviceName
	}

	return obj
} // func (a *EpisodeAction) Flatten() map[string]any

// Setting is one key/value pair of user configuration, scoped to the
// account as a whole, a device, a podcast, or an episode. The value is
// an arbitrary JSON document.
type Setting struct {
	UserID  int64
	Scope   Scope
	ScopeID string
	Key     string
	Value   string
}
