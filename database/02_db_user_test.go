// /home/krylon/go/src/github.com/blicero/antenna/database/02_db_user_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 26. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 10:14:31 krylon>

package database

import (
	"testing"

	"github.com/blicero/antenna/model"
)

func TestUserAdd(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	type testCase struct {
		name        string
		hash        string
		expectError bool
	}

	var (
		err       error
		testCases = []testCase{
			{name: "alice", hash: "$2a$10$fakefakefakefakefakefake"},
			{name: "bob", hash: "$2a$10$ekafekafekafekafekafekaf"},
			{name: "alice", hash: "$2a$10$fakefakefakefakefakefake", expectError: true},
			{name: "", hash: "$2a$10$fakefakefakefakefakefake", expectError: true},
			{name: "mallory", hash: "", expectError: true},
		}
	)

	for _, c := range testCases {
		var u = &model.User{
			Name:     c.name,
			Password: c.hash,
		}

		if err = db.UserAdd(u); err != nil {
			if !c.expectError {
				t.Fatalf("Unexpected error adding user %q: %s",
					c.name,
					err.Error())
			}
		} else if c.expectError {
			t.Fatalf("Adding user %q should have failed", c.name)
		} else if u.ID == 0 {
			t.Fatalf("User %q got no ID", c.name)
		} else {
			users[c.name] = u
		}
	}
} // func TestUserAdd(t *testing.T)

func TestUserGet(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var err error

	for name, ref := range users {
		var u *model.User

		if u, err = db.UserGetByName(name); err != nil {
			t.Fatalf("Failed to look up user %q: %s",
				name,
				err.Error())
		} else if u == nil {
			t.Fatalf("User %q was not found", name)
		} else if u.ID != ref.ID || u.Password != ref.Password {
			t.Errorf("Looked-up user %q differs: got (%d, %q), expected (%d, %q)",
				name,
				u.ID, u.Password,
				ref.ID, ref.Password)
		}

		if u, err = db.UserGetByID(ref.ID); err != nil {
			t.Fatalf("Failed to look up user %d: %s",
				ref.ID,
				err.Error())
		} else if u == nil {
			t.Fatalf("User %d was not found", ref.ID)
		} else if u.Name != name {
			t.Errorf("User %d has unexpected name %q",
				ref.ID,
				u.Name)
		}
	}

	var u *model.User

	if u, err = db.UserGetByName("nosuchuser"); err != nil {
		t.Fatalf("Lookup of non-existent user failed: %s", err.Error())
	} else if u != nil {
		t.Errorf("Lookup of non-existent user returned %v", u)
	}
} // func TestUserGet(t *testing.T)

func TestUserSetPassword(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	const newHash = "$2a$10$freshfreshfreshfreshfres"

	var (
		err error
		u   = users["bob"]
	)

	if err = db.UserSetPassword(u, newHash); err != nil {
		t.Fatalf("Failed to set password for %s: %s",
			u.Name,
			err.Error())
	} else if u.Password != newHash {
		t.Errorf("Password on User object was not updated")
	}

	var fresh *model.User

	if fresh, err = db.UserGetByID(u.ID); err != nil {
		t.Fatalf("Failed to re-read user %s: %s",
			u.Name,
			err.Error())
	} else if fresh.Password != newHash {
		t.Errorf("Password in database was not updated: %q",
			fresh.Password)
	}
} // func TestUserSetPassword(t *testing.T)
