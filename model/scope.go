// /home/krylon/go/src/github.com/blicero/antenna/model/scope.go
// -*- mode: go; coding: utf-8; -*-
// Created on 11. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-04-09 19:06:50 krylon>

package model

import "fmt"

// Scope says what part of a user's world a Setting applies to.
type Scope uint8

const (
	ScopeAccount Scope = iota
	ScopeDevice
	ScopePodcast
	ScopeEpisode
)

// AllScopes returns a slice of all valid scopes.
func AllScopes() []Scope {
	return []Scope{
		ScopeAccount,
		ScopeDevice,
		ScopePodcast,
		ScopeEpisode,
	}
} // func AllScopes() []Scope

func (s Scope) String() string {
	switch s {
	case ScopeAccount:
		return "account"
	case ScopeDevice:
		return "device"
	case ScopePodcast:
		return "podcast"
	case ScopeEpisode:
		return "episode"
	default:
		return fmt.Sprintf("Scope(%d)", s)
	}
} // func (s Scope) String() string

// Param returns the name of the query parameter that selects the scope
// target, or "" for the account scope, which needs none.
func (s Scope) Param() string {
	switch s {
	case ScopeAccount:
		return ""
	case ScopeDevice:
		return "device"
	case ScopePodcast:
		return "podcast"
	case ScopeEpisode:
		return "episode"
	default:
		return ""
	}
} // func (s Scope) Param() string

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "account":
		return ScopeAccount, nil
	case "device":
		return ScopeDevice, nil
	case "podcast":
		return ScopePodcast, nil
	case "episode":
		return ScopeEpisode, nil
	default:
		return 0, fmt.Errorf("invalid settings scope %q", s)
	}
} // func ParseScope(s string) (Scope, error)
