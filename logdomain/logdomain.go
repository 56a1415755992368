// /home/krylon/go/src/github.com/blicero/antenna/logdomain/logdomain.go
// -*- mode: go; coding: utf-8; -*-
// Created on 09. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-03-02 17:26:58 krylon>

// Package logdomain provides constants to identify the various
// subsystems that need to do logging.
package logdomain

//go:generate stringer -type=ID

// ID represents a log source
type ID uint8

const (
	Common ID = iota
	Database
	DBPool
	Session
	Auth
	Web
)

// AllDomains returns a slice of all the valid log sources.
func AllDomains() []ID {
	return []ID{
		Common,
		Database,
		DBPool,
		Session,
		Auth,
		Web,
	}
} // func AllDomains() []ID
