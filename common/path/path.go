// /home/krylon/go/src/github.com/blicero/antenna/common/path/path.go
// -*- mode: go; coding: utf-8; -*-
// Created on 09. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-03-18 20:12:44 krylon>

// Package path provides symbolic constants for the files and directories
// the application uses.
package path

//go:generate stringer -type=ID

// ID identifies a file or directory used by the application.
type ID uint8

const (
	Base ID = iota
	Log
	Database
	SessionStore
)

// AllPaths returns a slice of all valid path IDs.
func AllPaths() []ID {
	return []ID{
		Base,
		Log,
		Database,
		SessionStore,
	}
} // func AllPaths() []ID
