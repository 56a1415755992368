// /home/krylon/go/src/github.com/blicero/antenna/database/01_db_create_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 26. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 10:06:55 krylon>

package database

import (
	"testing"

	"github.com/blicero/antenna/common"
	"github.com/blicero/antenna/common/path"
)

func TestDBOpen(t *testing.T) {
	var (
		err    error
		dbpath string
	)

	dbpath = common.Path(path.Database)

	if db, err = Open(dbpath); err != nil {
		db = nil
		t.Fatalf("Failed to open database at %s: %s",
			dbpath,
			err.Error())
	}
} // func TestDBOpen(t *testing.T)

func TestDBQueryPrepare(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err error
	)

	for qid := range dbQueries {
		if _, err = db.getQuery(qid); err != nil {
			t.Errorf("Failed to prepare query %s: %s",
				qid,
				err.Error())
		}
	}
} // func TestDBQueryPrepare(t *testing.T)

func TestDBMigrationsApplied(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	// Re-opening must be a no-op, all migrations are on record.
	var rows, err = db.db.Query("SELECT COUNT(*) FROM _migrations")

	if err != nil {
		t.Fatalf("Cannot query _migrations: %s", err.Error())
	}

	defer rows.Close() // nolint: errcheck

	var cnt int

	if !rows.Next() {
		t.Fatal("No result from _migrations count")
	} else if err = rows.Scan(&cnt); err != nil {
		t.Fatalf("Cannot scan migration count: %s", err.Error())
	} else if cnt != len(migrations) {
		t.Errorf("Unexpected number of applied migrations: %d (expected %d)",
			cnt,
			len(migrations))
	}
} // func TestDBMigrationsApplied(t *testing.T)
