// /home/krylon/go/src/github.com/blicero/antenna/database/migrations.go
// -*- mode: go; coding: utf-8; -*-
// Created on 10. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-20 19:28:37 krylon>

package database

import (
	"database/sql"
	"fmt"
	"time"
)

// A migration is one named, forward-only step in the evolution of the
// database schema. Applied migrations are recorded in the _migrations
// table; each pending migration runs in a transaction of its own, so a
// failure rolls back that step completely and leaves the earlier ones
// in place.
type migration struct {
	name    string
	queries []string
}

var migrations = []migration{
	{
		name: "00001_users",
		queries: []string{
			`
CREATE TABLE users (
    id                  INTEGER PRIMARY KEY,
    name                TEXT UNIQUE NOT NULL,
    password            TEXT NOT NULL,
    CHECK (name <> '')
) STRICT
`,
		},
	},
	{
		name: "00002_devices",
		queries: []string{
			`
CREATE TABLE devices (
    id                  INTEGER PRIMARY KEY,
    user_id             INTEGER NOT NULL,
    device_id           TEXT NOT NULL,
    caption             TEXT NOT NULL DEFAULT '',
    type                TEXT NOT NULL DEFAULT '',
    sync_group          TEXT,
    FOREIGN KEY (user_id) REFERENCES users (id),
    UNIQUE (user_id, device_id),
    CHECK (device_id <> '')
) STRICT
`,
			"CREATE INDEX dev_user_idx ON devices (user_id)",
			"CREATE INDEX dev_group_idx ON devices (sync_group)",
		},
	},
	{
		// The first generation of the subscription table was global
		// per user. It was superseded by 00006.
		name: "00003_subscriptions",
		queries: []string{
			`
CREATE TABLE subscriptions (
    id                  INTEGER PRIMARY KEY,
    user_id             INTEGER NOT NULL,
    url                 TEXT NOT NULL,
    deleted             INTEGER NOT NULL DEFAULT 0,
    changed             INTEGER NOT NULL,
    data                TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (user_id) REFERENCES users (id),
    UNIQUE (user_id, url),
    CHECK (url <> '')
) STRICT
`,
			"CREATE INDEX sub_user_idx ON subscriptions (user_id)",
			"CREATE INDEX sub_changed_idx ON subscriptions (changed)",
		},
	},
	{
		name: "00004_episode_actions",
		queries: []string{
			`
CREATE TABLE episode_actions (
    id                  INTEGER PRIMARY KEY,
    user_id             INTEGER NOT NULL,
    subscription_id     INTEGER,
    device_id           INTEGER,
    episode             TEXT NOT NULL,
    action              TEXT NOT NULL,
    changed             INTEGER NOT NULL,
    uploaded_at         INTEGER NOT NULL,
    position            INTEGER,
    started             INTEGER,
    total               INTEGER,
    data                TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (user_id) REFERENCES users (id),
    FOREIGN KEY (subscription_id) REFERENCES subscriptions (id),
    FOREIGN KEY (device_id) REFERENCES devices (id),
    CHECK (action IN ('play', 'download', 'delete', 'new', 'flattr'))
) STRICT
`,
			"CREATE INDEX act_user_idx ON episode_actions (user_id)",
			"CREATE INDEX act_upload_idx ON episode_actions (uploaded_at)",
			"CREATE INDEX act_episode_idx ON episode_actions (episode)",
		},
	},
	{
		name: "00005_settings",
		queries: []string{
			`
CREATE TABLE settings (
    id                  INTEGER PRIMARY KEY,
    user_id             INTEGER NOT NULL,
    scope               TEXT NOT NULL,
    scope_id            TEXT NOT NULL DEFAULT '',
    key                 TEXT NOT NULL,
    value               TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users (id),
    UNIQUE (user_id, scope, scope_id, key),
    CHECK (scope IN ('account', 'device', 'podcast', 'episode')),
    CHECK (key <> '')
) STRICT
`,
		},
	},
	{
		// Second generation: subscriptions are tracked per device.
		// SQLite cannot alter a UNIQUE constraint in place, so the
		// table is rebuilt.
		name: "00006_subscriptions_per_device",
		queries: []string{
			`
CREATE TABLE subscriptions_new (
    id                  INTEGER PRIMARY KEY,
    user_id             INTEGER NOT NULL,
    device_id           INTEGER,
    url                 TEXT NOT NULL,
    deleted             INTEGER NOT NULL DEFAULT 0,
    changed             INTEGER NOT NULL,
    data                TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (user_id) REFERENCES users (id),
    FOREIGN KEY (device_id) REFERENCES devices (id),
    UNIQUE (user_id, device_id, url),
    CHECK (url <> '')
) STRICT
`,
			`
INSERT INTO subscriptions_new (id, user_id, device_id, url, deleted, changed, data)
SELECT id, user_id, NULL, url, deleted, changed, data
FROM subscriptions
`,
			"DROP TABLE subscriptions",
			"ALTER TABLE subscriptions_new RENAME TO subscriptions",
			"CREATE INDEX sub2_user_idx ON subscriptions (user_id)",
			"CREATE INDEX sub2_device_idx ON subscriptions (device_id)",
			"CREATE INDEX sub2_changed_idx ON subscriptions (changed)",
		},
	},
}

const qMigrationInit = `
CREATE TABLE IF NOT EXISTS _migrations (
    id                  INTEGER PRIMARY KEY,
    name                TEXT UNIQUE NOT NULL,
    applied             INTEGER NOT NULL
) STRICT
`

// applyMigrations brings the database schema up to date. It is called
// on every Open and is a no-op when nothing is pending.
func (db *Database) applyMigrations() error {
	var (
		err     error
		rows    *sql.Rows
		applied = make(map[string]bool, len(migrations))
	)

	if _, err = db.db.Exec(qMigrationInit); err != nil {
		db.log.Printf("[ERROR] Cannot create migration table: %s\n",
			err.Error())
		return err
	}

	if rows, err = db.db.Query("SELECT name FROM _migrations"); err != nil {
		db.log.Printf("[ERROR] Cannot query applied migrations: %s\n",
			err.Error())
		return err
	}

	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			rows.Close() // nolint: errcheck,gosec
			db.log.Printf("[ERROR] Cannot scan migration row: %s\n",
				err.Error())
			return err
		}
		applied[name] = true
	}

	rows.Close() // nolint: errcheck,gosec

	for _, m := range migrations {
		if applied[m.name] {
			continue
		} else if err = db.applyMigration(m); err != nil {
			return err
		}

		db.log.Printf("[INFO] Applied migration %s\n", m.name)
	}

	return nil
} // func (db *Database) applyMigrations() error

func (db *Database) applyMigration(m migration) error {
	var (
		err error
		tx  *sql.Tx
	)

	if tx, err = db.db.Begin(); err != nil {
		db.log.Printf("[ERROR] Cannot begin transaction for migration %s: %s\n",
			m.name,
			err.Error())
		return err
	}

	for _, q := range m.queries {
		if _, err = tx.Exec(q); err != nil {
			db.log.Printf("[ERROR] Migration %s failed: %s\n%s\n",
				m.name,
				err.Error(),
				q)
			if rbErr := tx.Rollback(); rbErr != nil {
				db.log.Printf("[CANTHAPPEN] Cannot roll back migration %s: %s\n",
					m.name,
					rbErr.Error())
				return fmt.Errorf("migration %s failed (%s), rollback failed, too (%s)",
					m.name,
					err.Error(),
					rbErr.Error())
			}
			return err
		}
	}

	if _, err = tx.Exec("INSERT INTO _migrations (name, applied) VALUES (?, ?)",
		m.name,
		time.Now().Unix()); err != nil {
		db.log.Printf("[ERROR] Cannot record migration %s: %s\n",
			m.name,
			err.Error())
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Printf("[CANTHAPPEN] Cannot roll back migration %s: %s\n",
				m.name,
				rbErr.Error())
			return rbErr
		}
		return err
	} else if err = tx.Commit(); err != nil {
		db.log.Printf("[CANTHAPPEN] Failed to commit migration %s: %s\n",
			m.name,
			err.Error())
		return err
	}

	return nil
} // func (db *Database) applyMigration(m migration) error
