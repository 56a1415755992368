// /home/krylon/go/src/github.com/blicero/antenna/database/setting.go
// -*- mode: go; coding: utf-8; -*-
// Created on 15. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-25 20:12:40 krylon>

package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/blicero/antenna/database/query"
	"github.com/blicero/antenna/model"
)

// SettingSet stores one setting, overwriting any previous value for the
// same key in the same scope. The value is an arbitrary JSON document,
// stored verbatim.
func (db *Database) SettingSet(userID int64, scope model.Scope, scopeID, key string, value json.RawMessage) error {
	const qid query.ID = query.SettingSet
	var (
		err  error
		stmt *sql.Stmt
	)

	if key == "" {
		return ErrInvalidValue
	}

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return err
	} else if db.tx != nil {
		stmt = db.tx.Stmt(stmt)
	}

EXEC_QUERY:
	if _, err = stmt.Exec(userID, scope.String(), scopeID, key, string(value)); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		} else {
			err = fmt.Errorf("Cannot set %s setting %s: %s",
				scope,
				key,
				err.Error())
			db.log.Printf("[ERROR] %s\n", err.Error())
			return err
		}
	}

	return nil
} // func (db *Database) SettingSet(...) error

// SettingDelete removes one setting. Removing a key that does not exist
// is a no-op.
func (db *Database) SettingDelete(userID int64, scope model.Scope, scopeID, key string) error {
	const qid query.ID = query.SettingDelete
	var (
		err  error
		stmt *sql.Stmt
	)

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return err
	} else if db.tx != nil {
		stmt = db.tx.Stmt(stmt)
	}

EXEC_QUERY:
	if _, err = stmt.Exec(userID, scope.String(), scopeID, key); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		} else {
			err = fmt.Errorf("Cannot delete %s setting %s: %s",
				scope,
				key,
				err.Error())
			db.log.Printf("[ERROR] %s\n", err.Error())
			return err
		}
	}

	return nil
} // func (db *Database) SettingDelete(userID int64, scope model.Scope, scopeID, key string) error

// SettingGetAll returns all settings in one scope as a map of key to
// raw JSON value.
func (db *Database) SettingGetAll(userID int64, scope model.Scope, scopeID string) (map[string]json.RawMessage, error) {
	const qid query.ID = query.SettingGetAll
	var (
		err  error
		stmt *sql.Stmt
	)

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return nil, err
	} else if db.tx != nil {
		stmt = db.tx.Stmt(stmt)
	}

	var rows *sql.Rows

EXEC_QUERY:
	if rows, err = stmt.Query(userID, scope.String(), scopeID); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	var settings = make(map[string]json.RawMessage)

	for rows.Next() {
		var key, value string

		if err = rows.Scan(&key, &value); err != nil {
			db.log.Printf("[ERROR] Error scanning settings row: %s\n",
				err.Error())
			return nil, err
		}

		settings[key] = json.RawMessage(value)
	}

	return settings, nil
} // func (db *Database) SettingGetAll(...) (map[string]json.RawMessage, error)

// SettingApply performs a batch of updates and removals on one scope in
// a single transaction and returns the scope's resulting settings.
func (db *Database) SettingApply(userID int64, scope model.Scope, scopeID string, set map[string]json.RawMessage, remove []string) (map[string]json.RawMessage, error) {
	var (
		err    error
		status bool
	)

	if db.tx == nil {
		if err = db.Begin(); err != nil {
			return nil, err
		}
		defer func() {
			if status {
				if err2 := db.Commit(); err2 != nil {
					db.log.Printf("[ERROR] Failed to commit transaction: %s\n",
						err2.Error())
				}
			} else if err2 := db.Rollback(); err2 != nil {
				db.log.Printf("[ERROR] Failed to roll back transaction: %s\n",
					err2.Error())
			}
		}()
	}

	for key, value := range set {
		if err = db.SettingSet(userID, scope, scopeID, key, value); err != nil {
			return nil, err
		}
	}

	for _, key := range remove {
		if err = db.SettingDelete(userID, scope, scopeID, key); err != nil {
			return nil, err
		}
	}

	var settings map[string]json.RawMessage

	if settings, err = db.SettingGetAll(userID, scope, scopeID); err != nil {
		return nil, err
	}

	status = true
	return settings, nil
} // func (db *Database) SettingApply(...) (map[string]json.RawMessage, error)
