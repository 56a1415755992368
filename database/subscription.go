// /home/krylon/go/src/github.com/blicero/antenna/database/subscription.go
// -*- mode: go; coding: utf-8; -*-
// Created on 12. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-24 21:03:11 krylon>

package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blicero/antenna/database/query"
	"github.com/blicero/antenna/model"
)

// SubscriptionUpsert adds a subscription for the given device, or
// revives it if it exists in soft-deleted state. Either way the changed
// timestamp is bumped to ts. Existing metadata is only overwritten if
// data is non-empty.
func (db *Database) SubscriptionUpsert(userID, devicePK int64, url string, ts time.Time, data map[string]any) (int64, error) {
	const qid query.ID = query.SubscriptionUpsert
	var (
		err    error
		msg    string
		blob   string
		stmt   *sql.Stmt
		tx     *sql.Tx
		status bool
	)

	if url == "" {
		return 0, ErrInvalidValue
	} else if blob, err = encodeData(data); err != nil {
		return 0, err
	}

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return 0, err
	} else if db.tx != nil {
		tx = db.tx
	} else {
	BEGIN_AD_HOC:
		if tx, err = db.db.Begin(); err != nil {
			if worthARetry(err) {
				waitForRetry()
				goto BEGIN_AD_HOC
			} else {
				msg = fmt.Sprintf("Error starting transaction: %s\n",
					err.Error())
				db.log.Printf("[ERROR] %s\n", msg)
				return 0, errors.New(msg)
			}

		} else {
			defer func() {
				var err2 error
				if status {
					if err2 = tx.Commit(); err2 != nil {
						db.log.Printf("[ERROR] Failed to commit ad-hoc transaction: %s\n",
							err2.Error())
					}
				} else if err2 = tx.Rollback(); err2 != nil {
					db.log.Printf("[ERROR] Rollback of ad-hoc transaction failed: %s\n",
						err2.Error())
				}
			}()
		}
	}

	stmt = tx.Stmt(stmt)

	var rows *sql.Rows

EXEC_QUERY:
	if rows, err = stmt.Query(userID, devicePK, url, ts.Unix(), blob); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		} else {
			err = fmt.Errorf("Cannot add subscription %s to database: %s",
				url,
				err.Error())
			db.log.Printf("[ERROR] %s\n", err.Error())
			return 0, err
		}
	}

	defer rows.Close() // nolint: errcheck,gosec

	if !rows.Next() {
		// CANTHAPPEN
		db.log.Printf("[CANTHAPPEN] Query %s did not return a value\n",
			qid)
		return 0, fmt.Errorf("Query %s did not return a value", qid)
	}

	var id int64

	if err = rows.Scan(&id); err != nil {
		msg = fmt.Sprintf("Failed to get ID for newly added subscription %s: %s",
			url,
			err.Error())
		db.log.Printf("[ERROR] %s\n", msg)
		return 0, errors.New(msg)
	}

	status = true
	return id, nil
} // func (db *Database) SubscriptionUpsert(...) (int64, error)

// SubscriptionSoftDelete marks a subscription as deleted and bumps its
// changed timestamp. The row stays around so the deletion propagates to
// other clients via the delta protocol. Removing a subscription that
// does not exist is a no-op.
func (db *Database) SubscriptionSoftDelete(userID, devicePK int64, url string, ts time.Time) error {
	const qid query.ID = query.SubscriptionDelete
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
	if _, err = stmt.Exec(ts.Unix(), userID, devicePK, url); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		} else {
			err = fmt.Errorf("Cannot delete subscription %s: %s",
				url,
				err.Error())
			db.log.Printf("[ERROR] %s\n", err.Error())
			return err
		}
	}

	return nil
} // func (db *Database) SubscriptionSoftDelete(userID, devicePK int64, url string, ts time.Time) error

// SubscriptionFind looks up a subscription row for the given User by
// feed URL alone, across all devices. It returns the lowest matching
// database ID, or 0 if the user has no such subscription at all.
func (db *Database) SubscriptionFind(userID int64, url string) (int64, error) {
	const qid query.ID = query.SubscriptionFind
	var (
		err  error
		stmt *sql.Stmt
	)

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return 0, err
	} else if db.tx != nil {
		stmt = db.tx.Stmt(stmt)
	}

	var rows *sql.Rows

EXEC_QUERY:
	if rows, err = stmt.Query(userID, url); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return 0, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	if rows.Next() {
		var id int64

		if err = rows.Scan(&id); err != nil {
			db.log.Printf("[ERROR] Error scanning row for subscription %s: %s\n",
				url,
				err.Error())
			return 0, err
		}

		return id, nil
	}

	return 0, nil
} // func (db *Database) SubscriptionFind(userID int64, url string) (int64, error)

// SubscriptionDelta computes the changes to a device's subscription
// list at or after since. URLs whose most recent state is active land
// in add, soft-deleted ones in remove. since is inclusive, so a client
// echoing back the timestamp of its last sync never misses a change.
func (db *Database) SubscriptionDelta(userID, devicePK int64, since time.Time) (add, remove []string, err error) {
	return db.subscriptionDelta(query.SubscriptionGetSince, userID, &devicePK, since)
} // func (db *Database) SubscriptionDelta(userID, devicePK int64, since time.Time) (add, remove []string, err error)

// SubscriptionDeltaUser computes the subscription delta across all of
// a User's devices.
func (db *Database) SubscriptionDeltaUser(userID int64, since time.Time) (add, remove []string, err error) {
	return db.subscriptionDelta(query.SubscriptionGetSinceUser, userID, nil, since)
} // func (db *Database) SubscriptionDeltaUser(userID int64, since time.Time) (add, remove []string, err error)

func (db *Database) subscriptionDelta(qid query.ID, userID int64, devicePK *int64, since time.Time) (add, remove []string, err error) {
	var stmt *sql.Stmt

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return nil, nil, err
	} else if db.tx != nil {
		stmt = db.tx.Stmt(stmt)
	}

	var rows *sql.Rows

EXEC_QUERY:
	if devicePK != nil {
		rows, err = stmt.Query(userID, *devicePK, since.Unix())
	} else {
		rows, err = stmt.Query(userID, since.Unix())
	}

	if err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	// Rows come back ordered by changed, so for a URL that flip-flopped
	// within the window the last state wins.
	var state = make(map[string]bool)
	var order = make([]string, 0, 16)

	for rows.Next() {
		var (
			url     string
			deleted bool
			stamp   int64
			blob    string
		)

		if err = rows.Scan(&url, &deleted, &stamp, &blob); err != nil {
			db.log.Printf("[ERROR] Error scanning subscription row: %s\n",
				err.Error())
			return nil, nil, err
		}

		if _, seen := state[url]; !seen {
			order = append(order, url)
		}
		state[url] = deleted
	}

	add = make([]string, 0, len(order))
	remove = make([]string, 0, len(order))

	for _, url := range order {
		if state[url] {
			remove = append(remove, url)
		} else {
			add = append(add, url)
		}
	}

	return add, remove, nil
} // func (db *Database) subscriptionDelta(...) (add, remove []string, err error)

// SubscriptionAllActive returns all of a User's active subscriptions
// across devices, deduplicated by feed URL.
func (db *Database) SubscriptionAllActive(userID int64) ([]model.Subscription, error) {
	return db.subscriptionActive(query.SubscriptionGetActive, userID, nil)
} // func (db *Database) SubscriptionAllActive(userID int64) ([]model.Subscription, error)

// SubscriptionAllActiveForDevice returns a single device's active
// subscriptions.
func (db *Database) SubscriptionAllActiveForDevice(userID, devicePK int64) ([]model.Subscription, error) {
	return db.subscriptionActive(query.SubscriptionGetActiveDevice, userID, &devicePK)
} // func (db *Database) SubscriptionAllActiveForDevice(userID, devicePK int64) ([]model.Subscription, error)

func (db *Database) subscriptionActive(qid query.ID, userID int64, devicePK *int64) ([]model.Subscription, error) {
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
	if devicePK != nil {
		rows, err = stmt.Query(userID, *devicePK)
	} else {
		rows, err = stmt.Query(userID)
	}

	if err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	var (
		subs = make([]model.Subscription, 0, 16)
		seen = make(map[string]bool)
	)

	for rows.Next() {
		var (
			s    = model.Subscription{UserID: userID}
			blob string
		)

		if err = rows.Scan(&s.URL, &blob); err != nil {
			db.log.Printf("[ERROR] Error scanning subscription row: %s\n",
				err.Error())
			return nil, err
		} else if seen[s.URL] {
			continue
		}

		seen[s.URL] = true

		if s.Data, err = decodeData(blob); err != nil {
			db.log.Printf("[ERROR] Cannot decode metadata of subscription %s: %s\n",
				s.URL,
				err.Error())
			return nil, err
		}

		subs = append(subs, s)
	}

	return subs, nil
} // func (db *Database) subscriptionActive(...) ([]model.Subscription, error)

// SubscriptionApplyDelta applies a client-supplied delta to a device's
// subscription list in a single transaction: every URL in add is
// upserted, every URL in remove is soft-deleted, all stamped with the
// same timestamp, which is returned so the client can use it as its
// next since value.
//
// URLs on both sides of the delta are sanitized in two steps before
// use: surrounding whitespace is trimmed, then anything without an
// http or https scheme is dropped. Each step that changes a URL is
// reported as its own (original, rewritten) pair, with dropped URLs
// mapping to "", so a padded invalid URL yields two pairs.
func (db *Database) SubscriptionApplyDelta(userID, devicePK int64, add, remove []string) (time.Time, [][2]string, error) {
	var (
		err      error
		status   bool
		now      = time.Now()
		rewrites = make([][2]string, 0)
	)

	if db.tx == nil {
		if err = db.Begin(); err != nil {
			return now, nil, err
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

	for _, raw := range add {
		var trimmed, url = sanitizeURL(raw)

		// Trimming and validation are separate steps, each gets its
		// own rewrite pair.
		if trimmed != raw {
			rewrites = append(rewrites, [2]string{raw, trimmed})
		}
		if url != trimmed {
			rewrites = append(rewrites, [2]string{trimmed, url})
		}
		if url == "" {
			continue
		}

		if _, err = db.SubscriptionUpsert(userID, devicePK, url, now, nil); err != nil {
			return now, nil, err
		}
	}

	for _, raw := range remove {
		var trimmed, url = sanitizeURL(raw)

		if trimmed != raw {
			rewrites = append(rewrites, [2]string{raw, trimmed})
		}
		if url != trimmed {
			rewrites = append(rewrites, [2]string{trimmed, url})
		}
		if url == "" {
			continue
		}

		if err = db.SubscriptionSoftDelete(userID, devicePK, url, now); err != nil {
			return now, nil, err
		}
	}

	status = true
	return now, rewrites, nil
} // func (db *Database) SubscriptionApplyDelta(...) (time.Time, [][2]string, error)

// SubscriptionReplace uploads a full subscription list for a device.
// Despite the name - which follows the upload semantics of the simple
// API - the operation is additive: listed feeds are upserted,
// subscriptions missing from the list are left alone.
func (db *Database) SubscriptionReplace(userID, devicePK int64, subs []model.Subscription) (time.Time, error) {
	var (
		err    error
		status bool
		now    = time.Now()
	)

	if db.tx == nil {
		if err = db.Begin(); err != nil {
			return now, err
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

	for _, s := range subs {
		var _, url = sanitizeURL(s.URL)

		if url == "" {
			continue
		}

		if _, err = db.SubscriptionUpsert(userID, devicePK, url, now, s.Data); err != nil {
			return now, err
		}
	}

	status = true
	return now, nil
} // func (db *Database) SubscriptionReplace(userID, devicePK int64, subs []model.Subscription) (time.Time, error)

// sanitizeURL trims surrounding whitespace from a feed URL and checks
// the result for an http or https scheme. It returns the trimmed form
// and the validated form, the latter empty when the scheme check
// fails.
func sanitizeURL(raw string) (string, string) {
	var url = strings.TrimSpace(raw)

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return url, ""
	}

	return url, url
} // func sanitizeURL(raw string) (string, string)

func encodeData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var (
		err  error
		blob []byte
	)

	if blob, err = json.Marshal(data); err != nil {
		return "", err
	}

	return string(blob), nil
} // func encodeData(data map[string]any) (string, error)

func decodeData(blob string) (map[string]any, error) {
	if blob == "" {
		return nil, nil
	}

	var data map[string]any

	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, err
	}

	return data, nil
} // func decodeData(blob string) (map[string]any, error)
