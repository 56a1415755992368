// /home/krylon/go/src/github.com/blicero/antenna/database/episode.go
// -*- mode: go; coding: utf-8; -*-
// Created on 14. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-25 19:41:52 krylon>

package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/blicero/antenna/database/query"
	"github.com/blicero/antenna/model"
)

// EpisodeActionAppend appends a batch of episode actions to the User's
// log in a single transaction. Actions are never deduplicated; the log
// is append-only.
//
// Podcast and episode URLs are sanitized by trimming whitespace, and
// rewritten URLs of either kind are reported back as (original,
// rewritten) pairs. If the user has no subscription for an action's
// podcast yet, a bare subscription row is created on the fly, bound to
// no particular device. An unknown or malformed device name does not
// fail the batch, the action is simply stored without a device
// reference.
//
// All actions receive the same upload timestamp, which is returned for
// the client to use as its next since value.
func (db *Database) EpisodeActionAppend(userID int64, actions []model.EpisodeAction) (time.Time, [][2]string, error) {
	var (
		err      error
		status   bool
		now      = time.Now()
		rewrites = make([][2]string, 0)
		subCache = make(map[string]int64)
		devCache = make(map[string]int64)
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

	for _, act := range actions {
		var (
			podcast = strings.TrimSpace(act.Podcast)
			episode = strings.TrimSpace(act.Episode)
		)

		if podcast != act.Podcast {
			rewrites = append(rewrites, [2]string{act.Podcast, podcast})
		}
		if episode != act.Episode {
			rewrites = append(rewrites, [2]string{act.Episode, episode})
		}
		if podcast == "" || episode == "" {
			return now, nil, ErrInvalidValue
		}

		var subID int64

		if subID = subCache[podcast]; subID == 0 {
			if subID, err = db.SubscriptionFind(userID, podcast); err != nil {
				return now, nil, err
			} else if subID == 0 {
				if subID, err = db.subscriptionAddBare(userID, podcast, now); err != nil {
					return now, nil, err
				}
			}
			subCache[podcast] = subID
		}

		var devID int64

		// Devices are never created as a side effect. An action
		// naming a device the user has not registered is stored
		// without a device reference.
		if model.DevicePattern.MatchString(act.DeviceName) {
			if devID = devCache[act.DeviceName]; devID == 0 {
				var dev *model.Device

				if dev, err = db.DeviceGetByDevID(userID, act.DeviceName); err != nil {
					return now, nil, err
				} else if dev != nil {
					devID = dev.ID
					devCache[act.DeviceName] = devID
				}
			}
		}

		var changed = act.Changed

		if changed.IsZero() {
			changed = now
		}

		if err = db.episodeActionAdd(userID, subID, devID, episode, act.Action, changed, now, act.Position, act.Started, act.Total, act.Extra); err != nil {
			return now, nil, err
		}
	}

	status = true
	return now, rewrites, nil
} // func (db *Database) EpisodeActionAppend(userID int64, actions []model.EpisodeAction) (time.Time, [][2]string, error)

// subscriptionAddBare creates a subscription row without a device
// reference, used when an episode action arrives for a feed the user
// never explicitly subscribed to.
func (db *Database) subscriptionAddBare(userID int64, url string, ts time.Time) (int64, error) {
	const qid query.ID = query.SubscriptionAdd
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
	if rows, err = stmt.Query(userID, nil, url, ts.Unix()); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		db.log.Printf("[ERROR] Cannot add bare subscription %s: %s\n",
			url,
			err.Error())
		return 0, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	if !rows.Next() {
		// CANTHAPPEN
		db.log.Printf("[CANTHAPPEN] Query %s did not return a value\n",
			qid)
		return 0, ErrObjectNotFound
	}

	var id int64

	if err = rows.Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
} // func (db *Database) subscriptionAddBare(userID int64, url string, ts time.Time) (int64, error)

func (db *Database) episodeActionAdd(userID, subID, devID int64, episode string, action model.Action, changed, uploaded time.Time, position, started, total *int64, extra map[string]any) error {
	const qid query.ID = query.EpisodeAdd
	var (
		err  error
		blob string
		stmt *sql.Stmt
	)

	if blob, err = encodeData(extra); err != nil {
		return err
	} else if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return err
	} else if db.tx != nil {
		stmt = db.tx.Stmt(stmt)
	}

	var dev any

	if devID != 0 {
		dev = devID
	}

	var rows *sql.Rows

EXEC_QUERY:
	if rows, err = stmt.Query(userID, subID, dev, episode, action.String(), changed.Unix(), uploaded.Unix(), nullableInt(position), nullableInt(started), nullableInt(total), blob); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		db.log.Printf("[ERROR] Cannot add episode action for %s: %s\n",
			episode,
			err.Error())
		return err
	}

	defer rows.Close() // nolint: errcheck,gosec

	// The INSERT does not execute until the RETURNING row is
	// consumed.
	if !rows.Next() {
		// CANTHAPPEN
		db.log.Printf("[CANTHAPPEN] Query %s did not return a value\n",
			qid)
		return ErrObjectNotFound
	}

	var id int64

	if err = rows.Scan(&id); err != nil {
		return err
	}

	return nil
} // func (db *Database) episodeActionAdd(...) error

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
} // func nullableInt(p *int64) any

// EpisodeActionQuery returns the User's episode actions uploaded at or
// after since, in upload order, optionally restricted to one podcast
// and/or one device. The filter runs on the upload timestamp rather
// than the client-supplied event timestamp, so backdated actions still
// reach every client.
//
// With aggregated set, only the most recent action per episode URL
// survives, judged by the event timestamp with the upload order as
// tie-breaker.
func (db *Database) EpisodeActionQuery(userID int64, since time.Time, podcast, device string, aggregated bool) ([]model.EpisodeAction, error) {
	var (
		err  error
		qid  query.ID
		args []any
	)

	args = append(args, userID, since.Unix())

	switch {
	case podcast != "" && device != "":
		qid = query.EpisodeGetSincePodcastDevice
		args = append(args, podcast, device)
	case podcast != "":
		qid = query.EpisodeGetSincePodcast
		args = append(args, podcast)
	case device != "":
		qid = query.EpisodeGetSinceDevice
		args = append(args, device)
	default:
		qid = query.EpisodeGetSince
	}

	var stmt *sql.Stmt

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
	if rows, err = stmt.Query(args...); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	var acts = make([]model.EpisodeAction, 0, 32)

	for rows.Next() {
		var (
			a                      = model.EpisodeAction{UserID: userID}
			astr, blob             string
			changed, uploaded      int64
			position, start, total sql.NullInt64
		)

		if err = rows.Scan(&a.ID, &a.SubscriptionID, &a.DeviceID, &a.Podcast, &a.DeviceName, &a.Episode, &astr, &changed, &uploaded, &position, &start, &total, &blob); err != nil {
			db.log.Printf("[ERROR] Error scanning episode action row: %s\n",
				err.Error())
			return nil, err
		}

		if a.Action, err = model.ParseAction(astr); err != nil {
			db.log.Printf("[ERROR] Invalid action %q in database: %s\n",
				astr,
				err.Error())
			return nil, err
		}

		a.Changed = time.Unix(changed, 0)
		a.UploadedAt = time.Unix(uploaded, 0)

		if position.Valid {
			a.Position = &position.Int64
		}
		if start.Valid {
			a.Started = &start.Int64
		}
		if total.Valid {
			a.Total = &total.Int64
		}

		if a.Extra, err = decodeData(blob); err != nil {
			db.log.Printf("[ERROR] Cannot decode extra data of episode action %d: %s\n",
				a.ID,
				err.Error())
			return nil, err
		}

		acts = append(acts, a)
	}

	if aggregated {
		acts = aggregateActions(acts)
	}

	return acts, nil
} // func (db *Database) EpisodeActionQuery(...) ([]model.EpisodeAction, error)

// aggregateActions reduces a list of actions to the most recent one per
// episode URL. Input is in upload order, so on equal event timestamps
// the later upload wins.
func aggregateActions(acts []model.EpisodeAction) []model.EpisodeAction {
	var (
		latest = make(map[string]int, len(acts))
		order  = make([]string, 0, len(acts))
	)

	for i, a := range acts {
		if prev, ok := latest[a.Episode]; !ok {
			latest[a.Episode] = i
			order = append(order, a.Episode)
		} else if !acts[prev].Changed.After(a.Changed) {
			latest[a.Episode] = i
		}
	}

	var result = make([]model.EpisodeAction, 0, len(order))

	for _, ep := range order {
		result = append(result, acts[latest[ep]])
	}

	return result
} // func aggregateActions(acts []model.EpisodeAction) []model.EpisodeAction
