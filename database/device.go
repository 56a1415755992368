// /home/krylon/go/src/github.com/blicero/antenna/database/device.go
// -*- mode: go; coding: utf-8; -*-
// Created on 11. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-22 18:20:39 krylon>

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/blicero/antenna/database/query"
	"github.com/blicero/antenna/model"
	"github.com/google/uuid"
)

// DeviceCount is a Device together with the number of its active
// subscriptions.
type DeviceCount struct {
	model.Device
	Subscriptions int64
}

// DeviceEnsure returns the Device with the given per-user ID, creating
// it with empty caption and type if it does not exist, yet. The insert
// is an INSERT OR IGNORE followed by a read, so concurrent calls cannot
// produce duplicate rows.
func (db *Database) DeviceEnsure(userID int64, devID string) (*model.Device, error) {
	const qid query.ID = query.DeviceAdd
	var (
		err    error
		msg    string
		stmt   *sql.Stmt
		tx     *sql.Tx
		status bool
	)

	if !model.DevicePattern.MatchString(devID) {
		return nil, ErrInvalidValue
	}

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return nil, err
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
				return nil, errors.New(msg)
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

EXEC_QUERY:
	if _, err = stmt.Exec(userID, devID); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		} else {
			err = fmt.Errorf("Cannot add Device %s to database: %s",
				devID,
				err.Error())
			db.log.Printf("[ERROR] %s\n", err.Error())
			return nil, err
		}
	}

	status = true

	var dev *model.Device

	if dev, err = db.deviceGetByDevID(tx, userID, devID); err != nil {
		return nil, err
	} else if dev == nil {
		// CANTHAPPEN
		db.log.Printf("[CANTHAPPEN] Device %s vanished right after ensure\n",
			devID)
		return nil, ErrObjectNotFound
	}

	return dev, nil
} // func (db *Database) DeviceEnsure(userID int64, devID string) (*model.Device, error)

// DeviceGetByDevID loads a Device by its per-user string ID.
func (db *Database) DeviceGetByDevID(userID int64, devID string) (*model.Device, error) {
	return db.deviceGetByDevID(db.tx, userID, devID)
} // func (db *Database) DeviceGetByDevID(userID int64, devID string) (*model.Device, error)

func (db *Database) deviceGetByDevID(tx *sql.Tx, userID int64, devID string) (*model.Device, error) {
	const qid query.ID = query.DeviceGetByDevID
	var (
		err  error
		msg  string
		stmt *sql.Stmt
	)

	if stmt, err = db.getQuery(qid); err != nil {
		db.log.Printf("[ERROR] Cannot prepare query %s: %s\n",
			qid,
			err.Error())
		return nil, err
	} else if tx != nil {
		stmt = tx.Stmt(stmt)
	}

	var rows *sql.Rows

EXEC_QUERY:
	if rows, err = stmt.Query(userID, devID); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec

	if rows.Next() {
		var d = &model.Device{
			UserID:   userID,
			DeviceID: devID,
		}

		if err = rows.Scan(&d.ID, &d.Caption, &d.Type, &d.SyncGroup); err != nil {
			msg = fmt.Sprintf("Error scanning row for Device %s: %s",
				devID,
				err.Error())
			db.log.Printf("[ERROR] %s\n", msg)
			return nil, errors.New(msg)
		}

		return d, nil
	}

	return nil, nil
} // func (db *Database) deviceGetByDevID(...) (*model.Device, error)

// DeviceGetAll loads all of a User's Devices.
func (db *Database) DeviceGetAll(userID int64) ([]model.Device, error) {
	const qid query.ID = query.DeviceGetAll
	var (
		err  error
		msg  string
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
	if rows, err = stmt.Query(userID); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec
	var devices = make([]model.Device, 0, 4)

	for rows.Next() {
		var d = model.Device{UserID: userID}

		if err = rows.Scan(&d.ID, &d.DeviceID, &d.Caption, &d.Type, &d.SyncGroup); err != nil {
			msg = fmt.Sprintf("Error scanning row for Device: %s",
				err.Error())
			db.log.Printf("[ERROR] %s\n", msg)
			return nil, errors.New(msg)
		}

		devices = append(devices, d)
	}

	return devices, nil
} // func (db *Database) DeviceGetAll(userID int64) ([]model.Device, error)

// DeviceGetCounted loads all of a User's Devices together with their
// active subscription counts.
func (db *Database) DeviceGetCounted(userID int64) ([]DeviceCount, error) {
	const qid query.ID = query.DeviceGetCounted
	var (
		err  error
		msg  string
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
	if rows, err = stmt.Query(userID); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		}

		return nil, err
	}

	defer rows.Close() // nolint: errcheck,gosec
	var devices = make([]DeviceCount, 0, 4)

	for rows.Next() {
		var d = DeviceCount{Device: model.Device{UserID: userID}}

		if err = rows.Scan(&d.ID, &d.DeviceID, &d.Caption, &d.Type, &d.SyncGroup, &d.Subscriptions); err != nil {
			msg = fmt.Sprintf("Error scanning row for Device: %s",
				err.Error())
			db.log.Printf("[ERROR] %s\n", msg)
			return nil, errors.New(msg)
		}

		devices = append(devices, d)
	}

	return devices, nil
} // func (db *Database) DeviceGetCounted(userID int64) ([]DeviceCount, error)

// DeviceUpdate patches a Device, creating it first if it does not
// exist. Only non-nil fields are changed; a pointer to an empty string
// explicitly clears the field, a nil pointer leaves it alone.
func (db *Database) DeviceUpdate(userID int64, devID string, caption, dtype *string) error {
	var (
		err    error
		status bool
	)

	if db.tx == nil {
		if err = db.Begin(); err != nil {
			return err
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

	if _, err = db.DeviceEnsure(userID, devID); err != nil {
		return err
	}

	if caption != nil {
		if err = db.deviceSetField(query.DeviceSetCaption, userID, devID, *caption); err != nil {
			return err
		}
	}

	if dtype != nil {
		if err = db.deviceSetField(query.DeviceSetType, userID, devID, *dtype); err != nil {
			return err
		}
	}

	status = true
	return nil
} // func (db *Database) DeviceUpdate(userID int64, devID string, caption, dtype *string) error

func (db *Database) deviceSetField(qid query.ID, userID int64, devID, value string) error {
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
	if _, err = stmt.Exec(value, userID, devID); err != nil {
		if worthARetry(err) {
			waitForRetry()
			goto EXEC_QUERY
		} else {
			err = fmt.Errorf("Cannot update Device %s: %s",
				devID,
				err.Error())
			db.log.Printf("[ERROR] %s\n", err.Error())
			return err
		}
	}

	return nil
} // func (db *Database) deviceSetField(qid query.ID, userID int64, devID, value string) error

// DeviceSyncStatus groups a User's devices by their sync group. The
// first return value holds the synchronized groups (device IDs sorted
// within each group, groups sorted by their first member), the second
// the devices that are not part of any group.
func (db *Database) DeviceSyncStatus(userID int64) ([][]string, []string, error) {
	var (
		err     error
		devices []model.Device
	)

	if devices, err = db.DeviceGetAll(userID); err != nil {
		return nil, nil, err
	}

	var (
		groups = make(map[string][]string)
		loners = make([]string, 0, len(devices))
	)

	for _, d := range devices {
		if d.SyncGroup == "" {
			loners = append(loners, d.DeviceID)
		} else {
			groups[d.SyncGroup] = append(groups[d.SyncGroup], d.DeviceID)
		}
	}

	var synced = make([][]string, 0, len(groups))

	for _, members := range groups {
		sort.Strings(members)
		synced = append(synced, members)
	}

	sort.Slice(synced, func(i, j int) bool {
		return synced[i][0] < synced[j][0]
	})
	sort.Strings(loners)

	return synced, loners, nil
} // func (db *Database) DeviceSyncStatus(userID int64) ([][]string, []string, error)

// DeviceSynchronize puts each requested group of devices into one
// shared sync group, merging any groups its members already belong to.
// An existing group ID is preferred over minting a fresh one, so
// devices already riding on that group stay synchronized. The whole
// request is validated before anything is changed; an unknown device ID
// fails the entire call.
func (db *Database) DeviceSynchronize(userID int64, groups [][]string) error {
	var (
		err     error
		status  bool
		devices []model.Device
	)

	if db.tx == nil {
		if err = db.Begin(); err != nil {
			return err
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

	if devices, err = db.DeviceGetAll(userID); err != nil {
		return err
	}

	var byID = make(map[string]*model.Device, len(devices))

	for i := range devices {
		byID[devices[i].DeviceID] = &devices[i]
	}

	for _, grp := range groups {
		for _, devID := range grp {
			if _, ok := byID[devID]; !ok {
				return fmt.Errorf("%w: device %q",
					ErrObjectNotFound,
					devID)
			}
		}
	}

	for _, grp := range groups {
		var existing = make([]string, 0, len(grp))

		for _, devID := range grp {
			var g = byID[devID].SyncGroup
			if g != "" && !contains(existing, g) {
				existing = append(existing, g)
			}
		}

		var chosen string

		if len(existing) == 0 {
			chosen = uuid.NewString()
		} else {
			sort.Strings(existing)
			chosen = existing[0]
		}

		// Rewrite every device riding on one of the merged groups,
		// not just the ones named in the request.
		for i := range devices {
			var d = &devices[i]
			if d.SyncGroup != "" && d.SyncGroup != chosen && contains(existing, d.SyncGroup) {
				if err = db.deviceSetField(query.DeviceSetGroup, userID, d.DeviceID, chosen); err != nil {
					return err
				}
				d.SyncGroup = chosen
			}
		}

		for _, devID := range grp {
			if byID[devID].SyncGroup != chosen {
				if err = db.deviceSetField(query.DeviceSetGroup, userID, devID, chosen); err != nil {
					return err
				}
				byID[devID].SyncGroup = chosen
			}
		}
	}

	status = true
	return nil
} // func (db *Database) DeviceSynchronize(userID int64, groups [][]string) error

// DeviceStopSync removes the given devices from their sync groups. Like
// DeviceSynchronize, the request is validated completely before any
// device is touched.
func (db *Database) DeviceStopSync(userID int64, devIDs []string) error {
	var (
		err     error
		status  bool
		devices []model.Device
	)

	if db.tx == nil {
		if err = db.Begin(); err != nil {
			return err
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

	if devices, err = db.DeviceGetAll(userID); err != nil {
		return err
	}

	var known = make(map[string]bool, len(devices))

	for _, d := range devices {
		known[d.DeviceID] = true
	}

	for _, devID := range devIDs {
		if !known[devID] {
			return fmt.Errorf("%w: device %q",
				ErrObjectNotFound,
				devID)
		}
	}

	for _, devID := range devIDs {
		var (
			stmt *sql.Stmt
		)

		if stmt, err = db.getQuery(query.DeviceClearGroup); err != nil {
			return err
		} else if db.tx != nil {
			stmt = db.tx.Stmt(stmt)
		}

	EXEC_QUERY:
		if _, err = stmt.Exec(userID, devID); err != nil {
			if worthARetry(err) {
				waitForRetry()
				goto EXEC_QUERY
			} else {
				err = fmt.Errorf("Cannot clear sync group of Device %s: %s",
					devID,
					err.Error())
				db.log.Printf("[ERROR] %s\n", err.Error())
				return err
			}
		}
	}

	status = true
	return nil
} // func (db *Database) DeviceStopSync(userID int64, devIDs []string) error

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
} // func contains(list []string, s string) bool
