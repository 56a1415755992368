// /home/krylon/go/src/github.com/blicero/antenna/session/session.go
// -*- mode: go; coding: utf-8; -*-
// Created on 18. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-26 18:33:05 krylon>

// Package session manages login sessions. Sessions live in a small
// BoltDB file separate from the main database, fronted by a fixed-size
// LRU cache so the hot path of request authentication rarely touches
// disk. The cache is purely an optimization; evicting a live session
// only costs a disk read on its next use.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	bt "go.etcd.io/bbolt" // Use the BoltDB backend

	"github.com/blicero/antenna/common"
	"github.com/blicero/antenna/common/path"
	"github.com/blicero/antenna/logdomain"
	"github.com/blicero/antenna/model"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Lifetime is how long a session stays valid after login.
const Lifetime = time.Hour * 24 * 30

// sweepInterval is the number of cache misses between sweeps of the
// persistent store for expired sessions.
const sweepInterval = 100

var bucket = []byte("sessions")

// Store is the two-tier session store.
type Store struct {
	lock   sync.Mutex
	log    *log.Logger
	db     *bt.DB
	cache  *lru.Cache[string, model.Session]
	misses uint64
}

// Open opens the session Store at the application's session file,
// creating it if necessary, and warms the cache with the most recently
// created live sessions.
func Open() (*Store, error) {
	var (
		err error
		st  = new(Store)
	)

	if st.log, err = common.GetLogger(logdomain.Session); err != nil {
		fmt.Fprintf(
			os.Stderr,
			"Failed to create Logger for session Store: %s\n",
			err.Error())
		return nil, err
	} else if st.cache, err = lru.New[string, model.Session](common.SessionCacheSize); err != nil {
		st.log.Printf("[ERROR] Failed to create session cache: %s\n",
			err.Error())
		return nil, err
	} else if st.db, err = bt.Open(common.Path(path.SessionStore), 0600, nil); err != nil {
		st.log.Printf("[ERROR] Failed to open session store at %s: %s\n",
			common.Path(path.SessionStore),
			err.Error())
		return nil, err
	} else if err = st.warm(); err != nil {
		st.db.Close() // nolint: errcheck
		return nil, err
	}

	return st, nil
} // func Open() (*Store, error)

// warm purges expired sessions from disk and preloads the cache with
// the newest surviving ones, oldest first, so the most recent sessions
// end up most-recently-used.
func (st *Store) warm() error {
	var (
		err  error
		now  = time.Now()
		live = make([]model.Session, 0, common.SessionCacheSize)
	)

	err = st.db.Update(func(tx *bt.Tx) error {
		var (
			e error
			b *bt.Bucket
		)

		if b, e = tx.CreateBucketIfNotExists(bucket); e != nil {
			return e
		}

		var stale = make([][]byte, 0)

		e = b.ForEach(func(k, v []byte) error {
			var s model.Session

			if e2 := json.Unmarshal(v, &s); e2 != nil {
				st.log.Printf("[ERROR] Cannot decode session %s: %s\n",
					k,
					e2.Error())
				stale = append(stale, k)
				return nil
			} else if s.IsExpiredAt(now) {
				stale = append(stale, k)
				return nil
			}

			live = append(live, s)
			return nil
		})

		if e != nil {
			return e
		}

		for _, k := range stale {
			if e = b.Delete(k); e != nil {
				return e
			}
		}

		return nil
	})

	if err != nil {
		st.log.Printf("[ERROR] Failed to warm session cache: %s\n",
			err.Error())
		return err
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].Created.Before(live[j].Created)
	})

	if len(live) > common.SessionCacheSize {
		live = live[len(live)-common.SessionCacheSize:]
	}

	for _, s := range live {
		st.cache.Add(s.ID, s)
	}

	st.log.Printf("[DEBUG] Warmed session cache with %d sessions\n",
		len(live))

	return nil
} // func (st *Store) warm() error

// Create opens a new session for the given User and returns it. The
// session ID is an unguessable random token.
func (st *Store) Create(userID int64) (model.Session, error) {
	var (
		err error
		now = time.Now()
		s   = model.Session{
			ID:      uuid.NewString(),
			UserID:  userID,
			Created: now,
			Expires: now.Add(Lifetime),
		}
	)

	if err = st.persist(s); err != nil {
		return model.Session{}, err
	}

	st.cache.Add(s.ID, s)
	return s, nil
} // func (st *Store) Create(userID int64) (model.Session, error)

func (st *Store) persist(s model.Session) error {
	var err = st.db.Update(func(tx *bt.Tx) error {
		var (
			e    error
			blob []byte
		)

		if blob, e = json.Marshal(&s); e != nil {
			return e
		}

		return tx.Bucket(bucket).Put([]byte(s.ID), blob)
	})

	if err != nil {
		st.log.Printf("[ERROR] Failed to store session %s: %s\n",
			s.ID,
			err.Error())
	}

	return err
} // func (st *Store) persist(s model.Session) error

// Get looks up a session by its token. It returns nil if the token is
// unknown or the session has expired; expired sessions are purged on
// the spot.
func (st *Store) Get(token string) (*model.Session, error) {
	var now = time.Now()

	if s, ok := st.cache.Get(token); ok {
		if !s.IsExpiredAt(now) {
			return &s, nil
		}

		if err := st.Delete(token); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var (
		err   error
		found bool
		s     model.Session
	)

	err = st.db.View(func(tx *bt.Tx) error {
		var blob = tx.Bucket(bucket).Get([]byte(token))

		if blob == nil {
			return nil
		}

		found = true
		return json.Unmarshal(blob, &s)
	})

	if err != nil {
		st.log.Printf("[ERROR] Failed to look up session %s: %s\n",
			token,
			err.Error())
		return nil, err
	}

	if found && !s.IsExpiredAt(now) {
		st.cache.Add(token, s)
		return &s, nil
	}

	if found {
		if err = st.Delete(token); err != nil {
			return nil, err
		}
	}

	st.countMiss()
	return nil, nil
} // func (st *Store) Get(token string) (*model.Session, error)

// Delete removes a session from both tiers. Deleting a session that
// does not exist is a no-op.
func (st *Store) Delete(token string) error {
	st.cache.Remove(token)

	var err = st.db.Update(func(tx *bt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(token))
	})

	if err != nil {
		st.log.Printf("[ERROR] Failed to delete session %s: %s\n",
			token,
			err.Error())
	}

	return err
} // func (st *Store) Delete(token string) error

// countMiss tallies cache misses and sweeps the persistent store for
// expired sessions once in a while, so tokens that are never presented
// again do not pile up on disk.
func (st *Store) countMiss() {
	st.lock.Lock()
	st.misses++
	var due = st.misses%sweepInterval == 0
	st.lock.Unlock()

	if !due {
		return
	}

	var err = st.db.Update(func(tx *bt.Tx) error {
		var (
			b     = tx.Bucket(bucket)
			now   = time.Now()
			stale = make([][]byte, 0)
		)

		var e = b.ForEach(func(k, v []byte) error {
			var s model.Session

			if e2 := json.Unmarshal(v, &s); e2 != nil || s.IsExpiredAt(now) {
				stale = append(stale, k)
			}

			return nil
		})

		if e != nil {
			return e
		}

		for _, k := range stale {
			st.cache.Remove(string(k))
			if e = b.Delete(k); e != nil {
				return e
			}
		}

		return nil
	})

	if err != nil {
		st.log.Printf("[ERROR] Session sweep failed: %s\n",
			err.Error())
	}
} // func (st *Store) countMiss()

// Close closes the session Store.
func (st *Store) Close() error {
	st.cache.Purge()
	return st.db.Close()
} // func (st *Store) Close() error
