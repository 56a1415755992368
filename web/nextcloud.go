// /home/krylon/go/src/github.com/blicero/antenna/web/nextcloud.go
// -*- mode: go; coding: utf-8; -*-
// Created on 25. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-29 20:14:47 krylon>

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blicero/antenna/auth"
	"github.com/blicero/antenna/database"
	"github.com/blicero/antenna/model"
)

// ncDevice is the device all NextCloud-client subscription changes are
// attributed to; the NextCloud protocol has no device notion of its
// own.
const ncDevice = "nextcloud"

// ncUser authenticates a NextCloud shim request. The shim has no
// username in its paths, whoever the credentials resolve to is the
// user. On failure the error response has already been sent and nil is
// returned.
func (srv *Server) ncUser(w http.ResponseWriter, r *http.Request, db *database.Database) *model.User {
	if db == nil {
		srv.sendError(w, 500, "Internal error")
		return nil
	}

	var user, err = srv.auth.Identify(db, r)

	if err == nil {
		return user
	}

	switch {
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, auth.ErrBadCredentials):
		srv.sendError(w, 401, "Authentication required")
	default:
		srv.log.Printf("[ERROR] Cannot authenticate request for %s: %s\n",
			r.URL.EscapedPath(),
			err.Error())
		srv.sendError(w, 500, "Internal error")
	}

	return nil
} // func (srv *Server) ncUser(w http.ResponseWriter, r *http.Request, db *database.Database) *model.User

// handleNCSubscriptions returns the user-global subscription delta in
// the NextCloud client's wire format.
func (srv *Server) handleNCSubscriptions(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err         error
		db          = srv.pool.Get()
		user        *model.User
		add, remove []string
	)

	defer srv.pool.Put(db)

	if user = srv.ncUser(w, r, db); user == nil {
		return
	}

	var since = parseSince(r.URL.Query().Get("since"))

	if add, remove, err = db.SubscriptionDeltaUser(user.ID, since); err != nil {
		srv.log.Printf("[ERROR] Cannot compute subscription delta for %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	srv.sendJSON(w, 200, map[string]any{
		"add":       add,
		"remove":    remove,
		"timestamp": time.Now().Unix(),
	})
} // func (srv *Server) handleNCSubscriptions(w http.ResponseWriter, r *http.Request)

// handleNCSubscriptionChange applies a subscription delta against the
// pinned nextcloud device.
func (srv *Server) handleNCSubscriptionChange(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err  error
		db   = srv.pool.Get()
		user *model.User
		dev  *model.Device
		req  deltaRequest
	)

	defer srv.pool.Put(db)

	if user = srv.ncUser(w, r, db); user == nil {
		return
	} else if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		srv.sendError(w, 400, fmt.Sprintf("Cannot parse request body: %s",
			err.Error()))
		return
	} else if dev, err = db.DeviceEnsure(user.ID, ncDevice); err != nil {
		srv.log.Printf("[ERROR] Cannot ensure device %s for user %s: %s\n",
			ncDevice,
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	var (
		stamp    time.Time
		rewrites [][2]string
	)

	if stamp, rewrites, err = db.SubscriptionApplyDelta(user.ID, dev.ID, req.Add, req.Remove); err != nil {
		srv.log.Printf("[ERROR] Cannot apply subscription delta for %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	srv.flushOPML()
	srv.sendJSON(w, 200, map[string]any{
		"timestamp":   stamp.Unix(),
		"update_urls": rewrites,
	})
} // func (srv *Server) handleNCSubscriptionChange(w http.ResponseWriter, r *http.Request)

// handleNCEpisodeActions returns the episode action delta in the
// NextCloud client's wire format.
func (srv *Server) handleNCEpisodeActions(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err     error
		db      = srv.pool.Get()
		user    *model.User
		actions []model.EpisodeAction
	)

	defer srv.pool.Put(db)

	if user = srv.ncUser(w, r, db); user == nil {
		return
	}

	var since = parseSince(r.URL.Query().Get("since"))

	if actions, err = db.EpisodeActionQuery(user.ID, since, "", "", false); err != nil {
		srv.log.Printf("[ERROR] Cannot query episode actions of %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	var flat = make([]map[string]any, len(actions))

	for i := range actions {
		flat[i] = actions[i].Flatten()
	}

	srv.sendJSON(w, 200, map[string]any{
		"actions":   flat,
		"timestamp": time.Now().Unix(),
	})
} // func (srv *Server) handleNCEpisodeActions(w http.ResponseWriter, r *http.Request)

// handleNCEpisodeCreate appends episode actions, skipping malformed
// items instead of failing the batch. The NextCloud client retries a
// failed upload forever, so one broken item must not wedge the whole
// sync.
func (srv *Server) handleNCEpisodeCreate(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err  error
		db   = srv.pool.Get()
		user *model.User
		raw  []map[string]any
	)

	defer srv.pool.Put(db)

	if user = srv.ncUser(w, r, db); user == nil {
		return
	} else if raw, err = decodeActionBatch(r); err != nil {
		srv.sendError(w, 400, err.Error())
		return
	}

	var actions = make([]model.EpisodeAction, 0, len(raw))

	for _, obj := range raw {
		var act model.EpisodeAction

		if act, err = parseActionInput(obj); err != nil {
			srv.log.Printf("[DEBUG] Skipping malformed episode action: %s\n",
				err.Error())
			continue
		}

		actions = append(actions, act)
	}

	var stamp time.Time

	if stamp, _, err = db.EpisodeActionAppend(user.ID, actions); err != nil {
		srv.log.Printf("[ERROR] Cannot store episode actions of %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	srv.flushOPML()

	srv.sendJSON(w, 200, map[string]any{
		"timestamp": stamp.Unix(),
	})
} // func (srv *Server) handleNCEpisodeCreate(w http.ResponseWriter, r *http.Request)
