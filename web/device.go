// /home/krylon/go/src/github.com/blicero/antenna/web/device.go
// -*- mode: go; coding: utf-8; -*-
// Created on 24. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-29 19:05:33 krylon>

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/blicero/antenna/database"
	"github.com/blicero/antenna/model"
	"github.com/gorilla/mux"
)

// handleDeviceList returns a User's devices with their subscription
// counts.
func (srv *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		devices  []database.DeviceCount
		username string
	)

	defer srv.pool.Put(db)

	username, _ = stripFormat(vars["username"])

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	} else if devices, err = db.DeviceGetCounted(user.ID); err != nil {
		srv.log.Printf("[ERROR] Cannot load devices of %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	var list = make([]map[string]any, len(devices))

	for i, d := range devices {
		list[i] = map[string]any{
			"id":            d.DeviceID,
			"caption":       d.Caption,
			"type":          d.Type,
			"subscriptions": d.Subscriptions,
		}
	}

	srv.sendJSON(w, 200, list)
} // func (srv *Server) handleDeviceList(w http.ResponseWriter, r *http.Request)

// handleDeviceUpdate patches a device's caption and/or type. Only keys
// actually present in the body are changed; an explicit empty string is
// a valid new value, a missing key leaves the field alone.
func (srv *Server) handleDeviceUpdate(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		devID    string
		username string
	)

	defer srv.pool.Put(db)

	username, _ = stripFormat(vars["username"])
	devID, _ = stripFormat(vars["device"])

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	} else if !model.DevicePattern.MatchString(devID) {
		srv.sendError(w, 400, fmt.Sprintf("Invalid device ID %q", devID))
		return
	}

	var body map[string]any

	if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
		srv.sendError(w, 400, fmt.Sprintf("Cannot parse request body: %s",
			err.Error()))
		return
	}

	var caption, dtype *string

	if raw, present := body["caption"]; present {
		var s, ok = raw.(string)

		if !ok {
			srv.sendError(w, 400, "caption must be a string")
			return
		}
		caption = &s
	}

	if raw, present := body["type"]; present {
		var s, ok = raw.(string)

		if !ok {
			srv.sendError(w, 400, "type must be a string")
			return
		}
		dtype = &s
	}

	if err = db.DeviceUpdate(user.ID, devID, caption, dtype); err != nil {
		srv.log.Printf("[ERROR] Cannot update device %s of %s: %s\n",
			devID,
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	srv.sendJSON(w, 200, map[string]any{})
} // func (srv *Server) handleDeviceUpdate(w http.ResponseWriter, r *http.Request)

type syncRequest struct {
	Synchronize     [][]string `json:"synchronize"`
	StopSynchronize []string   `json:"stop-synchronize"`
}

// handleSyncDevices reports and manipulates a User's device sync
// groups. A referenced device that does not exist fails the whole
// request before anything is changed.
func (srv *Server) handleSyncDevices(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		username string
	)

	defer srv.pool.Put(db)

	username, _ = stripFormat(vars["username"])

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	}

	if r.Method == "POST" {
		var req syncRequest

		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			srv.sendError(w, 400, fmt.Sprintf("Cannot parse request body: %s",
				err.Error()))
			return
		}

		if len(req.Synchronize) > 0 {
			if err = db.DeviceSynchronize(user.ID, req.Synchronize); err != nil {
				srv.respondSyncError(w, user, err)
				return
			}
		}

		if len(req.StopSynchronize) > 0 {
			if err = db.DeviceStopSync(user.ID, req.StopSynchronize); err != nil {
				srv.respondSyncError(w, user, err)
				return
			}
		}
	}

	var (
		synced [][]string
		loners []string
	)

	if synced, loners, err = db.DeviceSyncStatus(user.ID); err != nil {
		srv.log.Printf("[ERROR] Cannot load sync status of %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	srv.sendJSON(w, 200, map[string]any{
		"synchronized":     synced,
		"not-synchronized": loners,
	})
} // func (srv *Server) handleSyncDevices(w http.ResponseWriter, r *http.Request)

func (srv *Server) respondSyncError(w http.ResponseWriter, user *model.User, err error) {
	if errors.Is(err, database.ErrObjectNotFound) {
		srv.sendError(w, 400, err.Error())
		return
	}

	srv.log.Printf("[ERROR] Cannot update sync groups of %s: %s\n",
		user.Name,
		err.Error())
	srv.sendError(w, 500, "Internal error")
} // func (srv *Server) respondSyncError(w http.ResponseWriter, user *model.User, err error)
