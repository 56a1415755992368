// /home/krylon/go/src/github.com/blicero/antenna/web/setting.go
// -*- mode: go; coding: utf-8; -*-
// Created on 24. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-29 19:31:02 krylon>

package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blicero/antenna/model"
	"github.com/gorilla/mux"
)

type settingsRequest struct {
	Set    map[string]json.RawMessage `json:"set"`
	Remove []string                   `json:"remove"`
}

// handleSettings serves the per-scope settings store. The non-account
// scopes each require their query parameter naming the scoped object,
// e.g. ?device=phone for device scope.
func (srv *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		scope    model.Scope
		scopeID  string
		username string
	)

	defer srv.pool.Put(db)

	username, _ = stripFormat(vars["username"])

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	} else if scope, err = model.ParseScope(vars["scope"]); err != nil {
		srv.sendError(w, 400, fmt.Sprintf("Invalid scope %q", vars["scope"]))
		return
	}

	if param := scope.Param(); param != "" {
		if scopeID = r.URL.Query().Get(param); scopeID == "" {
			srv.sendError(w, 400,
				fmt.Sprintf("Scope %s requires the %s query parameter",
					scope,
					param))
			return
		}
	}

	switch r.Method {
	case "GET":
		var settings map[string]json.RawMessage

		if settings, err = db.SettingGetAll(user.ID, scope, scopeID); err != nil {
			srv.log.Printf("[ERROR] Cannot load %s settings of %s: %s\n",
				scope,
				user.Name,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		srv.sendJSON(w, 200, settings)
	case "POST":
		var req settingsRequest

		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			srv.sendError(w, 400, fmt.Sprintf("Cannot parse request body: %s",
				err.Error()))
			return
		}

		var settings map[string]json.RawMessage

		if settings, err = db.SettingApply(user.ID, scope, scopeID, req.Set, req.Remove); err != nil {
			srv.log.Printf("[ERROR] Cannot update %s settings of %s: %s\n",
				scope,
				user.Name,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		srv.sendJSON(w, 200, settings)
	}
} // func (srv *Server) handleSettings(w http.ResponseWriter, r *http.Request)
