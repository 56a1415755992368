// /home/krylon/go/src/github.com/blicero/antenna/web/login.go
// -*- mode: go; coding: utf-8; -*-
// Created on 21. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-28 22:40:18 krylon>

package web

import (
	"net/http"

	"github.com/blicero/antenna/auth"
	"github.com/blicero/antenna/model"
	"github.com/gorilla/mux"
)

// handleLogin mints a session. A request carrying a valid session
// cookie is already logged in; the cookie identity just has to agree
// with the username in the path. The upstream protocol demands a 400 -
// not a 401 or 403 - for that particular mismatch.
func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		username string
		user     *model.User
	)

	defer srv.pool.Put(db)

	if db == nil {
		srv.sendError(w, 500, "Internal error")
		return
	}

	username, _ = stripFormat(vars["username"])

	if cookie, cerr := r.Cookie(auth.CookieName); cerr == nil && cookie.Value != "" {
		var s *model.Session

		if s, err = srv.sessions.Get(cookie.Value); err != nil {
			srv.log.Printf("[ERROR] Cannot look up session: %s\n",
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		} else if s != nil {
			if user, err = db.UserGetByID(s.UserID); err != nil {
				srv.log.Printf("[ERROR] Cannot load User %d: %s\n",
					s.UserID,
					err.Error())
				srv.sendError(w, 500, "Internal error")
				return
			} else if user != nil {
				if username != auth.CurrentUser && username != user.Name {
					srv.sendError(w, 400, "Cookie username mismatch")
					return
				}

				srv.sendJSON(w, 200, map[string]any{})
				return
			}
		}
	}

	var name, passwd, ok = r.BasicAuth()

	if !ok {
		srv.sendError(w, 401, "Authentication required")
		return
	} else if username != auth.CurrentUser && username != name {
		srv.sendError(w, 401, "Username mismatch")
		return
	}

	var s model.Session

	if user, s, err = srv.auth.Login(db, name, passwd); err != nil {
		if err == auth.ErrBadCredentials {
			srv.sendError(w, 401, "Invalid username or password")
		} else {
			srv.log.Printf("[ERROR] Login failed for %q: %s\n",
				name,
				err.Error())
			srv.sendError(w, 500, "Internal error")
		}
		return
	}

	srv.log.Printf("[INFO] User %s logged in\n",
		user.Name)

	http.SetCookie(w, sessionCookie(s.ID, sessionMaxAge))
	srv.sendJSON(w, 200, map[string]any{})
} // func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request)

// handleLogout discards the request's session, if any. Logout always
// succeeds, even without a session.
func (srv *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		username string
	)

	defer srv.pool.Put(db)

	if db == nil {
		srv.sendError(w, 500, "Internal error")
		return
	}

	username, _ = stripFormat(vars["username"])

	if cookie, cerr := r.Cookie(auth.CookieName); cerr == nil && cookie.Value != "" {
		var s *model.Session

		if s, err = srv.sessions.Get(cookie.Value); err != nil {
			srv.log.Printf("[ERROR] Cannot look up session: %s\n",
				err.Error())
		} else if s != nil {
			var user *model.User

			if user, err = db.UserGetByID(s.UserID); err != nil {
				srv.log.Printf("[ERROR] Cannot load User %d: %s\n",
					s.UserID,
					err.Error())
			} else if user == nil || username == auth.CurrentUser || username == user.Name {
				if err = srv.auth.Logout(cookie.Value); err != nil {
					srv.log.Printf("[ERROR] Cannot discard session: %s\n",
						err.Error())
				}
			}
		}
	}

	http.SetCookie(w, sessionCookie("", -1))
	srv.sendJSON(w, 200, map[string]any{})
} // func (srv *Server) handleLogout(w http.ResponseWriter, r *http.Request)
