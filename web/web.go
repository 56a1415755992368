// /home/krylon/go/src/github.com/blicero/antenna/web/web.go
// -*- mode: go; coding: utf-8; -*-
// Created on 20. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-28 22:19:46 krylon>

// Package web provides the HTTP interface, i.e. the gpodder API proper,
// the NextCloud-compatible shim, and the settings/sync-devices
// extension.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blicero/antenna/auth"
	"github.com/blicero/antenna/common"
	"github.com/blicero/antenna/database"
	"github.com/blicero/antenna/logdomain"
	"github.com/blicero/antenna/model"
	"github.com/blicero/antenna/session"
	"github.com/faabiosr/cachego"
	csync "github.com/faabiosr/cachego/sync"
	"github.com/gorilla/mux"
)

const (
	poolSize      = 4
	authRealm     = "Antenna"
	sessionMaxAge = int(session.Lifetime / time.Second)
)

// Server wraps the state required for the web interface.
type Server struct {
	Addr     string
	log      *log.Logger
	pool     *database.Pool
	router   *mux.Router
	web      http.Server
	sessions *session.Store
	auth     *auth.Authenticator
	opml     cachego.Cache
}

// Create creates and returns a new Server.
func Create(addr string) (*Server, error) {
	var (
		err error
		srv = &Server{
			Addr: addr,
			opml: csync.New(),
		}
	)

	if srv.log, err = common.GetLogger(logdomain.Web); err != nil {
		fmt.Fprintf(
			os.Stderr,
			"Error creating Logger: %s\n",
			err.Error())
		return nil, err
	} else if srv.pool, err = database.NewPool(poolSize); err != nil {
		srv.log.Printf("[ERROR] Cannot allocate database connection pool: %s\n",
			err.Error())
		return nil, err
	} else if srv.pool == nil {
		srv.log.Printf("[CANTHAPPEN] Database pool is nil!\n")
		return nil, errors.New("Database pool is nil")
	} else if srv.sessions, err = session.Open(); err != nil {
		srv.log.Printf("[ERROR] Cannot open session store: %s\n",
			err.Error())
		srv.pool.Close() // nolint: errcheck
		return nil, err
	} else if srv.auth, err = auth.Create(srv.sessions); err != nil {
		srv.log.Printf("[ERROR] Cannot create Authenticator: %s\n",
			err.Error())
		srv.pool.Close()     // nolint: errcheck
		srv.sessions.Close() // nolint: errcheck
		return nil, err
	}

	srv.router = mux.NewRouter()
	srv.web.Addr = addr
	srv.web.ErrorLog = srv.log
	srv.web.Handler = srv.router

	// gpodder API
	srv.router.HandleFunc("/auth/{username}/login", srv.handleLogin).Methods("POST")
	srv.router.HandleFunc("/auth/{username}/logout", srv.handleLogout).Methods("POST")
	srv.router.HandleFunc("/subscriptions/{username}/{device}", srv.handleSubscriptionsDevice).Methods("GET", "POST")
	srv.router.HandleFunc("/subscriptions/{username}", srv.handleSubscriptionsAll).Methods("GET")
	srv.router.HandleFunc("/subscriptions-simple/{username}/{device}", srv.handleSimpleDevice).Methods("GET", "PUT")
	srv.router.HandleFunc("/subscriptions-simple/{username}", srv.handleSimpleAll).Methods("GET")
	srv.router.HandleFunc("/episodes/{username}", srv.handleEpisodes).Methods("GET", "POST")

	// Device & settings extension
	srv.router.HandleFunc("/devices/{username}", srv.handleDeviceList).Methods("GET")
	srv.router.HandleFunc("/devices/{username}/{device}", srv.handleDeviceUpdate).Methods("POST")
	srv.router.HandleFunc("/sync-devices/{username}", srv.handleSyncDevices).Methods("GET", "POST")
	srv.router.HandleFunc("/settings/{username}/{scope}", srv.handleSettings).Methods("GET", "POST")

	// NextCloud shim
	const ncPrefix = "/index.php/apps/gpoddersync"
	srv.router.HandleFunc(ncPrefix+"/subscriptions", srv.handleNCSubscriptions).Methods("GET")
	srv.router.HandleFunc(ncPrefix+"/subscription_change/create", srv.handleNCSubscriptionChange).Methods("POST")
	srv.router.HandleFunc(ncPrefix+"/episode_action", srv.handleNCEpisodeActions).Methods("GET")
	srv.router.HandleFunc(ncPrefix+"/episode_action/create", srv.handleNCEpisodeCreate).Methods("POST")

	return srv, nil
} // func Create(addr string) (*Server, error)

// ListenAndServe runs the server's  ListenAndServe method
func (srv *Server) ListenAndServe() {
	srv.log.Printf("[DEBUG] Server start listening on %s.\n", srv.Addr)
	defer srv.log.Println("[DEBUG] Server has quit.")
	srv.web.ListenAndServe() // nolint: errcheck
} // func (srv *Server) ListenAndServe()

// Close shuts down the server's support machinery.
func (srv *Server) Close() {
	srv.pool.Close()     // nolint: errcheck
	srv.sessions.Close() // nolint: errcheck
} // func (srv *Server) Close()

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (srv *Server) sendJSON(w http.ResponseWriter, status int, payload any) {
	var rbuf, err = json.Marshal(payload)

	if err != nil {
		srv.log.Printf("[ERROR] Error serializing response: %s\n",
			err.Error())
		srv.sendError(w, 500, "Error serializing response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(status)
	if _, err = w.Write(rbuf); err != nil {
		srv.log.Printf("[ERROR] Failed to send result: %s\n",
			err.Error())
	}
} // func (srv *Server) sendJSON(w http.ResponseWriter, status int, payload any)

func (srv *Server) sendError(w http.ResponseWriter, status int, msg string) {
	var rbuf, err = json.Marshal(&apiError{Code: status, Message: msg})

	if err != nil {
		srv.log.Printf("[ERROR] Error serializing error response: %s\n",
			err.Error())
		rbuf = []byte(`{ "code": 500, "message": "Error serializing error response" }`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	if status == 401 {
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf("Basic realm=%q", authRealm))
	}
	w.WriteHeader(status)
	if _, err = w.Write(rbuf); err != nil {
		srv.log.Printf("[ERROR] Failed to send error response: %s\n",
			err.Error())
	}
} // func (srv *Server) sendError(w http.ResponseWriter, status int, msg string)

// requireUser resolves the request's identity and checks it against the
// username from the request path. On failure the error response has
// already been sent and nil is returned.
func (srv *Server) requireUser(w http.ResponseWriter, r *http.Request, db *database.Database, username string) *model.User {
	// The pool hands out nil when it cannot open another connection.
	if db == nil {
		srv.sendError(w, 500, "Internal error")
		return nil
	}

	var user, err = srv.auth.Require(db, r, username)

	if err == nil {
		return user
	}

	switch {
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, auth.ErrBadCredentials):
		srv.sendError(w, 401, "Authentication required")
	case errors.Is(err, auth.ErrAccessDenied):
		srv.sendError(w, 403, "Access denied")
	default:
		srv.log.Printf("[ERROR] Cannot authenticate request for %s: %s\n",
			r.URL.EscapedPath(),
			err.Error())
		srv.sendError(w, 500, "Internal error")
	}

	return nil
} // func (srv *Server) requireUser(...) *model.User

// sessionCookie builds the session cookie. The name and most attributes
// are pinned by the protocol; Secure is set when the configured base
// URL is https.
func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   strings.HasPrefix(common.BaseURL, "https://"),
	}
} // func sessionCookie(value string, maxAge int) *http.Cookie

// stripFormat splits an optional format suffix (".json", ".txt",
// ".opml") off a path component.
func stripFormat(s string) (string, string) {
	for _, suffix := range []string{".json", ".txt", ".opml"} {
		if strings.HasSuffix(s, suffix) {
			return s[:len(s)-len(suffix)], suffix[1:]
		}
	}

	return s, ""
} // func stripFormat(s string) (string, string)

// parseSince parses the since query parameter, unix seconds. Anything
// unparseable means "everything", i.e. zero.
func parseSince(s string) time.Time {
	var stamp, err = strconv.ParseInt(s, 10, 64)

	if err != nil || stamp < 0 {
		return time.Unix(0, 0)
	}

	return time.Unix(stamp, 0)
} // func parseSince(s string) time.Time

// stampFormats are the timestamp layouts accepted from clients, tried
// in order.
var stampFormats = []string{
	model.TimestampFormat,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000Z07:00",
}

// parseStamp parses a client-supplied timestamp, either an ISO-8601-ish
// string or integer seconds, falling back to fallback on anything it
// cannot make sense of.
func parseStamp(raw any, fallback time.Time) time.Time {
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case string:
		for _, layout := range stampFormats {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(n, 0)
		}
	}

	return fallback
} // func parseStamp(raw any, fallback time.Time) time.Time
