// /home/krylon/go/src/github.com/blicero/antenna/web/episode.go
// -*- mode: go; coding: utf-8; -*-
// Created on 23. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-29 18:22:54 krylon>

package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blicero/antenna/model"
	"github.com/gorilla/mux"
)

// canonicalActionFields are the episode action keys that live in named
// columns; everything else goes into the extension map. The guid is
// deliberately kept in the map as well.
var canonicalActionFields = map[string]bool{
	"podcast":   true,
	"episode":   true,
	"action":    true,
	"timestamp": true,
	"position":  true,
	"started":   true,
	"total":     true,
	"device":    true,
}

// handleEpisodes serves the episode action log: GET returns actions
// uploaded since a given timestamp, POST appends a batch. The native
// endpoint is strict, one malformed action fails the whole batch before
// anything is written.
func (srv *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
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

	switch r.Method {
	case "GET":
		var (
			query      = r.URL.Query()
			since      = parseSince(query.Get("since"))
			podcast    = query.Get("podcast")
			device     = query.Get("device")
			aggregated = query.Get("aggregated") == "true" || query.Get("aggregated") == "1"
			actions    []model.EpisodeAction
		)

		if actions, err = db.EpisodeActionQuery(user.ID, since, podcast, device, aggregated); err != nil {
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
	case "POST":
		var (
			raw     []map[string]any
			actions []model.EpisodeAction
		)

		if raw, err = decodeActionBatch(r); err != nil {
			srv.sendError(w, 400, err.Error())
			return
		}

		actions = make([]model.EpisodeAction, 0, len(raw))

		for _, obj := range raw {
			var act model.EpisodeAction

			if act, err = parseActionInput(obj); err != nil {
				srv.sendError(w, 400, err.Error())
				return
			}

			actions = append(actions, act)
		}

		var (
			stamp    time.Time
			rewrites [][2]string
		)

		if stamp, rewrites, err = db.EpisodeActionAppend(user.ID, actions); err != nil {
			srv.log.Printf("[ERROR] Cannot store episode actions of %s: %s\n",
				user.Name,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		// Uploads may lazily create subscriptions, so cached OPML
		// exports are stale now.
		srv.flushOPML()

		srv.sendJSON(w, 200, map[string]any{
			"timestamp":   stamp.Unix(),
			"update_urls": rewrites,
		})
	}
} // func (srv *Server) handleEpisodes(w http.ResponseWriter, r *http.Request)

// decodeActionBatch accepts both wire shapes for an action upload, a
// bare array or an object wrapping it in an "actions" member.
func decodeActionBatch(r *http.Request) ([]map[string]any, error) {
	var (
		err error
		raw any
	)

	if err = json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("Cannot parse request body: %s",
			err.Error())
	}

	var items []any

	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		var ok bool

		if items, ok = v["actions"].([]any); !ok {
			return nil, fmt.Errorf("Request body carries no actions array")
		}
	default:
		return nil, fmt.Errorf("Request body is neither an array nor an object")
	}

	var batch = make([]map[string]any, 0, len(items))

	for _, item := range items {
		var obj, ok = item.(map[string]any)

		if !ok {
			return nil, fmt.Errorf("Invalid episode action: %v",
				item)
		}

		batch = append(batch, obj)
	}

	return batch, nil
} // func decodeActionBatch(r *http.Request) ([]map[string]any, error)

// parseActionInput turns one raw action object into an EpisodeAction.
// The action verb is case-folded and validated, the timestamp is parsed
// permissively, and any non-canonical fields (plus the guid) are
// preserved in the extension map.
func parseActionInput(obj map[string]any) (model.EpisodeAction, error) {
	var (
		err error
		act model.EpisodeAction
		ok  bool
	)

	if act.Podcast, ok = obj["podcast"].(string); !ok || act.Podcast == "" {
		return act, fmt.Errorf("Episode action carries no podcast URL")
	} else if act.Episode, ok = obj["episode"].(string); !ok || act.Episode == "" {
		return act, fmt.Errorf("Episode action carries no episode URL")
	}

	var verb string

	if verb, ok = obj["action"].(string); !ok {
		return act, fmt.Errorf("Episode action carries no action")
	} else if act.Action, err = model.ParseAction(verb); err != nil {
		return act, fmt.Errorf("Invalid action %q", verb)
	}

	act.Changed = parseStamp(obj["timestamp"], time.Now())
	act.Position = numField(obj, "position")
	act.Started = numField(obj, "started")
	act.Total = numField(obj, "total")
	act.DeviceName, _ = obj["device"].(string)

	for key, value := range obj {
		if canonicalActionFields[key] {
			continue
		}

		if act.Extra == nil {
			act.Extra = make(map[string]any)
		}
		act.Extra[key] = value
	}

	return act, nil
} // func parseActionInput(obj map[string]any) (model.EpisodeAction, error)

func numField(obj map[string]any, key string) *int64 {
	if f, ok := obj[key].(float64); ok {
		var n = int64(f)
		return &n
	}

	return nil
} // func numField(obj map[string]any, key string) *int64
