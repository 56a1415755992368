// /home/krylon/go/src/github.com/blicero/antenna/web/subscription.go
// -*- mode: go; coding: utf-8; -*-
// Created on 22. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-29 17:32:09 krylon>

package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blicero/antenna/model"
	"github.com/gilliek/go-opml/opml"
	"github.com/gorilla/mux"
)

type deltaRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// handleSubscriptionsDevice is the delta-sync endpoint: GET returns the
// subscription changes for one device since a given timestamp, POST
// applies a batch of changes.
func (srv *Server) handleSubscriptionsDevice(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		dev      *model.Device
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
	} else if dev, err = db.DeviceEnsure(user.ID, devID); err != nil {
		srv.log.Printf("[ERROR] Cannot ensure device %s for user %s: %s\n",
			devID,
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	switch r.Method {
	case "GET":
		var (
			since       = parseSince(r.URL.Query().Get("since"))
			add, remove []string
		)

		if add, remove, err = db.SubscriptionDelta(user.ID, dev.ID, since); err != nil {
			srv.log.Printf("[ERROR] Cannot compute subscription delta for %s/%s: %s\n",
				user.Name,
				devID,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		srv.sendJSON(w, 200, map[string]any{
			"add":         add,
			"remove":      remove,
			"timestamp":   time.Now().Unix(),
			"update_urls": [][2]string{},
		})
	case "POST":
		var req deltaRequest

		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			srv.sendError(w, 400, fmt.Sprintf("Cannot parse request body: %s",
				err.Error()))
			return
		}

		// A URL in both lists is ambiguous, reject before touching
		// anything.
		var removing = make(map[string]bool, len(req.Remove))

		for _, url := range req.Remove {
			removing[url] = true
		}
		for _, url := range req.Add {
			if removing[url] {
				srv.sendError(w, 400,
					fmt.Sprintf("URL %q is in both add and remove", url))
				return
			}
		}

		var (
			stamp    time.Time
			rewrites [][2]string
		)

		if stamp, rewrites, err = db.SubscriptionApplyDelta(user.ID, dev.ID, req.Add, req.Remove); err != nil {
			srv.log.Printf("[ERROR] Cannot apply subscription delta for %s/%s: %s\n",
				user.Name,
				devID,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		srv.flushOPML()
		srv.sendJSON(w, 200, map[string]any{
			"timestamp":   stamp.Unix(),
			"update_urls": rewrites,
		})
	}
} // func (srv *Server) handleSubscriptionsDevice(w http.ResponseWriter, r *http.Request)

// handleSubscriptionsAll returns the active subscriptions across all of
// a User's devices as a bare array of URLs.
func (srv *Server) handleSubscriptionsAll(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		subs     []model.Subscription
		username string
	)

	defer srv.pool.Put(db)

	username, _ = stripFormat(vars["username"])

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	} else if subs, err = db.SubscriptionAllActive(user.ID); err != nil {
		srv.log.Printf("[ERROR] Cannot load subscriptions of %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	var urls = make([]string, len(subs))

	for i, s := range subs {
		urls[i] = s.URL
	}

	srv.sendJSON(w, 200, urls)
} // func (srv *Server) handleSubscriptionsAll(w http.ResponseWriter, r *http.Request)

// handleSimpleDevice is the per-device half of the simple API: PUT
// uploads a subscription list (additive, despite the verb - legacy
// clients depend on that), GET returns the device's active feeds in the
// requested format.
func (srv *Server) handleSimpleDevice(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		dev      *model.Device
		devID    string
		format   string
		username string
	)

	defer srv.pool.Put(db)

	username, _ = stripFormat(vars["username"])
	devID, format = stripFormat(vars["device"])
	if format == "" {
		format = "json"
	}

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	} else if !model.DevicePattern.MatchString(devID) {
		srv.sendError(w, 400, fmt.Sprintf("Invalid device ID %q", devID))
		return
	} else if dev, err = db.DeviceEnsure(user.ID, devID); err != nil {
		srv.log.Printf("[ERROR] Cannot ensure device %s for user %s: %s\n",
			devID,
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	switch r.Method {
	case "PUT":
		var (
			body []byte
			subs []model.Subscription
		)

		if body, err = io.ReadAll(r.Body); err != nil {
			srv.sendError(w, 400, fmt.Sprintf("Cannot read request body: %s",
				err.Error()))
			return
		} else if subs, err = parseSubscriptionUpload(body, format); err != nil {
			srv.sendError(w, 400, err.Error())
			return
		}

		if _, err = db.SubscriptionReplace(user.ID, dev.ID, subs); err != nil {
			srv.log.Printf("[ERROR] Cannot store subscriptions for %s/%s: %s\n",
				user.Name,
				devID,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		srv.flushOPML()
		srv.sendJSON(w, 200, map[string]any{})
	case "GET":
		var subs []model.Subscription

		if subs, err = db.SubscriptionAllActiveForDevice(user.ID, dev.ID); err != nil {
			srv.log.Printf("[ERROR] Cannot load subscriptions of %s/%s: %s\n",
				user.Name,
				devID,
				err.Error())
			srv.sendError(w, 500, "Internal error")
			return
		}

		srv.sendSubscriptionList(w, subs, format,
			fmt.Sprintf("%d/%s", user.ID, devID))
	}
} // func (srv *Server) handleSimpleDevice(w http.ResponseWriter, r *http.Request)

// handleSimpleAll returns all of a User's active feeds in the requested
// format.
func (srv *Server) handleSimpleAll(w http.ResponseWriter, r *http.Request) {
	srv.log.Printf("[TRACE] Handle request for %s from %s\n",
		r.URL.EscapedPath(),
		r.RemoteAddr)

	var (
		err      error
		db       = srv.pool.Get()
		vars     = mux.Vars(r)
		user     *model.User
		subs     []model.Subscription
		format   string
		username string
	)

	defer srv.pool.Put(db)

	username, format = stripFormat(vars["username"])
	if format == "" {
		format = "json"
	}

	if user = srv.requireUser(w, r, db, username); user == nil {
		return
	} else if subs, err = db.SubscriptionAllActive(user.ID); err != nil {
		srv.log.Printf("[ERROR] Cannot load subscriptions of %s: %s\n",
			user.Name,
			err.Error())
		srv.sendError(w, 500, "Internal error")
		return
	}

	srv.sendSubscriptionList(w, subs, format,
		fmt.Sprintf("%d/all", user.ID))
} // func (srv *Server) handleSimpleAll(w http.ResponseWriter, r *http.Request)

// sendSubscriptionList renders a subscription list as JSON, plain text,
// or OPML. Rendered OPML documents are cached until the next
// subscription write.
func (srv *Server) sendSubscriptionList(w http.ResponseWriter, subs []model.Subscription, format, cacheKey string) {
	switch format {
	case "json":
		var urls = make([]string, len(subs))

		for i, s := range subs {
			urls[i] = s.URL
		}

		srv.sendJSON(w, 200, urls)
	case "txt":
		var buf strings.Builder

		for _, s := range subs {
			buf.WriteString(s.URL)
			buf.WriteString("\n")
		}

		srv.sendRaw(w, 200, "text/plain; charset=utf-8", buf.String())
	case "opml":
		var doc string

		if cached, err := srv.opml.Fetch(cacheKey); err == nil && cached != "" {
			doc = cached
		} else {
			doc = renderOPML(subs)
			if err = srv.opml.Save(cacheKey, doc, 0); err != nil {
				srv.log.Printf("[ERROR] Cannot cache OPML document: %s\n",
					err.Error())
			}
		}

		srv.sendRaw(w, 200, "text/x-opml; charset=utf-8", doc)
	default:
		srv.sendError(w, 400, fmt.Sprintf("Unknown format %q", format))
	}
} // func (srv *Server) sendSubscriptionList(...)

func (srv *Server) sendRaw(w http.ResponseWriter, status int, ctype, body string) {
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		srv.log.Printf("[ERROR] Failed to send result: %s\n",
			err.Error())
	}
} // func (srv *Server) sendRaw(w http.ResponseWriter, status int, ctype, body string)

func (srv *Server) flushOPML() {
	if err := srv.opml.Flush(); err != nil {
		srv.log.Printf("[ERROR] Cannot flush OPML cache: %s\n",
			err.Error())
	}
} // func (srv *Server) flushOPML()

// parseSubscriptionUpload parses the body of a simple-API upload in one
// of its three formats.
func parseSubscriptionUpload(body []byte, format string) ([]model.Subscription, error) {
	var subs = make([]model.Subscription, 0, 16)

	switch format {
	case "txt":
		for _, line := range strings.Split(string(body), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				subs = append(subs, model.Subscription{URL: line})
			}
		}
	case "opml":
		var doc, err = opml.NewOPML(body)

		if err != nil {
			return nil, fmt.Errorf("Cannot parse OPML document: %s",
				err.Error())
		}

		subs = collectOutlines(doc.Body.Outlines, subs)
	case "json":
		var items []any

		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("Cannot parse request body: %s",
				err.Error())
		}

		for _, item := range items {
			switch v := item.(type) {
			case string:
				subs = append(subs, model.Subscription{URL: v})
			case map[string]any:
				var s model.Subscription

				if url, ok := v["feed"].(string); ok {
					s.URL = url
				} else if url, ok := v["url"].(string); ok {
					s.URL = url
				} else {
					return nil, fmt.Errorf("Subscription object carries no feed URL: %v",
						v)
				}

				if title, ok := v["title"].(string); ok && title != "" {
					s.Data = map[string]any{"title": title}
				}

				subs = append(subs, s)
			default:
				return nil, fmt.Errorf("Invalid subscription entry: %v",
					item)
			}
		}
	default:
		return nil, fmt.Errorf("Unknown format %q", format)
	}

	return subs, nil
} // func parseSubscriptionUpload(body []byte, format string) ([]model.Subscription, error)

func collectOutlines(outlines []opml.Outline, subs []model.Subscription) []model.Subscription {
	for _, o := range outlines {
		if o.XMLURL != "" {
			var s = model.Subscription{URL: o.XMLURL}

			if o.Title != "" {
				s.Data = map[string]any{"title": o.Title}
			} else if o.Text != "" {
				s.Data = map[string]any{"title": o.Text}
			}

			subs = append(subs, s)
		}

		subs = collectOutlines(o.Outlines, subs)
	}

	return subs
} // func collectOutlines(outlines []opml.Outline, subs []model.Subscription) []model.Subscription

// renderOPML renders subscriptions as an OPML 1.0 document. The exact
// entity escaping of & and " in the attributes is part of the wire
// contract, hence the hand-built document.
func renderOPML(subs []model.Subscription) string {
	var buf strings.Builder

	buf.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	buf.WriteString("<opml version=\"1.0\">\n")
	buf.WriteString("  <head>\n    <title>Antenna subscriptions</title>\n  </head>\n")
	buf.WriteString("  <body>\n")

	for _, s := range subs {
		var (
			url   = opmlEscape(s.URL)
			title = opmlEscape(s.Title())
		)

		fmt.Fprintf(&buf,
			"    <outline text=\"%s\" title=\"%s\" type=\"rss\" xmlUrl=\"%s\" />\n",
			title,
			title,
			url)
	}

	buf.WriteString("  </body>\n</opml>\n")
	return buf.String()
} // func renderOPML(subs []model.Subscription) string

func opmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	return strings.ReplaceAll(s, `"`, "&quot;")
} // func opmlEscape(s string) string
