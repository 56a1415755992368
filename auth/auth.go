// /home/krylon/go/src/github.com/blicero/antenna/auth/auth.go
// -*- mode: go; coding: utf-8; -*-
// Created on 19. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-27 17:56:31 krylon>

// Package auth identifies the User behind an HTTP request, either by
// the session cookie or by HTTP Basic credentials, and enforces that a
// User only ever touches their own data.
package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/blicero/antenna/common"
	"github.com/blicero/antenna/database"
	"github.com/blicero/antenna/logdomain"
	"github.com/blicero/antenna/model"
	"github.com/blicero/antenna/session"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the name of the session cookie, fixed by the gpodder
// protocol.
const CookieName = "sessionid"

// CurrentUser is the username placeholder clients may use in URLs to
// refer to whoever the request is authenticated as.
const CurrentUser = "current"

var (
	ErrNoCredentials  = errors.New("request carries no credentials")
	ErrBadCredentials = errors.New("invalid username or password")
	ErrAccessDenied   = errors.New("access denied")
)

// HashPassword derives the storable hash of a plaintext password.
func HashPassword(plain string) (string, error) {
	var hash, err = bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
} // func HashPassword(plain string) (string, error)

// CheckPassword tells if the plaintext password matches the stored
// hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
} // func CheckPassword(hash, plain string) bool

// Authenticator resolves requests to Users.
type Authenticator struct {
	log      *log.Logger
	sessions *session.Store
}

// Create instantiates an Authenticator on top of the given session
// Store.
func Create(sessions *session.Store) (*Authenticator, error) {
	var (
		err error
		a   = &Authenticator{sessions: sessions}
	)

	if a.log, err = common.GetLogger(logdomain.Auth); err != nil {
		fmt.Fprintf(
			os.Stderr,
			"Failed to create Logger for Authenticator: %s\n",
			err.Error())
		return nil, err
	}

	return a, nil
} // func Create(sessions *session.Store) (*Authenticator, error)

// Identify determines the User behind a request. A valid session
// cookie wins; it never touches the password hash. Otherwise HTTP
// Basic credentials are verified against the stored hash. A request
// carrying neither yields ErrNoCredentials, bad credentials of either
// kind yield ErrBadCredentials.
func (a *Authenticator) Identify(db *database.Database, r *http.Request) (*model.User, error) {
	var (
		err  error
		user *model.User
	)

	if cookie, cerr := r.Cookie(CookieName); cerr == nil && cookie.Value != "" {
		var s *model.Session

		if s, err = a.sessions.Get(cookie.Value); err != nil {
			return nil, err
		} else if s != nil {
			if user, err = db.UserGetByID(s.UserID); err != nil {
				return nil, err
			} else if user != nil {
				return user, nil
			}

			// The session outlived its User, get rid of it.
			a.sessions.Delete(cookie.Value) // nolint: errcheck
		}
	}

	var name, passwd, ok = r.BasicAuth()

	if !ok {
		return nil, ErrNoCredentials
	}

	if user, err = db.UserGetByName(name); err != nil {
		return nil, err
	} else if user == nil || !CheckPassword(user.Password, passwd) {
		a.log.Printf("[INFO] Failed Basic auth attempt for user %q from %s\n",
			name,
			r.RemoteAddr)
		return nil, ErrBadCredentials
	}

	return user, nil
} // func (a *Authenticator) Identify(db *database.Database, r *http.Request) (*model.User, error)

// Require identifies the User behind a request and checks them against
// the username named in the request path. The placeholder "current"
// matches whoever is authenticated; any other mismatch yields
// ErrAccessDenied, regardless of whether the named user exists.
func (a *Authenticator) Require(db *database.Database, r *http.Request, username string) (*model.User, error) {
	var user, err = a.Identify(db, r)

	if err != nil {
		return nil, err
	}

	if username != CurrentUser && username != user.Name {
		a.log.Printf("[INFO] User %s denied access to data of %q\n",
			user.Name,
			username)
		return nil, ErrAccessDenied
	}

	return user, nil
} // func (a *Authenticator) Require(db *database.Database, r *http.Request, username string) (*model.User, error)

// Login verifies a username/password pair and opens a fresh session on
// success.
func (a *Authenticator) Login(db *database.Database, name, passwd string) (*model.User, model.Session, error) {
	var (
		err  error
		user *model.User
		s    model.Session
	)

	if user, err = db.UserGetByName(name); err != nil {
		return nil, s, err
	} else if user == nil || !CheckPassword(user.Password, passwd) {
		a.log.Printf("[INFO] Failed login attempt for user %q\n",
			name)
		return nil, s, ErrBadCredentials
	}

	if s, err = a.sessions.Create(user.ID); err != nil {
		return nil, s, err
	}

	return user, s, nil
} // func (a *Authenticator) Login(db *database.Database, name, passwd string) (*model.User, model.Session, error)

// Logout discards a session. Logging out with an unknown or absent
// token succeeds silently.
func (a *Authenticator) Logout(token string) error {
	if token == "" {
		return nil
	}

	return a.sessions.Delete(token)
} // func (a *Authenticator) Logout(token string) error
