// /home/krylon/go/src/github.com/blicero/antenna/main.go
// -*- mode: go; coding: utf-8; -*-
// Created on 10. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 09:41:26 krylon>

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/blicero/antenna/auth"
	"github.com/blicero/antenna/common"
	"github.com/blicero/antenna/common/path"
	"github.com/blicero/antenna/database"
	"github.com/blicero/antenna/model"
	"github.com/blicero/antenna/web"
	"github.com/hashicorp/logutils"
)

func main() {
	fmt.Printf("%s %s\n",
		common.AppName,
		common.Version)

	var (
		err     error
		srv     *web.Server
		sigq    chan os.Signal
		adduser string
		passwd  string
		minlog  = "DEBUG"
		baseDir = common.Path(path.Base)
		baseURL = common.BaseURL
		addr    = fmt.Sprintf("[::]:%d", common.Port)
	)

	flag.StringVar(&baseDir, "basedir", baseDir, "Path for application-specific files")
	flag.StringVar(&addr, "addr", addr, "Address for the web server to listen on")
	flag.StringVar(&baseURL, "baseurl", baseURL, "URL under which the server is reachable from the outside")
	flag.StringVar(&minlog, "loglevel", minlog, "Minimum level for log messages to be logged")
	flag.StringVar(&adduser, "adduser", "", "Create a user account, as name:password, then exit")
	flag.StringVar(&passwd, "passwd", "", "Reset a user's password, as name:password, then exit")
	flag.Parse()

	common.MinLogLevel = logutils.LogLevel(minlog)
	common.BaseURL = baseURL

	if baseDir != common.Path(path.Base) {
		if err = common.SetBaseDir(baseDir); err != nil {
			fmt.Fprintf(
				os.Stderr,
				"Failed to set Base Directory to %s: %s\n",
				baseDir,
				err.Error())
			os.Exit(1)
		}
	} else if err = common.InitApp(); err != nil {
		fmt.Fprintf(
			os.Stderr,
			"Error initializing application environment: %s\n",
			err.Error())
		os.Exit(2)
	}

	if adduser != "" {
		if err = createUser(adduser); err != nil {
			fmt.Fprintf(
				os.Stderr,
				"Failed to add user: %s\n",
				err.Error())
			os.Exit(2)
		}
		os.Exit(0)
	} else if passwd != "" {
		if err = resetPassword(passwd); err != nil {
			fmt.Fprintf(
				os.Stderr,
				"Failed to reset password: %s\n",
				err.Error())
			os.Exit(2)
		}
		os.Exit(0)
	}

	if srv, err = web.Create(addr); err != nil {
		fmt.Fprintf(
			os.Stderr,
			"Error creating Web server: %s\n",
			err.Error())
		os.Exit(2)
	}

	go srv.ListenAndServe()

	sigq = make(chan os.Signal, 2)

	signal.Notify(sigq, os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)

	for {
		sig := <-sigq

		fmt.Fprintf(
			os.Stderr,
			"Received signal %s, quitting.\n",
			sig)
		srv.Close()
		os.Exit(0)
	}
}

func splitAccount(spec string) (string, string, error) {
	var name, pw, found = strings.Cut(spec, ":")

	if !found || name == "" || pw == "" {
		return "", "", fmt.Errorf("invalid account spec %q, expected name:password",
			spec)
	}

	return name, pw, nil
} // func splitAccount(spec string) (string, string, error)

func createUser(spec string) error {
	var name, pw, err = splitAccount(spec)

	if err != nil {
		return err
	}

	var hash string

	if hash, err = auth.HashPassword(pw); err != nil {
		return err
	}

	var db *database.Database

	if db, err = database.Open(common.Path(path.Database)); err != nil {
		return err
	}

	defer db.Close() // nolint: errcheck

	var user = &model.User{Name: name, Password: hash}

	if err = db.UserAdd(user); err != nil {
		return err
	}

	fmt.Printf("Created user %s (ID %d)\n",
		user.Name,
		user.ID)
	return nil
} // func createUser(spec string) error

func resetPassword(spec string) error {
	var name, pw, err = splitAccount(spec)

	if err != nil {
		return err
	}

	var hash string

	if hash, err = auth.HashPassword(pw); err != nil {
		return err
	}

	var db *database.Database

	if db, err = database.Open(common.Path(path.Database)); err != nil {
		return err
	}

	defer db.Close() // nolint: errcheck

	var user *model.User

	if user, err = db.UserGetByName(name); err != nil {
		return err
	} else if user == nil {
		return fmt.Errorf("no such user %q", name)
	} else if err = db.UserSetPassword(user, hash); err != nil {
		return err
	}

	fmt.Printf("Updated password of user %s\n",
		user.Name)
	return nil
} // func resetPassword(spec string) error
