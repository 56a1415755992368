// /home/krylon/go/src/github.com/blicero/antenna/common/common.go
// -*- mode: go; coding: utf-8; -*-
// Created on 09. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-02 18:40:19 krylon>

// Package common provides constants and variables used throughout
// the application.
package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/blicero/antenna/common/path"
	"github.com/blicero/antenna/logdomain"
	"github.com/blicero/krylib"
	"github.com/hashicorp/logutils"
)

// Debug, if set, causes the application to log additional messages.
// AppName is the name of the application, Version its version number.
// TimestampFormat is the format to render timestamps, mainly for
// logging and the web interface.
const (
	Debug           = true
	AppName         = "Antenna"
	Version         = "0.5.1"
	TimestampFormat = "2006-01-02 15:04:05"
	Port            = 3669
)

// BaseURL is the address under which the server is reachable from the
// outside. It determines, among other things, whether session cookies
// are marked Secure.
var BaseURL = fmt.Sprintf("http://localhost:%d/", Port)

// SessionCacheSize is the number of sessions the in-memory cache tier
// will hold at most.
const SessionCacheSize = 1000

// LogLevels are the valid log levels, in ascending order of severity.
var LogLevels = []logutils.LogLevel{
	"TRACE",
	"DEBUG",
	"INFO",
	"WARNING",
	"ERROR",
	"CRITICAL",
	"CANTHAPPEN",
	"SILENT",
}

// MinLogLevel is the minimum level a log message must have to get logged.
var MinLogLevel logutils.LogLevel = "TRACE"

var appPaths = map[path.ID]string{
	path.Base:         fmt.Sprintf(".%s.d", strings.ToLower(AppName)),
	path.Log:          strings.ToLower(AppName) + ".log",
	path.Database:     strings.ToLower(AppName) + ".db",
	path.SessionStore: "sessions.db",
}

var baseDir = filepath.Join(
	os.Getenv("HOME"),
	appPaths[path.Base])

// Path returns the filesystem path of the given application file.
func Path(id path.ID) string {
	if id == path.Base {
		return baseDir
	}

	return filepath.Join(baseDir, appPaths[id])
} // func Path(id path.ID) string

// SetBaseDir sets the directory the application uses to store its
// files, creating it if necessary.
func SetBaseDir(folder string) error {
	fmt.Printf("Setting BaseDir to %s\n", folder)

	baseDir = folder

	if err := InitApp(); err != nil {
		fmt.Printf("Error initializing application environment: %s\n",
			err.Error())
		return err
	}

	return nil
} // func SetBaseDir(folder string) error

// InitApp performs some basic preparations for the application to run.
// It is safe to call multiple times.
func InitApp() error {
	var (
		err    error
		exists bool
	)

	if exists, err = krylib.Fexists(baseDir); err != nil {
		return fmt.Errorf("Error checking if BaseDir %s exists: %s",
			baseDir,
			err.Error())
	} else if !exists {
		if err = os.MkdirAll(baseDir, 0700); err != nil {
			return fmt.Errorf("Error creating BaseDir %s: %s",
				baseDir,
				err.Error())
		}
	}

	return nil
} // func InitApp() error

// GetLogger tries to create a Logger for the given log domain.
func GetLogger(dom logdomain.ID) (*log.Logger, error) {
	var (
		err error
		fh  *os.File
	)

	if err = InitApp(); err != nil {
		return nil, fmt.Errorf("Error initializing application environment: %s",
			err.Error())
	}

	var logName = fmt.Sprintf("%s.%s",
		AppName,
		dom)

	if fh, err = os.OpenFile(Path(path.Log), os.O_RDWR|os.O_APPEND|os.O_CREATE, 0600); err != nil {
		return nil, fmt.Errorf("Error opening log file %s: %s",
			Path(path.Log),
			err.Error())
	}

	var writer = io.MultiWriter(os.Stdout, fh)

	var filter = &logutils.LevelFilter{
		Levels:   LogLevels,
		MinLevel: MinLogLevel,
		Writer:   writer,
	}

	var logger = log.New(filter, logName+" ", log.Ldate|log.Ltime|log.Lshortfile)

	return logger, nil
} // func GetLogger(dom logdomain.ID) (*log.Logger, error)
