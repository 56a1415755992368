// /home/krylon/go/src/github.com/blicero/antenna/database/pool.go
// -*- mode: go; coding: utf-8; -*-
// Created on 16. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-25 21:50:17 krylon>

package database

import (
	"container/list"
	"log"
	"sync"

	"github.com/blicero/antenna/common"
	"github.com/blicero/antenna/common/path"
	"github.com/blicero/antenna/logdomain"
)

// Pool is a pool of database connections. Since each connection opens
// its own set of prepared statements, connections are recycled rather
// than opened per request.
type Pool struct {
	lock   sync.Mutex
	log    *log.Logger
	active *list.List
	cnt    int
}

// NewPool creates a Pool of database connections and eagerly opens cnt
// of them.
func NewPool(cnt int) (*Pool, error) {
	var (
		err  error
		pool = &Pool{
			active: list.New(),
		}
	)

	if pool.log, err = common.GetLogger(logdomain.DBPool); err != nil {
		return nil, err
	}

	for i := 0; i < cnt; i++ {
		var db *Database

		if db, err = Open(common.Path(path.Database)); err != nil {
			pool.log.Printf("[ERROR] Cannot open database connection #%d: %s\n",
				i+1,
				err.Error())
			pool.Close() // nolint: errcheck
			return nil, err
		}

		pool.active.PushBack(db)
		pool.cnt++
	}

	return pool, nil
} // func NewPool(cnt int) (*Pool, error)

// Get returns a connection from the Pool. If the Pool is empty, a fresh
// connection is opened, so Get never blocks; it does return nil when
// opening the extra connection fails.
func (p *Pool) Get() *Database {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.active.Len() > 0 {
		var elt = p.active.Front()
		p.active.Remove(elt)
		return elt.Value.(*Database)
	}

	var (
		err error
		db  *Database
	)

	if db, err = Open(common.Path(path.Database)); err != nil {
		p.log.Printf("[ERROR] Cannot open additional database connection: %s\n",
			err.Error())
		return nil
	}

	p.cnt++
	return db
} // func (p *Pool) Get() *Database

// Put returns a connection to the Pool.
func (p *Pool) Put(db *Database) {
	if db == nil {
		return
	}

	p.lock.Lock()
	p.active.PushBack(db)
	p.lock.Unlock()
} // func (p *Pool) Put(db *Database)

// Close closes all idle connections in the Pool. Connections currently
// handed out by Get are the borrower's problem.
func (p *Pool) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var err error

	for p.active.Len() > 0 {
		var elt = p.active.Front()
		p.active.Remove(elt)

		var db = elt.Value.(*Database)

		if e := db.Close(); e != nil {
			p.log.Printf("[ERROR] Cannot close database connection: %s\n",
				e.Error())
			err = e
		}
	}

	p.cnt = 0
	return err
} // func (p *Pool) Close() error
