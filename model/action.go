// /home/krylon/go/src/github.com/blicero/antenna/model/action.go
// -*- mode: go; coding: utf-8; -*-
// Created on 11. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-04-09 19:03:21 krylon>

package model

import (
	"fmt"
	"strings"
)

// Action is the kind of event an EpisodeAction records.
type Action uint8

const (
	ActionPlay Action = iota
	ActionDownload
	ActionDelete
	ActionNew
	ActionFlattr
)

func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionDownload:
		return "download"
	case ActionDelete:
		return "delete"
	case ActionNew:
		return "new"
	case ActionFlattr:
		return "flattr"
	default:
		return fmt.Sprintf("Action(%d)", a)
	}
} // func (a Action) String() string

// ParseAction parses an action name, folding case as the protocol
// demands.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "play":
		return ActionPlay, nil
	case "download":
		return ActionDownload, nil
	case "delete":
		return ActionDelete, nil
	case "new":
		return ActionNew, nil
	case "flattr":
		return ActionFlattr, nil
	default:
		return 0, fmt.Errorf("invalid episode action %q", s)
	}
} // func ParseAction(s string) (Action, error)
