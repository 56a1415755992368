// /home/krylon/go/src/github.com/blicero/antenna/database/query/query.go
// -*- mode: go; coding: utf-8; -*-
// Created on 10. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-05-30 21:11:40 krylon>

// Package query provides symbolic constants to identify database queries.
package query

//go:generate stringer -type=ID

// ID represents a database query
type ID uint8

const (
	UserAdd ID = iota
	UserGetByID
	UserGetByName
	UserSetPassword
	DeviceAdd
	DeviceGetByDevID
	DeviceGetAll
	DeviceGetCounted
	DeviceSetCaption
	DeviceSetType
	DeviceSetGroup
	DeviceClearGroup
	SubscriptionUpsert
	SubscriptionAdd
	SubscriptionDelete
	SubscriptionFind
	SubscriptionGetSince
	SubscriptionGetSinceUser
	SubscriptionGetActive
	SubscriptionGetActiveDevice
	EpisodeAdd
	EpisodeGetSince
	EpisodeGetSincePodcast
	EpisodeGetSinceDevice
	EpisodeGetSincePodcastDevice
	SettingSet
	SettingDelete
	SettingGetAll
)

// AllQueries returns a slice of all queries.
func AllQueries() []ID {
	return []ID{
		UserAdd,
		UserGetByID,
		UserGetByName,
		UserSetPassword,
		DeviceAdd,
		DeviceGetByDevID,
		DeviceGetAll,
		DeviceGetCounted,
		DeviceSetCaption,
		DeviceSetType,
		DeviceSetGroup,
		DeviceClearGroup,
		SubscriptionUpsert,
		SubscriptionAdd,
		SubscriptionDelete,
		SubscriptionFind,
		SubscriptionGetSince,
		SubscriptionGetSinceUser,
		SubscriptionGetActive,
		SubscriptionGetActiveDevice,
		EpisodeAdd,
		EpisodeGetSince,
		EpisodeGetSincePodcast,
		EpisodeGetSinceDevice,
		EpisodeGetSincePodcastDevice,
		SettingSet,
		SettingDelete,
		SettingGetAll,
	}
} // func AllQueries() []ID
