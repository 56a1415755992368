// /home/krylon/go/src/github.com/blicero/antenna/database/qdb.go
// -*- mode: go; coding: utf-8; -*-
// Created on 10. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-20 18:55:02 krylon>

package database

import "github.com/blicero/antenna/database/query"

var dbQueries = map[query.ID]string{
	query.UserAdd: `
INSERT INTO users (name, password)
           VALUES (   ?,        ?)
RETURNING id
`,
	query.UserGetByID: `
SELECT
    name,
    password
FROM users
WHERE id = ?
`,
	query.UserGetByName: `
SELECT
    id,
    password
FROM users
WHERE name = ?
`,
	query.UserSetPassword: `
UPDATE users
SET password = ?
WHERE id = ?
`,
	query.DeviceAdd: `
INSERT OR IGNORE INTO devices (user_id, device_id, caption, type)
                       VALUES (      ?,         ?,      '',   '')
`,
	query.DeviceGetByDevID: `
SELECT
    id,
    caption,
    type,
    COALESCE(sync_group, '')
FROM devices
WHERE user_id = ? AND device_id = ?
`,
	query.DeviceGetAll: `
SELECT
    id,
    device_id,
    caption,
    type,
    COALESCE(sync_group, '')
FROM devices
WHERE user_id = ?
ORDER BY device_id
`,
	query.DeviceGetCounted: `
SELECT
    d.id,
    d.device_id,
    d.caption,
    d.type,
    COALESCE(d.sync_group, ''),
    (SELECT COUNT(*) FROM subscriptions s
      WHERE s.device_id = d.id AND s.deleted = 0)
FROM devices d
WHERE d.user_id = ?
ORDER BY d.device_id
`,
	query.DeviceSetCaption: `
UPDATE devices
SET caption = ?
WHERE user_id = ? AND device_id = ?
`,
	query.DeviceSetType: `
UPDATE devices
SET type = ?
WHERE user_id = ? AND device_id = ?
`,
	query.DeviceSetGroup: `
UPDATE devices
SET sync_group = ?
WHERE user_id = ? AND device_id = ?
`,
	query.DeviceClearGroup: `
UPDATE devices
SET sync_group = NULL
WHERE user_id = ? AND device_id = ?
`,
	query.SubscriptionUpsert: `
INSERT INTO subscriptions (user_id, device_id, url, deleted, changed, data)
                   VALUES (      ?,         ?,   ?,       0,       ?,    ?)
ON CONFLICT (user_id, device_id, url) DO UPDATE SET
    deleted = 0,
    changed = excluded.changed,
    data = CASE WHEN excluded.data <> '' THEN excluded.data ELSE data END
RETURNING id
`,
	query.SubscriptionAdd: `
INSERT INTO subscriptions (user_id, device_id, url, deleted, changed, data)
                   VALUES (      ?,         ?,   ?,       0,       ?,   '')
RETURNING id
`,
	query.SubscriptionDelete: `
UPDATE subscriptions
SET deleted = 1,
    changed = ?
WHERE user_id = ? AND device_id = ? AND url = ?
`,
	query.SubscriptionFind: `
SELECT id
FROM subscriptions
WHERE user_id = ? AND url = ?
ORDER BY id
LIMIT 1
`,
	query.SubscriptionGetSince: `
SELECT
    url,
    deleted,
    changed,
    data
FROM subscriptions
WHERE user_id = ? AND device_id = ? AND changed >= ?
ORDER BY changed, id
`,
	query.SubscriptionGetSinceUser: `
SELECT
    url,
    deleted,
    changed,
    data
FROM subscriptions
WHERE user_id = ? AND changed >= ?
ORDER BY changed, id
`,
	query.SubscriptionGetActive: `
SELECT
    url,
    data
FROM subscriptions
WHERE user_id = ? AND deleted = 0
ORDER BY url, id
`,
	query.SubscriptionGetActiveDevice: `
SELECT
    url,
    data
FROM subscriptions
WHERE user_id = ? AND device_id = ? AND deleted = 0
ORDER BY url, id
`,
	query.EpisodeAdd: `
INSERT INTO episode_actions
    (user_id, subscription_id, device_id, episode, action, changed, uploaded_at, position, started, total, data)
VALUES
    (      ?,               ?,         ?,       ?,      ?,       ?,           ?,        ?,       ?,     ?,    ?)
RETURNING id
`,
	query.EpisodeGetSince: `
SELECT
    a.id,
    COALESCE(a.subscription_id, 0),
    COALESCE(a.device_id, 0),
    COALESCE(s.url, ''),
    COALESCE(d.device_id, ''),
    a.episode,
    a.action,
    a.changed,
    a.uploaded_at,
    a.position,
    a.started,
    a.total,
    a.data
FROM episode_actions a
LEFT JOIN subscriptions s ON a.subscription_id = s.id
LEFT JOIN devices d ON a.device_id = d.id
WHERE a.user_id = ? AND a.uploaded_at >= ?
ORDER BY a.id
`,
	query.EpisodeGetSincePodcast: `
SELECT
    a.id,
    COALESCE(a.subscription_id, 0),
    COALESCE(a.device_id, 0),
    COALESCE(s.url, ''),
    COALESCE(d.device_id, ''),
    a.episode,
    a.action,
    a.changed,
    a.uploaded_at,
    a.position,
    a.started,
    a.total,
    a.data
FROM episode_actions a
LEFT JOIN subscriptions s ON a.subscription_id = s.id
LEFT JOIN devices d ON a.device_id = d.id
WHERE a.user_id = ? AND a.uploaded_at >= ? AND s.url = ?
ORDER BY a.id
`,
	query.EpisodeGetSinceDevice: `
SELECT
    a.id,
    COALESCE(a.subscription_id, 0),
    COALESCE(a.device_id, 0),
    COALESCE(s.url, ''),
    COALESCE(d.device_id, ''),
    a.episode,
    a.action,
    a.changed,
    a.uploaded_at,
    a.position,
    a.started,
    a.total,
    a.data
FROM episode_actions a
LEFT JOIN subscriptions s ON a.subscription_id = s.id
LEFT JOIN devices d ON a.device_id = d.id
WHERE a.user_id = ? AND a.uploaded_at >= ? AND d.device_id = ?
ORDER BY a.id
`,
	query.EpisodeGetSincePodcastDevice: `
SELECT
    a.id,
    COALESCE(a.subscription_id, 0),
    COALESCE(a.device_id, 0),
    COALESCE(s.url, ''),
    COALESCE(d.device_id, ''),
    a.episode,
    a.action,
    a.changed,
    a.uploaded_at,
    a.position,
    a.started,
    a.total,
    a.data
FROM episode_actions a
LEFT JOIN subscriptions s ON a.subscription_id = s.id
LEFT JOIN devices d ON a.device_id = d.id
WHERE a.user_id = ? AND a.uploaded_at >= ? AND s.url = ? AND d.device_id = ?
ORDER BY a.id
`,
	query.SettingSet: `
INSERT INTO settings (user_id, scope, scope_id, key, value)
              VALUES (      ?,     ?,        ?,   ?,     ?)
ON CONFLICT (user_id, scope, scope_id, key) DO UPDATE SET
    value = excluded.value
`,
	query.SettingDelete: `
DELETE FROM settings
WHERE user_id = ? AND scope = ? AND scope_id = ? AND key = ?
`,
	query.SettingGetAll: `
SELECT
    key,
    value
FROM settings
WHERE user_id = ? AND scope = ? AND scope_id = ?
ORDER BY key
`,
}
