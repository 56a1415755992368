// /home/krylon/go/src/github.com/blicero/antenna/database/03_db_device_test.go
// -*- mode: go; coding: utf-8; -*-
// Created on 27. 01. 2025 by Benjamin Walkenhorst
// (c) 2025 Benjamin Walkenhorst
// Time-stamp: <2025-06-30 10:33:20 krylon>

package database

import (
	"errors"
	"sort"
	"testing"

	"github.com/blicero/antenna/model"
)

func TestDeviceEnsure(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err   error
		alice = users["alice"]
	)

	for _, devID := range []string{"phone", "laptop", "tablet", "desktop"} {
		var d1, d2 *model.Device

		if d1, err = db.DeviceEnsure(alice.ID, devID); err != nil {
			t.Fatalf("Failed to ensure device %s: %s",
				devID,
				err.Error())
		} else if d1.Caption != "" || d1.Type != "" {
			t.Errorf("Fresh device %s should have empty caption and type, got (%q, %q)",
				devID,
				d1.Caption,
				d1.Type)
		} else if d2, err = db.DeviceEnsure(alice.ID, devID); err != nil {
			t.Fatalf("Second ensure of device %s failed: %s",
				devID,
				err.Error())
		} else if d2.ID != d1.ID {
			t.Errorf("Ensure of device %s is not idempotent: %d vs %d",
				devID,
				d1.ID,
				d2.ID)
		}

		devs[devID] = d1
	}

	if _, err = db.DeviceEnsure(alice.ID, "no spaces allowed"); err == nil {
		t.Error("Ensuring a device with an invalid ID should have failed")
	}
} // func TestDeviceEnsure(t *testing.T)

func TestDeviceUpdate(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err     error
		alice   = users["alice"]
		caption = "Alice's phone"
		dtype   = "mobile"
		empty   = ""
	)

	// Patch both fields.
	if err = db.DeviceUpdate(alice.ID, "phone", &caption, &dtype); err != nil {
		t.Fatalf("Failed to update device: %s", err.Error())
	}

	var d *model.Device

	if d, err = db.DeviceGetByDevID(alice.ID, "phone"); err != nil {
		t.Fatalf("Failed to load device: %s", err.Error())
	} else if d.Caption != caption || d.Type != dtype {
		t.Errorf("Device was not updated: got (%q, %q)",
			d.Caption,
			d.Type)
	}

	// A nil field is left alone, an explicit empty string clears.
	if err = db.DeviceUpdate(alice.ID, "phone", &empty, nil); err != nil {
		t.Fatalf("Failed to patch device: %s", err.Error())
	} else if d, err = db.DeviceGetByDevID(alice.ID, "phone"); err != nil {
		t.Fatalf("Failed to load device: %s", err.Error())
	} else if d.Caption != "" {
		t.Errorf("Caption should have been cleared, got %q", d.Caption)
	} else if d.Type != dtype {
		t.Errorf("Type should have been left alone, got %q", d.Type)
	}

	// Updating an unknown device creates it.
	if err = db.DeviceUpdate(alice.ID, "car", &caption, nil); err != nil {
		t.Fatalf("Failed to create device via update: %s", err.Error())
	} else if d, err = db.DeviceGetByDevID(alice.ID, "car"); err != nil {
		t.Fatalf("Failed to load device: %s", err.Error())
	} else if d == nil {
		t.Fatal("Device car was not created")
	} else if d.Caption != caption || d.Type != "" {
		t.Errorf("Created device has unexpected fields (%q, %q)",
			d.Caption,
			d.Type)
	}

	devs["car"] = d
} // func TestDeviceUpdate(t *testing.T)

func TestDeviceSynchronize(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err   error
		alice = users["alice"]
	)

	// phone + laptop form one group, tablet + desktop another.
	if err = db.DeviceSynchronize(alice.ID, [][]string{{"phone", "laptop"}}); err != nil {
		t.Fatalf("Failed to synchronize devices: %s", err.Error())
	} else if err = db.DeviceSynchronize(alice.ID, [][]string{{"tablet", "desktop"}}); err != nil {
		t.Fatalf("Failed to synchronize devices: %s", err.Error())
	}

	var (
		synced [][]string
		loners []string
	)

	if synced, loners, err = db.DeviceSyncStatus(alice.ID); err != nil {
		t.Fatalf("Failed to load sync status: %s", err.Error())
	} else if len(synced) != 2 {
		t.Fatalf("Expected 2 sync groups, got %d", len(synced))
	} else if !sort.StringsAreSorted(loners) {
		t.Error("Ungrouped devices are not sorted")
	}

	// Merging phone with tablet must pull all four devices into one
	// group; car stays out.
	if err = db.DeviceSynchronize(alice.ID, [][]string{{"phone", "tablet"}}); err != nil {
		t.Fatalf("Failed to merge sync groups: %s", err.Error())
	} else if synced, loners, err = db.DeviceSyncStatus(alice.ID); err != nil {
		t.Fatalf("Failed to load sync status: %s", err.Error())
	} else if len(synced) != 1 {
		t.Fatalf("Expected 1 sync group after merge, got %d", len(synced))
	} else if len(synced[0]) != 4 {
		t.Errorf("Merged group has %d members, expected 4: %v",
			len(synced[0]),
			synced[0])
	}

	for _, id := range loners {
		if id == "phone" || id == "laptop" || id == "tablet" || id == "desktop" {
			t.Errorf("Device %s should be in the merged group", id)
		}
	}

	// Unknown devices fail the whole request.
	if err = db.DeviceSynchronize(alice.ID, [][]string{{"phone", "toaster"}}); err == nil {
		t.Error("Synchronizing an unknown device should have failed")
	} else if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %s", err.Error())
	}
} // func TestDeviceSynchronize(t *testing.T)

func TestDeviceStopSync(t *testing.T) {
	if db == nil {
		t.SkipNow()
	}

	var (
		err   error
		alice = users["alice"]
	)

	if err = db.DeviceStopSync(alice.ID, []string{"desktop"}); err != nil {
		t.Fatalf("Failed to stop synchronization: %s", err.Error())
	}

	var (
		synced [][]string
		loners []string
	)

	if synced, loners, err = db.DeviceSyncStatus(alice.ID); err != nil {
		t.Fatalf("Failed to load sync status: %s", err.Error())
	} else if len(synced) != 1 || len(synced[0]) != 3 {
		t.Errorf("Unexpected sync groups after stop: %v", synced)
	}

	var found bool

	for _, id := range loners {
		if id == "desktop" {
			found = true
		}
	}

	if !found {
		t.Errorf("desktop should be ungrouped now: %v", loners)
	}

	if err = db.DeviceStopSync(alice.ID, []string{"toaster"}); err == nil {
		t.Error("Stopping sync on an unknown device should have failed")
	}
} // func TestDeviceStopSync(t *testing.T)
