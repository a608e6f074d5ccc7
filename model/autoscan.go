package model

import "time"

// ScanMode names how an AutoscanDirectory is kept in sync (spec §3, §4.G).
type ScanMode string

const (
	ScanTimed   ScanMode = "Timed"
	ScanINotify ScanMode = "INotify"
)

// MediaType is a bitmask over the media classes an AutoscanDirectory cares
// about. -1 (AnyMediaType) means any.
type MediaType int32

const (
	MediaAudio MediaType = 1 << iota
	MediaMusic
	MediaAudioBook
	MediaImage
	MediaVideo
)

const AnyMediaType MediaType = -1

// AutoscanDirectory is a watched subtree (spec §3).
type AutoscanDirectory struct {
	Location        string
	ScanMode        ScanMode
	Recursive       bool
	Hidden          bool
	FollowSymlinks  bool
	Persistent      bool
	Interval        time.Duration // Timed only, >= 1s
	MediaType       MediaType
	ContainerMap    map[MediaType]string // media-mode -> container upnp:class
	ScanID          int // dense; -1 when not installed
	ObjectID        string
	DatabaseID      string
	TaskCount       int
	ActiveScanCount int

	LastModPreviousScan time.Time
	LastModCurrentScan  time.Time
	LastModified        map[string]time.Time // per-subdirectory cursor

	mu retryState
}

// retryState tracks bounded back-off for transient filesystem errors,
// consulted by the autoscan engine (spec §4.G, §7).
type retryState struct {
	Attempts   int
	MaxRetries int
}

func NewAutoscanDirectory(location string, mode ScanMode) *AutoscanDirectory {
	return &AutoscanDirectory{
		Location:     location,
		ScanMode:     mode,
		MediaType:    AnyMediaType,
		ScanID:       -1,
		ContainerMap: map[MediaType]string{},
		LastModified: map[string]time.Time{},
		mu:           retryState{MaxRetries: 5},
	}
}

// Idle reports whether the directory's cursor has fully drained, per
// invariant: taskCount==0 && activeScanCount==0 gates rescheduling the next
// timed tick and advancing LastModPreviousScan.
func (d *AutoscanDirectory) Idle() bool {
	return d.TaskCount == 0 && d.ActiveScanCount == 0
}

// UpdateLMT advances LastModPreviousScan from LastModCurrentScan, but only
// when the directory is idle (spec §4.G invariant).
func (d *AutoscanDirectory) UpdateLMT() {
	if !d.Idle() {
		return
	}
	if d.LastModCurrentScan.After(d.LastModPreviousScan) {
		d.LastModPreviousScan = d.LastModCurrentScan
	}
}

// RecordFailure bumps the retry counter for a transient filesystem error
// (e.g. a directory that failed to open) and reports whether the subtree
// has exhausted its retry budget and should be logged once then skipped
// until the next full rescan (spec §4.G, §7).
func (d *AutoscanDirectory) RecordFailure() (exhausted bool) {
	d.mu.Attempts++
	return d.mu.Attempts > d.mu.MaxRetries
}

// ResetRetries clears the failure counter after a subtree scans cleanly.
func (d *AutoscanDirectory) ResetRetries() {
	d.mu.Attempts = 0
}
