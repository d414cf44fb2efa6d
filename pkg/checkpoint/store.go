/*
 * iptv-stream-extractor turns bulk playlist dumps into a single validated,
 * organized IPTV playlist.
 * Copyright (C) 2025  Angelo Azevedo
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package checkpoint persists per-item processing state so an interrupted
// run can resume without repeating work. It is the single source of truth
// for "already done": claims taken here are the only mutual exclusion
// between workers of both pools.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

const (
	playlistFileName = "playlist_progress.json"
	streamFileName   = "stream_check_progress.json"
)

// Options control how existing progress is treated at startup.
type Options struct {
	// ReprocessPlaylists makes completed playlist claims succeed again.
	ReprocessPlaylists bool
	// ReprocessStreams makes terminal stream claims succeed again.
	ReprocessStreams bool
	// ClearProgress starts from an empty store, ignoring existing files.
	ClearProgress bool
}

// Store is a durable keyed record of playlist tasks (by URL) and stream
// results (by fingerprint), held in memory and flushed to two flat JSON
// files with an atomic temp-and-rename swap.
type Store struct {
	dir   string
	runID string
	opts  Options

	playlists *xsync.MapOf[string, *types.PlaylistTask]
	streams   *xsync.MapOf[string, *types.StreamRecord]
	// Stream fingerprints currently being probed. Never persisted: a crash
	// drops the claims, which is exactly the reset-to-pending recovery.
	inFlight *xsync.MapOf[string, struct{}]
}

type playlistSnapshot struct {
	RunID     string                         `json:"run_id"`
	UpdatedAt time.Time                      `json:"updated_at"`
	Playlists map[string]*types.PlaylistTask `json:"playlists"`
}

type streamSnapshot struct {
	RunID     string                         `json:"run_id"`
	UpdatedAt time.Time                      `json:"updated_at"`
	Streams   map[string]*types.StreamRecord `json:"streams"`
}

// New creates a store rooted at dir and loads any existing progress files.
func New(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("creating progress directory: %w", err))
	}
	s := &Store{
		dir:       dir,
		runID:     uuid.NewString(),
		opts:      opts,
		playlists: xsync.NewMapOf[string, *types.PlaylistTask](),
		streams:   xsync.NewMapOf[string, *types.StreamRecord](),
		inFlight:  xsync.NewMapOf[string, struct{}](),
	}
	if opts.ClearProgress {
		utils.InfoLog("Clearing previous progress as requested")
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads both snapshot files. Entries left in-progress by a prior
// crash are reset to pending so they get reclaimed.
func (s *Store) load() error {
	var psnap playlistSnapshot
	if ok, err := readSnapshot(filepath.Join(s.dir, playlistFileName), &psnap); err != nil {
		return err
	} else if ok {
		reset := 0
		for url, task := range psnap.Playlists {
			if task == nil {
				continue
			}
			if task.Status == types.StatusInProgress {
				task.Status = types.StatusPending
				reset++
			}
			s.playlists.Store(url, task)
		}
		utils.InfoLog("Loaded %d playlist tasks (%d reset from in-progress)", s.playlists.Size(), reset)
	}

	var ssnap streamSnapshot
	if ok, err := readSnapshot(filepath.Join(s.dir, streamFileName), &ssnap); err != nil {
		return err
	} else if ok {
		for fp, rec := range ssnap.Streams {
			if rec != nil {
				s.streams.Store(fp, rec)
			}
		}
		utils.InfoLog("Loaded %d previously checked streams", s.streams.Size())
	}
	return nil
}

func readSnapshot(path string, dst interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, utils.PrintErrorAndReturn(fmt.Errorf("reading %s: %w", path, err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// A corrupt snapshot is recoverable: start over rather than abort.
		utils.WarnLog("Could not parse %s, starting fresh: %v", path, err)
		return false, nil
	}
	return true, nil
}

// ClaimPlaylist atomically marks the playlist in-progress and reports
// whether the caller won the claim. Completed playlists stay claimed
// unless reprocessing was requested; failed ones are claimable again on
// a new invocation.
func (s *Store) ClaimPlaylist(url string) bool {
	won := false
	s.playlists.Compute(url, func(old *types.PlaylistTask, loaded bool) (*types.PlaylistTask, bool) {
		if !loaded || old == nil {
			won = true
			return &types.PlaylistTask{
				URL:          url,
				Status:       types.StatusInProgress,
				DiscoveredAt: time.Now(),
			}, false
		}
		switch old.Status {
		case types.StatusInProgress:
			return old, false
		case types.StatusCompleted:
			if !s.opts.ReprocessPlaylists {
				return old, false
			}
		}
		won = true
		upd := *old
		upd.Status = types.StatusInProgress
		return &upd, false
	})
	return won
}

// CommitPlaylist records the terminal state of a playlist task.
func (s *Store) CommitPlaylist(url string, status types.TaskStatus, found, filtered int) {
	s.playlists.Compute(url, func(old *types.PlaylistTask, loaded bool) (*types.PlaylistTask, bool) {
		task := &types.PlaylistTask{URL: url, DiscoveredAt: time.Now()}
		if loaded && old != nil {
			task.DiscoveredAt = old.DiscoveredAt
		}
		task.Status = status
		task.Found = found
		task.Filtered = filtered
		return task, false
	})
}

// PlaylistDone reports whether url already has a completed task, for
// pre-filtering the input set before any claim is attempted.
func (s *Store) PlaylistDone(url string) bool {
	if s.opts.ReprocessPlaylists {
		return false
	}
	task, ok := s.playlists.Load(url)
	return ok && task.Status == types.StatusCompleted
}

// ClaimStream atomically claims a stream fingerprint for probing.
// A fingerprint with a terminal record loses the claim unless stream
// reprocessing was requested; one already being probed always loses.
func (s *Store) ClaimStream(fingerprint string) bool {
	if _, exists := s.streams.Load(fingerprint); exists && !s.opts.ReprocessStreams {
		return false
	}
	if _, taken := s.inFlight.LoadOrStore(fingerprint, struct{}{}); taken {
		return false
	}
	// Re-check after taking the claim: a commit may have landed in between.
	if _, exists := s.streams.Load(fingerprint); exists && !s.opts.ReprocessStreams {
		s.inFlight.Delete(fingerprint)
		return false
	}
	return true
}

// CommitStream persists the terminal result for a fingerprint and
// releases its claim. Overwrites are idempotent: the latest result wins.
func (s *Store) CommitStream(fingerprint string, rec *types.StreamRecord) {
	s.streams.Store(fingerprint, rec)
	s.inFlight.Delete(fingerprint)
}

// ReleaseStream abandons a claim without recording a result, leaving
// the stream claimable again.
func (s *Store) ReleaseStream(fingerprint string) {
	s.inFlight.Delete(fingerprint)
}

// StreamRecordFor returns the persisted record for a fingerprint, if any.
func (s *Store) StreamRecordFor(fingerprint string) (*types.StreamRecord, bool) {
	return s.streams.Load(fingerprint)
}

// WorkingRecords returns all streams with a working terminal status.
func (s *Store) WorkingRecords() []*types.StreamRecord {
	var out []*types.StreamRecord
	s.streams.Range(func(_ string, rec *types.StreamRecord) bool {
		if rec.Status == types.StreamWorking {
			out = append(out, rec)
		}
		return true
	})
	return out
}

// Counts returns the number of tracked playlists and streams.
func (s *Store) Counts() (playlists, streams int) {
	return s.playlists.Size(), s.streams.Size()
}

// Flush durably writes both snapshot files. A failure is reported to the
// caller for logging but the in-memory state stays valid; the next flush
// retries the write.
func (s *Store) Flush() error {
	psnap := playlistSnapshot{
		RunID:     s.runID,
		UpdatedAt: time.Now(),
		Playlists: make(map[string]*types.PlaylistTask, s.playlists.Size()),
	}
	s.playlists.Range(func(url string, task *types.PlaylistTask) bool {
		psnap.Playlists[url] = task
		return true
	})

	ssnap := streamSnapshot{
		RunID:     s.runID,
		UpdatedAt: time.Now(),
		Streams:   make(map[string]*types.StreamRecord, s.streams.Size()),
	}
	s.streams.Range(func(fp string, rec *types.StreamRecord) bool {
		ssnap.Streams[fp] = rec
		return true
	})

	if err := writeSnapshot(filepath.Join(s.dir, playlistFileName), psnap); err != nil {
		return err
	}
	return writeSnapshot(filepath.Join(s.dir, streamFileName), ssnap)
}

// writeSnapshot writes the snapshot fully to a temp file and swaps it in,
// so an interrupted flush never corrupts the previous snapshot.
func writeSnapshot(path string, snap interface{}) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swapping %s: %w", path, err)
	}
	return nil
}

// Close performs the final flush.
func (s *Store) Close() error {
	return s.Flush()
}
