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

package checkpoint

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
)

func newTestStore(t *testing.T, dir string, opts Options) *Store {
	t.Helper()
	s, err := New(dir, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestClaimPlaylistOnlyOneWinner(t *testing.T) {
	s := newTestStore(t, t.TempDir(), Options{})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ClaimPlaylist("http://panel/get.php?type=m3u_plus") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("got %d claim winners, want exactly 1", wins.Load())
	}
}

func TestClaimPlaylistTerminalStates(t *testing.T) {
	tests := []struct {
		name      string
		status    types.TaskStatus
		reprocess bool
		want      bool
	}{
		{"completed stays claimed", types.StatusCompleted, false, false},
		{"completed reclaimable with reprocess", types.StatusCompleted, true, true},
		{"failed is retried on next run", types.StatusFailed, false, true},
		{"pending is claimable", types.StatusPending, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, t.TempDir(), Options{ReprocessPlaylists: tt.reprocess})
			s.CommitPlaylist("http://panel/a", tt.status, 0, 0)
			if got := s.ClaimPlaylist("http://panel/a"); got != tt.want {
				t.Errorf("ClaimPlaylist() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaimStreamDedup(t *testing.T) {
	s := newTestStore(t, t.TempDir(), Options{})
	fp := types.Fingerprint("CNN HD", "http://panel/1.ts")

	if !s.ClaimStream(fp) {
		t.Fatal("first claim should win")
	}
	if s.ClaimStream(fp) {
		t.Error("second claim while in flight should lose")
	}

	s.CommitStream(fp, &types.StreamRecord{Name: "CNN HD", Status: types.StreamWorking})
	if s.ClaimStream(fp) {
		t.Error("claim after terminal commit should lose")
	}
}

func TestCommitStreamKeepsLatest(t *testing.T) {
	s := newTestStore(t, t.TempDir(), Options{ReprocessStreams: true})
	fp := types.Fingerprint("CNN HD", "http://panel/1.ts")

	s.CommitStream(fp, &types.StreamRecord{Name: "CNN HD", Status: types.StreamFailed})
	s.CommitStream(fp, &types.StreamRecord{Name: "CNN HD", Status: types.StreamWorking, VideoBitrateKbps: 4000})

	rec, ok := s.StreamRecordFor(fp)
	if !ok {
		t.Fatal("record missing after commit")
	}
	if rec.Status != types.StreamWorking || rec.VideoBitrateKbps != 4000 {
		t.Errorf("got %+v, want the latest committed result", rec)
	}
}

func TestClaimStreamReprocess(t *testing.T) {
	s := newTestStore(t, t.TempDir(), Options{ReprocessStreams: true})
	fp := types.Fingerprint("CNN HD", "http://panel/1.ts")

	s.CommitStream(fp, &types.StreamRecord{Name: "CNN HD", Status: types.StreamFailed})
	if !s.ClaimStream(fp) {
		t.Error("reprocess mode should allow reclaiming a terminal stream")
	}
}

func TestFlushAndResume(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir, Options{})

	s.CommitPlaylist("http://panel/done", types.StatusCompleted, 100, 40)
	fp := types.Fingerprint("BBC One", "http://panel/2.ts")
	s.ClaimStream(fp)
	s.CommitStream(fp, &types.StreamRecord{
		Name:      "BBC One",
		RawURL:    "http://panel/2.ts",
		Status:    types.StreamWorking,
		CheckedAt: time.Now(),
	})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	resumed := newTestStore(t, dir, Options{})
	if !resumed.PlaylistDone("http://panel/done") {
		t.Error("completed playlist should survive a restart")
	}
	if resumed.ClaimStream(fp) {
		t.Error("checked stream should not be reclaimed after restart")
	}
	if got := len(resumed.WorkingRecords()); got != 1 {
		t.Errorf("got %d working records after resume, want 1", got)
	}
}

func TestLoadResetsInProgressPlaylists(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir, Options{})

	// Claim without committing, then flush: simulates a crash mid-playlist.
	if !s.ClaimPlaylist("http://panel/crashed") {
		t.Fatal("claim should win")
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	resumed := newTestStore(t, dir, Options{})
	if !resumed.ClaimPlaylist("http://panel/crashed") {
		t.Error("in-progress playlist from a crashed run should be claimable again")
	}
}

func TestInFlightStreamsNotPersisted(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir, Options{})

	fp := types.Fingerprint("Sky Sports", "http://panel/3.ts")
	s.ClaimStream(fp)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	resumed := newTestStore(t, dir, Options{})
	if !resumed.ClaimStream(fp) {
		t.Error("in-flight stream claim must not survive a restart")
	}
}

func TestClearProgressIgnoresFiles(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir, Options{})
	s.CommitPlaylist("http://panel/done", types.StatusCompleted, 1, 0)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	fresh := newTestStore(t, dir, Options{ClearProgress: true})
	if fresh.PlaylistDone("http://panel/done") {
		t.Error("clear-progress run must not see previous completions")
	}
}

func TestCorruptSnapshotStartsFresh(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, playlistFileName), []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s := newTestStore(t, dir, Options{})
	if p, _ := s.Counts(); p != 0 {
		t.Errorf("got %d playlists from corrupt snapshot, want 0", p)
	}
}

func TestFlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir, Options{})
	s.CommitPlaylist("http://panel/a", types.StatusCompleted, 1, 0)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading progress dir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
