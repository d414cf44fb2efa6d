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

package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDump(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.sql")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing dump: %v", err)
	}
	return path
}

func TestPlaylistURLs(t *testing.T) {
	dump := writeDump(t, `
INSERT INTO settings VALUES (1,'http://panel.one:8080/get.php?username=a&password=b&type=m3u_plus&output=ts','x');
INSERT INTO settings VALUES (2,'http://panel.two/playlists/list.m3u8','y');
some noise line without a url
INSERT INTO settings VALUES (3,'http://panel.one:8080/get.php?username=a&password=b&type=m3u_plus&output=ts','dup');
INSERT INTO settings VALUES (4,'https://other.example/get.php?type=ssiptv&u=1','z');
`)

	urls, stats, err := PlaylistURLs(dump)
	if err != nil {
		t.Fatalf("PlaylistURLs() error: %v", err)
	}

	want := []string{
		"http://panel.one:8080/get.php?username=a&password=b&type=m3u_plus&output=ts",
		"http://panel.two/playlists/list.m3u8",
		"https://other.example/get.php?type=ssiptv&u=1",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d: %v", len(urls), len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}

	if stats.TotalMatches != 4 {
		t.Errorf("TotalMatches = %d, want 4 (duplicates counted)", stats.TotalMatches)
	}
	if stats.ByType["m3u_plus"] != 2 {
		t.Errorf("ByType[m3u_plus] = %d, want 2", stats.ByType["m3u_plus"])
	}
	if stats.ByType["direct_m3u"] != 1 {
		t.Errorf("ByType[direct_m3u] = %d, want 1", stats.ByType["direct_m3u"])
	}
}

func TestPlaylistURLsMissingFile(t *testing.T) {
	if _, _, err := PlaylistURLs(filepath.Join(t.TempDir(), "nope.sql")); err == nil {
		t.Fatal("expected error for missing dump file")
	}
}
