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

package playlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="cnn.us" tvg-logo="http://logos/cnn.png" group-title="US News",CNN HD
http://panel.one:8080/john/doe/101.ts
#EXTINF:-1 group-title="UK Sports",Sky Sports Main Event
http://panel.one:8080/john/doe/102.ts
#EXTVLCOPT:http-user-agent=Mozilla
#EXTINF:-1,
http://panel.one:8080/john/doe/103.ts
http://panel.one:8080/john/doe/104.ts
#EXTINF:-1 tvg-id="bbc1.uk",BBC One
http://panel.one:8080/john/doe/105.ts
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(samplePlaylist), "http://panel.one:8080/get.php")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	// The nameless entry (103) and the orphan URL (104) are both skipped.
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	first := entries[0]
	if first.Name != "CNN HD" {
		t.Errorf("Name = %q, want %q", first.Name, "CNN HD")
	}
	if first.TvgID != "cnn.us" {
		t.Errorf("TvgID = %q, want %q", first.TvgID, "cnn.us")
	}
	if first.LogoURL != "http://logos/cnn.png" {
		t.Errorf("LogoURL = %q, want %q", first.LogoURL, "http://logos/cnn.png")
	}
	if first.GroupTitle != "US News" {
		t.Errorf("GroupTitle = %q, want %q", first.GroupTitle, "US News")
	}
	if first.RawURL != "http://panel.one:8080/john/doe/101.ts" {
		t.Errorf("RawURL = %q", first.RawURL)
	}
	if first.OriginPlaylist != "http://panel.one:8080/get.php" {
		t.Errorf("OriginPlaylist = %q", first.OriginPlaylist)
	}

	if entries[2].Name != "BBC One" {
		t.Errorf("entries[2].Name = %q, want %q", entries[2].Name, "BBC One")
	}
}

func TestParseEmptyDocument(t *testing.T) {
	entries, err := Parse(strings.NewReader("#EXTM3U\n"), "http://x")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries from empty playlist, want 0", len(entries))
	}
}

func TestFetch(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(samplePlaylist))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 0)
	entries, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
	if !strings.HasPrefix(gotAgent, "VLC/") {
		t.Errorf("User-Agent = %q, want a VLC agent", gotAgent)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 0)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 playlist")
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewFetcher(50*time.Millisecond, 0)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}
