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

package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/ranker"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
)

func TestWrite(t *testing.T) {
	expiry := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	groups := []ranker.CountryGroup{
		{
			Country: "US",
			Channels: []ranker.Channel{
				{
					Name: "CNN",
					Streams: []*types.StreamRecord{
						{
							Name:             "CNN FHD",
							RawURL:           "http://panel/1.ts",
							TvgID:            "cnn.us",
							LogoURL:          "http://logos/cnn.png",
							Resolution:       "1080p",
							VideoBitrateKbps: 5000,
							ExpiryDate:       &expiry,
						},
						{
							Name:             "CNN HD",
							RawURL:           "http://panel/2.ts",
							Resolution:       "720p",
							VideoBitrateKbps: 3000,
						},
					},
				},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "out.m3u")
	if err := Write(path, groups); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "#EXTM3U\n") {
		t.Error("output must start with #EXTM3U")
	}
	if !strings.Contains(content, "# ===== US (2 streams) =====") {
		t.Errorf("missing country section header:\n%s", content)
	}
	if !strings.Contains(content, `tvg-id="cnn.us"`) {
		t.Error("tvg-id attribute missing")
	}
	if !strings.Contains(content, `group-title="US"`) {
		t.Error("group-title must be the derived country")
	}
	if !strings.Contains(content, ",CNN [1080p 5000 kbps] [Expires: 2026-12-31]") {
		t.Errorf("primary stream line malformed:\n%s", content)
	}
	if !strings.Contains(content, ",CNN backup 1 [720p 3000 kbps]") {
		t.Errorf("backup stream line malformed:\n%s", content)
	}

	// URLs must immediately follow their directives.
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#EXTINF") {
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "http://") {
				t.Errorf("directive at line %d not followed by a URL", i)
			}
		}
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.m3u")

	if err := Write(path, nil); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := Write(path, nil); err != nil {
		t.Fatalf("second Write() error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("got leftover files: %v", names)
	}
}
