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

// Package playlist downloads M3U playlists and parses their entries.
package playlist

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/ratelimit"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

// attributePattern matches key="value" pairs on an #EXTINF line.
var attributePattern = regexp.MustCompile(`([a-zA-Z0-9_-]+)="([^"]*)"`)

// Fetcher downloads playlists with a shared client and an optional
// global pace on requests across all workers.
type Fetcher struct {
	client  *http.Client
	limiter ratelimit.Limiter
}

// NewFetcher builds a fetcher with the given per-download timeout.
// maxPerSec caps playlist downloads per second across all workers;
// 0 means unpaced.
func NewFetcher(timeout time.Duration, maxPerSec int) *Fetcher {
	limiter := ratelimit.NewUnlimited()
	if maxPerSec > 0 {
		limiter = ratelimit.New(maxPerSec)
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
				MaxIdleConnsPerHost: 4,
			},
		},
		limiter: limiter,
	}
}

// Fetch downloads the playlist at url and parses it. Entries that
// cannot be parsed are skipped, never fatal: one broken line must not
// discard an otherwise good playlist.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]*types.StreamEntry, error) {
	f.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("building playlist request: %w", err))
	}
	req.Header.Set("User-Agent", utils.GetPlaylistUserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist returned status %d", resp.StatusCode)
	}

	entries, err := Parse(resp.Body, url)
	if err != nil {
		return nil, err
	}
	utils.DebugLog("Parsed %d entries from %s", len(entries), utils.MaskURL(url))
	return entries, nil
}

// Parse reads an M3U document and returns its entries. The origin URL is
// recorded on every entry so results can be traced back to their panel.
func Parse(r io.Reader, origin string) ([]*types.StreamEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var entries []*types.StreamEntry
	var pending *types.StreamEntry

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line == "#EXTM3U" || strings.HasPrefix(line, "#EXTM3U "):
			continue
		case strings.HasPrefix(line, "#EXTINF"):
			pending = parseExtInf(line, origin)
		case strings.HasPrefix(line, "#"):
			// Other directives (#EXTVLCOPT and friends) are irrelevant here.
			continue
		default:
			if pending == nil {
				// A bare URL without its #EXTINF line; nothing to name it by.
				continue
			}
			pending.RawURL = line
			entries = append(entries, pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	return entries, nil
}

// parseExtInf extracts the attributes and display name from one
// #EXTINF line. Returns nil when the line carries no usable name.
func parseExtInf(line, origin string) *types.StreamEntry {
	entry := &types.StreamEntry{OriginPlaylist: origin}

	for _, m := range attributePattern.FindAllStringSubmatch(line, -1) {
		switch strings.ToLower(m[1]) {
		case "tvg-id":
			entry.TvgID = m[2]
		case "tvg-logo":
			entry.LogoURL = m[2]
		case "group-title":
			entry.GroupTitle = m[2]
		}
	}

	// The display name follows the last comma of the directive.
	if idx := strings.LastIndex(line, ","); idx >= 0 && idx < len(line)-1 {
		entry.Name = strings.TrimSpace(line[idx+1:])
	}
	if entry.Name == "" {
		return nil
	}
	return entry
}
