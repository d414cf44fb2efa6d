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

// Package extract locates playlist URLs inside a raw database dump.
// The dump is scanned line by line so multi-gigabyte SQL exports never
// have to fit in memory.
package extract

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

// playlistURLPattern matches M3U/IPTV playlist URLs: either an explicit
// playlist type query parameter or a bare .m3u/.m3u8 path.
var playlistURLPattern = regexp.MustCompile(
	`(?i)(https?://[^\s',\)]+(?:` +
		`type=(?:m3u[_\-]?(?:plus?|plu[ts]?|pl[a-z]*)?|ss(?:iptv)?|smart(?:_iptv)?|enigma|dreambox|ottplayer|webtvlist|gigablue|simple|ts|hls|xml|tvg_plus|adv_[a-z_]+|[a-z0-9_\-]*m3u[a-z0-9_\-]*)` +
		`|\.m3u8?` +
		`)[^\s',\)]*)`)

var typeParamPattern = regexp.MustCompile(`(?i)type=([^&\s'"]+)`)

// Stats summarizes one extraction pass.
type Stats struct {
	LinesScanned int
	TotalMatches int
	ByType       map[string]int
}

// PlaylistURLs scans the dump at path and returns the deduplicated
// playlist URL set in first-seen order.
func PlaylistURLs(path string) ([]string, *Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, utils.PrintErrorAndReturn(fmt.Errorf("opening dump: %w", err))
	}
	defer f.Close()

	stats := &Stats{ByType: make(map[string]int)}
	seen := make(map[string]struct{})
	var urls []string

	scanner := bufio.NewScanner(f)
	// SQL dumps routinely pack whole tables into one INSERT line.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		stats.LinesScanned++
		for _, match := range playlistURLPattern.FindAllString(scanner.Text(), -1) {
			stats.TotalMatches++
			stats.ByType[classify(match)]++
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			urls = append(urls, match)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, utils.PrintErrorAndReturn(fmt.Errorf("scanning dump: %w", err))
	}

	utils.InfoLog("Extracted %d unique playlist URLs (%d matches) from %d lines",
		len(urls), stats.TotalMatches, stats.LinesScanned)
	return urls, stats, nil
}

func classify(url string) string {
	if m := typeParamPattern.FindStringSubmatch(url); m != nil {
		return strings.ToLower(m[1])
	}
	if strings.Contains(strings.ToLower(url), ".m3u") {
		return "direct_m3u"
	}
	return "other"
}
