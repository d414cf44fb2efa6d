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

// Package output renders the organized stream hierarchy as an M3U
// playlist file.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/ranker"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

// Write renders groups to path atomically: the document is built in
// full, written to a temp file and swapped in, so readers of the output
// never observe a half-written playlist. Incremental flushes during a
// run reuse the same path safely because of this.
func Write(path string, groups []ranker.CountryGroup) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "# Generated: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("# Organized by country, alphabetically, and by bitrate\n")

	total := 0
	for _, group := range groups {
		fmt.Fprintf(&b, "\n# ===== %s (%d streams) =====\n", group.Country, group.StreamCount())
		for _, channel := range group.Channels {
			for idx, rec := range channel.Streams {
				writeEntry(&b, group.Country, channel.Name, idx, rec)
				total++
			}
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return utils.PrintErrorAndReturn(fmt.Errorf("writing playlist: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return utils.PrintErrorAndReturn(fmt.Errorf("swapping playlist into place: %w", err))
	}
	utils.DebugLog("Wrote %d streams across %d countries to %s", total, len(groups), path)
	return nil
}

// writeEntry emits one #EXTINF directive and its URL. The first stream
// of a channel keeps the bare name; the rest become numbered backups.
func writeEntry(b *strings.Builder, country, channelName string, idx int, rec *types.StreamRecord) {
	b.WriteString("#EXTINF:-1")
	if rec.TvgID != "" {
		fmt.Fprintf(b, " tvg-id=%q", rec.TvgID)
	}
	if rec.LogoURL != "" {
		fmt.Fprintf(b, " tvg-logo=%q", rec.LogoURL)
	}
	fmt.Fprintf(b, " group-title=%q", country)

	name := channelName
	if idx > 0 {
		name = fmt.Sprintf("%s backup %d", channelName, idx)
	}
	fmt.Fprintf(b, ",%s [%s %d kbps]", name, displayResolution(rec), rec.VideoBitrateKbps)
	if rec.ExpiryDate != nil {
		fmt.Fprintf(b, " [Expires: %s]", rec.ExpiryDate.Format("2006-01-02"))
	}
	b.WriteByte('\n')
	b.WriteString(rec.RawURL)
	b.WriteByte('\n')
}

func displayResolution(rec *types.StreamRecord) string {
	if rec.Resolution == "" {
		return "Unknown"
	}
	return rec.Resolution
}
