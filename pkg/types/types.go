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

package types

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// TaskStatus is the lifecycle state of a playlist task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// StreamStatus is the terminal state of a probed stream.
type StreamStatus string

const (
	StreamWorking StreamStatus = "working"
	StreamFailed  StreamStatus = "failed"
)

// PlaylistTask tracks the processing state of a single playlist URL.
// The URL is the unique key; tasks are only ever status-transitioned,
// never deleted.
type PlaylistTask struct {
	URL          string     `json:"url"`
	Status       TaskStatus `json:"status"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	// Counters recorded on completion.
	Found    int `json:"found,omitempty"`
	Filtered int `json:"filtered,omitempty"`
}

// StreamEntry is a single channel parsed out of a playlist document.
// Entries are ephemeral: they live between the parse and validation
// stages and are never persisted themselves.
type StreamEntry struct {
	Name           string
	LogoURL        string
	GroupTitle     string
	TvgID          string
	RawURL         string
	OriginPlaylist string
	// Subscription expiry of the origin panel, when resolvable.
	Expiry *time.Time
}

// ProbeResult is what the external probe reports for a stream.
type ProbeResult struct {
	Alive            bool
	Codec            string
	Resolution       string
	VideoBitrateKbps int
	FPS              float64
	AudioInfo        string
}

// StreamRecord is the persisted outcome of validating one stream,
// keyed by its fingerprint. Committing the same fingerprint twice
// keeps only the latest result.
type StreamRecord struct {
	Name             string       `json:"name"`
	RawURL           string       `json:"url"`
	Status           StreamStatus `json:"status"`
	Codec            string       `json:"codec,omitempty"`
	Resolution       string       `json:"resolution,omitempty"`
	VideoBitrateKbps int          `json:"video_bitrate_kbps,omitempty"`
	FPS              float64      `json:"fps,omitempty"`
	AudioInfo        string       `json:"audio_info,omitempty"`
	Country          string       `json:"country,omitempty"`
	LogoURL          string       `json:"logo,omitempty"`
	GroupTitle       string       `json:"group_title,omitempty"`
	TvgID            string       `json:"tvg_id,omitempty"`
	ExpiryDate       *time.Time   `json:"expiry_date,omitempty"`
	CheckedAt        time.Time    `json:"checked_at"`
}

// Fingerprint derives the stable identifier of a stream from its display
// name and raw URL. The same channel discovered through different
// playlists maps to the same fingerprint.
func Fingerprint(name, rawURL string) string {
	h := sha3.Sum224([]byte(name + "|" + rawURL))
	return hex.EncodeToString(h[:])
}
