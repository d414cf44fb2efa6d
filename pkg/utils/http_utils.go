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

package utils

// GetIPTVUserAgent returns the user agent for panel API requests.
// Uses the USER_AGENT environment variable if set, otherwise defaults to "IPTVSmartersPro".
func GetIPTVUserAgent() string {
	return GetEnvOrDefault("USER_AGENT", "IPTVSmartersPro")
}

// GetPlaylistUserAgent returns the user agent for playlist downloads.
// Many providers only serve playlists to media-player agents.
func GetPlaylistUserAgent() string {
	return GetEnvOrDefault("PLAYLIST_USER_AGENT", "VLC/3.0.14 LibVLC/3.0.14")
}
