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

import "testing"

func TestGetEnvOrDefault(t *testing.T) {
	if got := GetEnvOrDefault("IPTV_EXTRACTOR_UNSET_VAR", "fallback"); got != "fallback" {
		t.Errorf("unset var: got %q, want %q", got, "fallback")
	}

	t.Setenv("IPTV_EXTRACTOR_SET_VAR", "value")
	if got := GetEnvOrDefault("IPTV_EXTRACTOR_SET_VAR", "fallback"); got != "value" {
		t.Errorf("set var: got %q, want %q", got, "value")
	}
}

func TestGetPlaylistUserAgent(t *testing.T) {
	t.Setenv("PLAYLIST_USER_AGENT", "")
	if got := GetPlaylistUserAgent(); got != "VLC/3.0.14 LibVLC/3.0.14" {
		t.Errorf("default agent = %q", got)
	}

	t.Setenv("PLAYLIST_USER_AGENT", "CustomAgent/1.0")
	if got := GetPlaylistUserAgent(); got != "CustomAgent/1.0" {
		t.Errorf("override agent = %q", got)
	}
}
