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

// Package filter decides which playlist entries are worth probing.
// Rules match on the entry's name and group title only; the filter never
// touches the network, so the same input always yields the same verdict.
package filter

import (
	"regexp"
	"time"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/config"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
)

// Rule rejects entries of one content category.
type Rule struct {
	Category string
	Pattern  *regexp.Regexp
	enabled  func(config.FilterPolicy) bool
}

// rules are checked in order; the first match decides the category.
// Patterns mirror the naming conventions IPTV panels actually use.
var rules = []Rule{
	{
		Category: "adult",
		Pattern:  regexp.MustCompile(`(?i)\b(xxx|adult|porn|erotic|18\+)\b`),
		enabled:  func(p config.FilterPolicy) bool { return p.FilterAdult },
	},
	{
		Category: "series",
		Pattern:  regexp.MustCompile(`(?i)(\b(series|serie|episode|season|temporada)\b|\bS\d{1,2}\s?E\d{1,3}\b)`),
		enabled:  func(p config.FilterPolicy) bool { return p.FilterSeries },
	},
	{
		Category: "movies",
		Pattern:  regexp.MustCompile(`(?i)(\b(movie|movies|film|films|cinema|pelicula|peliculas|filme|filmes|cine)\b|[\[\(](19|20)\d{2}[\]\)])`),
		enabled:  func(p config.FilterPolicy) bool { return p.FilterMovies },
	},
	{
		Category: "vod",
		Pattern:  regexp.MustCompile(`(?i)\bvod\b`),
		enabled:  func(p config.FilterPolicy) bool { return p.FilterVOD },
	},
	{
		Category: "24x7",
		Pattern:  regexp.MustCompile(`(?i)\b24[/\-x]?7\b`),
		enabled:  func(p config.FilterPolicy) bool { return p.Filter24x7 },
	},
	{
		Category: "radio",
		Pattern:  regexp.MustCompile(`(?i)\b(radio|fm)\b`),
		enabled:  func(p config.FilterPolicy) bool { return p.FilterRadio },
	},
}

// Filter applies a fixed policy to playlist entries.
type Filter struct {
	policy config.FilterPolicy
	now    func() time.Time
}

// New builds a filter for the given policy.
func New(policy config.FilterPolicy) *Filter {
	return &Filter{policy: policy, now: time.Now}
}

// Accept reports whether the entry should be probed. When it is
// rejected, the second return names the rejecting category.
func (f *Filter) Accept(entry *types.StreamEntry) (bool, string) {
	if f.policy.PassThrough() {
		return true, ""
	}

	haystacks := [2]string{entry.Name, entry.GroupTitle}
	for _, rule := range rules {
		if !rule.enabled(f.policy) {
			continue
		}
		for _, s := range haystacks {
			if s != "" && rule.Pattern.MatchString(s) {
				return false, rule.Category
			}
		}
	}

	// An entry with no known expiry is never rejected for expiring soon.
	if f.policy.MinExpiryDays > 0 && entry.Expiry != nil {
		cutoff := f.now().AddDate(0, 0, f.policy.MinExpiryDays)
		if entry.Expiry.Before(cutoff) {
			return false, "expiring"
		}
	}
	return true, ""
}
