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

// Package ranker turns the flat set of working streams into the
// country / channel / quality hierarchy of the output playlist.
package ranker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
)

// UnknownCountry groups streams whose origin could not be derived.
const UnknownCountry = "Unknown"

type countryKeywords struct {
	code     string
	keywords []string
}

// priorityCountries are checked before the rest so that "USA" and "UK"
// win over accidental substrings like the AR in PARAMOUNT.
var priorityCountries = []countryKeywords{
	{"US", []string{"USA", "UNITED STATES", "AMERICA"}},
	{"UK", []string{"UNITED KINGDOM", "UK", "GB", "ENGLAND", "BRITISH"}},
	{"INT", []string{"INTERNATIONAL", "INT"}},
}

var otherCountries = []countryKeywords{
	{"AR", []string{"ARGENTINA", "AR"}},
	{"BR", []string{"BRAZIL", "BRASIL", "BR"}},
	{"CA", []string{"CANADA", "CA"}},
	{"DE", []string{"GERMANY", "DEUTSCHLAND", "DE"}},
	{"ES", []string{"SPAIN", "ESPAÑA", "ES"}},
	{"FR", []string{"FRANCE", "FR"}},
	{"IT", []string{"ITALY", "ITALIA", "IT"}},
	{"MX", []string{"MEXICO", "MX"}},
	{"PT", []string{"PORTUGAL", "PT"}},
}

var knownCodes = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, c := range append(append([]countryKeywords{}, priorityCountries...), otherCountries...) {
		m[c.code] = struct{}{}
	}
	return m
}()

var (
	parenthesesPattern = regexp.MustCompile(`\s*\(.*?\)\s*`)
	qualityTagPattern  = regexp.MustCompile(`(?i)\s*(HD|FHD|4K|UHD|SD)\s*`)
)

// DeriveCountry determines a stream's country. A tvg-id suffix like
// "cnn.us" is authoritative when it maps to a known code; otherwise the
// group title and name are scanned against the keyword tables.
func DeriveCountry(rec *types.StreamRecord) string {
	if idx := strings.LastIndex(rec.TvgID, "."); idx >= 0 {
		suffix := strings.ToUpper(rec.TvgID[idx+1:])
		if _, ok := knownCodes[suffix]; ok {
			return suffix
		}
	}

	text := strings.ToUpper(rec.GroupTitle + " " + rec.Name)
	for _, table := range [2][]countryKeywords{priorityCountries, otherCountries} {
		for _, c := range table {
			for _, kw := range c.keywords {
				if matchKeyword(text, kw) {
					return c.code
				}
			}
		}
	}
	return UnknownCountry
}

// matchKeyword requires word boundaries for short codes so "AR" never
// matches inside PARAMOUNT, while long names match as substrings.
func matchKeyword(text, keyword string) bool {
	if len(keyword) > 3 {
		return strings.Contains(text, keyword)
	}
	padded := " " + text + " "
	return strings.Contains(padded, " "+keyword+" ")
}

// BaseChannelName strips parenthesized qualifiers and quality tags so
// variants of the same channel group together.
func BaseChannelName(name string) string {
	base := parenthesesPattern.ReplaceAllString(name, " ")
	base = qualityTagPattern.ReplaceAllString(base, " ")
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return strings.TrimSpace(name)
	}
	return base
}

// Channel is one logical channel with its streams ranked best-first.
type Channel struct {
	Name    string
	Streams []*types.StreamRecord
}

// CountryGroup is all channels of one country, alphabetized.
type CountryGroup struct {
	Country  string
	Channels []Channel
}

// StreamCount sums the streams across the group's channels.
func (g CountryGroup) StreamCount() int {
	n := 0
	for _, ch := range g.Channels {
		n += len(ch.Streams)
	}
	return n
}

var resolutionRank = map[string]int{
	"4K":    4,
	"1080p": 3,
	"720p":  2,
	"SD":    1,
}

// Organize builds the full output hierarchy: countries alphabetized
// with Unknown last, channels alphabetized within a country, and each
// channel's streams ordered best-first by bitrate, then resolution,
// then frame rate.
func Organize(records []*types.StreamRecord) []CountryGroup {
	byCountry := make(map[string]map[string][]*types.StreamRecord)
	for _, rec := range records {
		country := rec.Country
		if country == "" {
			country = DeriveCountry(rec)
		}
		base := BaseChannelName(rec.Name)
		if byCountry[country] == nil {
			byCountry[country] = make(map[string][]*types.StreamRecord)
		}
		byCountry[country][base] = append(byCountry[country][base], rec)
	}

	groups := make([]CountryGroup, 0, len(byCountry))
	for country, channels := range byCountry {
		group := CountryGroup{Country: country}
		for name, streams := range channels {
			sort.SliceStable(streams, func(i, j int) bool {
				a, b := streams[i], streams[j]
				if a.VideoBitrateKbps != b.VideoBitrateKbps {
					return a.VideoBitrateKbps > b.VideoBitrateKbps
				}
				if ra, rb := resolutionRank[a.Resolution], resolutionRank[b.Resolution]; ra != rb {
					return ra > rb
				}
				return a.FPS > b.FPS
			})
			group.Channels = append(group.Channels, Channel{Name: name, Streams: streams})
		}
		sort.Slice(group.Channels, func(i, j int) bool {
			return group.Channels[i].Name < group.Channels[j].Name
		})
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if (gi.Country == UnknownCountry) != (gj.Country == UnknownCountry) {
			return gj.Country == UnknownCountry
		}
		return gi.Country < gj.Country
	})
	return groups
}
