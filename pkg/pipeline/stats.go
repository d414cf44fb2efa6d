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

package pipeline

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Stats aggregates run counters. All fields are safe for concurrent
// update from both worker pools.
type Stats struct {
	PlaylistsProcessed atomic.Int64
	PlaylistsFailed    atomic.Int64
	PlaylistsSkipped   atomic.Int64

	EntriesFound    atomic.Int64
	EntriesFiltered atomic.Int64

	StreamsChecked atomic.Int64
	StreamsWorking atomic.Int64
	StreamsFailed  atomic.Int64
	StreamsSkipped atomic.Int64

	filteredByCategory *xsync.MapOf[string, *atomic.Int64]
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats {
	return &Stats{filteredByCategory: xsync.NewMapOf[string, *atomic.Int64]()}
}

// CountFiltered records one rejection under its category.
func (s *Stats) CountFiltered(category string) {
	s.EntriesFiltered.Add(1)
	counter, _ := s.filteredByCategory.LoadOrCompute(category, func() *atomic.Int64 {
		return &atomic.Int64{}
	})
	counter.Add(1)
}

// FilteredBreakdown returns category counts sorted by category name.
func (s *Stats) FilteredBreakdown() []CategoryCount {
	var out []CategoryCount
	s.filteredByCategory.Range(func(category string, counter *atomic.Int64) bool {
		out = append(out, CategoryCount{Category: category, Count: counter.Load()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// CategoryCount is one line of the filter breakdown.
type CategoryCount struct {
	Category string
	Count    int64
}
