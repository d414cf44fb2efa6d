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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExtractorConfig is the full configuration of one pipeline run.
type ExtractorConfig struct {
	InputPath   string
	OutputPath  string
	LogPath     string
	ProgressDir string

	PlaylistWorkers int
	StreamWorkers   int

	DownloadTimeout time.Duration
	ProbeTimeout    time.Duration
	ExpiryTimeout   time.Duration
	FlushInterval   time.Duration

	// Optional ceiling on playlist downloads per second; 0 disables pacing.
	MaxDownloadsPerSec int

	ReprocessPlaylists bool
	ReprocessStreams   bool
	ClearProgress      bool

	Quiet    bool
	NoColors bool

	Filters FilterPolicy
}

// FilterPolicy configures the content filter. Each toggle enables one
// rejection rule; MinExpiryDays additionally rejects entries whose panel
// subscription expires sooner than that many days (0 disables the rule).
type FilterPolicy struct {
	FilterMovies  bool
	FilterSeries  bool
	FilterVOD     bool
	Filter24x7    bool
	FilterAdult   bool
	FilterRadio   bool
	MinExpiryDays int
}

// DefaultFilterPolicy enables every category rule with a 30-day expiry cutoff.
func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		FilterMovies:  true,
		FilterSeries:  true,
		FilterVOD:     true,
		Filter24x7:    true,
		FilterAdult:   true,
		FilterRadio:   true,
		MinExpiryDays: 30,
	}
}

// PassThrough reports whether every filter rule is disabled.
func (p FilterPolicy) PassThrough() bool {
	return !p.FilterMovies && !p.FilterSeries && !p.FilterVOD &&
		!p.Filter24x7 && !p.FilterAdult && !p.FilterRadio && p.MinExpiryDays <= 0
}

// Validate checks the fatal preconditions of a run: readable input,
// writable output and progress locations, sane worker counts.
func (c *ExtractorConfig) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if _, err := os.Stat(c.InputPath); err != nil {
		return fmt.Errorf("input file not readable: %w", err)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if dir := filepath.Dir(c.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("output directory not writable: %w", err)
		}
	}
	if c.ProgressDir != "" {
		if err := os.MkdirAll(c.ProgressDir, 0755); err != nil {
			return fmt.Errorf("progress directory not writable: %w", err)
		}
	}
	if c.PlaylistWorkers < 1 || c.StreamWorkers < 1 {
		return fmt.Errorf("worker counts must be at least 1")
	}
	if c.FlushInterval < time.Second {
		return fmt.Errorf("flush interval must be at least 1s")
	}
	return nil
}
