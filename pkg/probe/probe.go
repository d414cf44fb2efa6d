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

// Package probe verifies that a stream URL actually plays and measures
// its technical quality.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

// Prober checks one stream URL. Implementations must honor the context
// deadline: a hung stream is the common case, not the exception.
type Prober interface {
	Probe(ctx context.Context, url string) (types.ProbeResult, error)
}

// FFProbe shells out to ffprobe for stream analysis.
type FFProbe struct {
	// Binary overrides the ffprobe executable path; empty uses $PATH.
	Binary  string
	Timeout time.Duration
}

// NewFFProbe returns a prober with the given per-stream timeout.
func NewFFProbe(timeout time.Duration) *FFProbe {
	return &FFProbe{Timeout: timeout}
}

// Probe runs ffprobe against the URL and extracts codec, resolution,
// bitrate and frame rate from its JSON report.
func (p *FFProbe) Probe(ctx context.Context, url string) (types.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-user_agent", utils.GetPlaylistUserAgent(),
		url,
	)
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return types.ProbeResult{}, fmt.Errorf("probe timed out after %s", p.Timeout)
	}
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseReport(out)
}

// parseReport walks the streams array of an ffprobe JSON report. A
// report without a video stream means the URL answered but is not
// playable video.
func parseReport(report []byte) (types.ProbeResult, error) {
	var result types.ProbeResult
	var audioParts []string

	_, arrErr := jsonparser.ArrayEach(report, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		codecType, _ := jsonparser.GetString(value, "codec_type")
		switch codecType {
		case "video":
			if result.Alive {
				return
			}
			result.Alive = true
			result.Codec, _ = jsonparser.GetString(value, "codec_name")

			width, _ := jsonparser.GetInt(value, "width")
			height, _ := jsonparser.GetInt(value, "height")
			result.Resolution = resolutionClass(int(width), int(height))

			if raw, err := jsonparser.GetString(value, "bit_rate"); err == nil {
				if bps, err := strconv.ParseInt(raw, 10, 64); err == nil {
					result.VideoBitrateKbps = int(bps / 1000)
				}
			}
			if raw, err := jsonparser.GetString(value, "avg_frame_rate"); err == nil {
				result.FPS = parseFrameRate(raw)
			}
			if result.FPS == 0 {
				if raw, err := jsonparser.GetString(value, "r_frame_rate"); err == nil {
					result.FPS = parseFrameRate(raw)
				}
			}
		case "audio":
			codec, _ := jsonparser.GetString(value, "codec_name")
			channels, _ := jsonparser.GetInt(value, "channels")
			if codec != "" {
				audioParts = append(audioParts, fmt.Sprintf("%s %dch", codec, channels))
			}
		}
	}, "streams")
	if arrErr != nil {
		return types.ProbeResult{}, fmt.Errorf("unreadable probe report: %w", arrErr)
	}

	if !result.Alive {
		return result, fmt.Errorf("no video stream")
	}
	result.AudioInfo = strings.Join(audioParts, ", ")

	// Some containers only report the bitrate at the format level.
	if result.VideoBitrateKbps == 0 {
		if raw, err := jsonparser.GetString(report, "format", "bit_rate"); err == nil {
			if bps, err := strconv.ParseInt(raw, 10, 64); err == nil {
				result.VideoBitrateKbps = int(bps / 1000)
			}
		}
	}
	return result, nil
}

// resolutionClass buckets a frame size into the labels used in the
// output playlist.
func resolutionClass(width, height int) string {
	// Anamorphic feeds lie about width; the height is what matters.
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height > 0:
		return "SD"
	case width >= 3840:
		return "4K"
	default:
		return "SD"
	}
}

// parseFrameRate evaluates ffprobe's fractional rate ("30000/1001").
func parseFrameRate(raw string) float64 {
	if raw == "" || raw == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(raw, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
