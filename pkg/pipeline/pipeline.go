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

// Package pipeline wires the whole run together: URL extraction,
// playlist fetching, filtering, stream probing, checkpointing and
// output writing, across two worker pools.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/checkpoint"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/config"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/extract"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/filter"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/output"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/playlist"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/probe"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/ranker"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/types"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/xtream"
)

// Pipeline runs one end-to-end extraction.
type Pipeline struct {
	cfg      *config.ExtractorConfig
	store    *checkpoint.Store
	fetcher  *playlist.Fetcher
	prober   probe.Prober
	resolver *xtream.Resolver
	filter   *filter.Filter
	stats    *Stats

	// Set when shutdown is requested; tasks check it and bail out
	// before claiming new work.
	stopping atomic.Bool
}

// New assembles a pipeline from its collaborators. A nil prober gets
// the ffprobe default.
func New(cfg *config.ExtractorConfig, store *checkpoint.Store, prober probe.Prober) *Pipeline {
	if prober == nil {
		prober = probe.NewFFProbe(cfg.ProbeTimeout)
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		fetcher:  playlist.NewFetcher(cfg.DownloadTimeout, cfg.MaxDownloadsPerSec),
		prober:   prober,
		resolver: xtream.NewResolver(cfg.ExpiryTimeout),
		filter:   filter.New(cfg.Filters),
		stats:    NewStats(),
	}
}

// Stats exposes the run counters, for the summary and for tests.
func (p *Pipeline) Stats() *Stats { return p.stats }

// Run executes the pipeline until all work is done or ctx is canceled.
// On cancellation in-flight tasks finish, pending ones are abandoned,
// and progress plus partial output are flushed before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	started := time.Now()

	urls, _, err := extract.PlaylistURLs(p.cfg.InputPath)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no playlist URLs found in %s", p.cfg.InputPath)
	}

	pending := urls[:0:0]
	for _, url := range urls {
		if p.store.PlaylistDone(url) {
			p.stats.PlaylistsSkipped.Add(1)
			continue
		}
		pending = append(pending, url)
	}
	utils.InfoLog("Processing %d playlists (%d already completed)", len(pending), p.stats.PlaylistsSkipped.Load())

	playlistPool, err := ants.NewPool(p.cfg.PlaylistWorkers)
	if err != nil {
		return utils.PrintErrorAndReturn(fmt.Errorf("creating playlist pool: %w", err))
	}
	defer playlistPool.Release()

	// Submit on a full stream pool blocks, which is the backpressure
	// that keeps playlist workers from outrunning the probers.
	streamPool, err := ants.NewPool(p.cfg.StreamWorkers)
	if err != nil {
		return utils.PrintErrorAndReturn(fmt.Errorf("creating stream pool: %w", err))
	}
	defer streamPool.Release()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", p.cfg.FlushInterval), func() {
		if err := p.store.Flush(); err != nil {
			utils.WarnLog("Periodic progress flush failed: %v", err)
		}
		p.writeOutput()
	})
	if err != nil {
		return utils.PrintErrorAndReturn(fmt.Errorf("scheduling flushes: %w", err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		<-ctx.Done()
		if !p.stopping.Swap(true) {
			utils.WarnLog("Shutdown requested, draining in-flight work")
		}
	}()

	var playlistWG, streamWG sync.WaitGroup
	for _, url := range pending {
		if p.stopping.Load() {
			break
		}
		url := url
		playlistWG.Add(1)
		if err := playlistPool.Submit(func() {
			defer playlistWG.Done()
			p.processPlaylist(ctx, url, streamPool, &streamWG)
		}); err != nil {
			playlistWG.Done()
			utils.ErrorLog("Submitting playlist task: %v", err)
		}
	}
	playlistWG.Wait()
	streamWG.Wait()

	if err := p.store.Flush(); err != nil {
		utils.ErrorLog("Final progress flush failed: %v", err)
	}
	p.writeOutput()
	p.logSummary(time.Since(started))

	if p.stopping.Load() && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// playlistJob tracks one playlist's outstanding probes. The task is
// committed completed only once every claimed stream holds a terminal
// record; a job with abandoned streams stays in-progress so the next
// load resets it to pending and the lost entries get re-probed.
type playlistJob struct {
	url             string
	found, filtered int
	pending         atomic.Int64
	abandoned       atomic.Bool
}

// finishJob retires one unit of the job's pending work. The last caller
// commits the terminal playlist state.
func (p *Pipeline) finishJob(job *playlistJob) {
	if job.pending.Add(-1) != 0 {
		return
	}
	if job.abandoned.Load() {
		utils.DebugLog("Playlist %s interrupted, leaving it resumable", utils.MaskURL(job.url))
		return
	}
	p.store.CommitPlaylist(job.url, types.StatusCompleted, job.found, job.filtered)
	p.stats.PlaylistsProcessed.Add(1)
}

// processPlaylist downloads one playlist, filters its entries and hands
// the survivors to the stream pool.
func (p *Pipeline) processPlaylist(ctx context.Context, url string, streamPool *ants.Pool, streamWG *sync.WaitGroup) {
	if p.stopping.Load() {
		return
	}
	if !p.store.ClaimPlaylist(url) {
		p.stats.PlaylistsSkipped.Add(1)
		return
	}

	entries, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		utils.DebugLog("Playlist %s failed: %v", utils.MaskURL(url), err)
		p.store.CommitPlaylist(url, types.StatusFailed, 0, 0)
		p.stats.PlaylistsFailed.Add(1)
		return
	}
	p.stats.EntriesFound.Add(int64(len(entries)))

	// Credentials on the playlist URL itself cover every entry; bare
	// .m3u8 aggregations carry them on the stream URLs instead, so fall
	// back to each entry's origin. The resolver collapses either shape
	// to one lookup per panel account.
	playlistCreds, haveCreds := xtream.ParseCredentials(url)

	// The job's own unit is released at the end of this function, so a
	// probe finishing early can never observe pending at zero.
	job := &playlistJob{url: url}
	job.pending.Store(1)

	kept := 0
	for _, entry := range entries {
		if p.stopping.Load() {
			job.abandoned.Store(true)
			break
		}
		if haveCreds {
			entry.Expiry = p.resolver.Expiry(ctx, playlistCreds)
		} else if creds, ok := xtream.ParseCredentials(entry.RawURL); ok {
			entry.Expiry = p.resolver.Expiry(ctx, creds)
		}
		if ok, category := p.filter.Accept(entry); !ok {
			p.stats.CountFiltered(category)
			continue
		}
		kept++

		fp := types.Fingerprint(entry.Name, entry.RawURL)
		if !p.store.ClaimStream(fp) {
			p.stats.StreamsSkipped.Add(1)
			continue
		}
		entry := entry
		job.pending.Add(1)
		streamWG.Add(1)
		if err := streamPool.Submit(func() {
			defer streamWG.Done()
			p.probeStream(ctx, fp, entry, job)
		}); err != nil {
			streamWG.Done()
			p.store.ReleaseStream(fp)
			job.abandoned.Store(true)
			utils.ErrorLog("Submitting stream task: %v", err)
			p.finishJob(job)
		}
	}

	job.found = len(entries)
	job.filtered = len(entries) - kept
	p.finishJob(job)
}

// probeStream checks one stream and commits its terminal record.
func (p *Pipeline) probeStream(ctx context.Context, fp string, entry *types.StreamEntry, job *playlistJob) {
	if p.stopping.Load() {
		// No result is recorded and the owning playlist stays
		// in-progress, so both are retried on the next run.
		p.store.ReleaseStream(fp)
		job.abandoned.Store(true)
		p.finishJob(job)
		return
	}

	result, err := p.prober.Probe(ctx, entry.RawURL)
	p.stats.StreamsChecked.Add(1)

	rec := &types.StreamRecord{
		Name:       entry.Name,
		RawURL:     entry.RawURL,
		LogoURL:    entry.LogoURL,
		GroupTitle: entry.GroupTitle,
		TvgID:      entry.TvgID,
		ExpiryDate: entry.Expiry,
		CheckedAt:  time.Now(),
	}
	if err != nil || !result.Alive {
		rec.Status = types.StreamFailed
		p.stats.StreamsFailed.Add(1)
	} else {
		rec.Status = types.StreamWorking
		rec.Codec = result.Codec
		rec.Resolution = result.Resolution
		rec.VideoBitrateKbps = result.VideoBitrateKbps
		rec.FPS = result.FPS
		rec.AudioInfo = result.AudioInfo
		p.stats.StreamsWorking.Add(1)
	}
	rec.Country = ranker.DeriveCountry(rec)
	p.store.CommitStream(fp, rec)
	utils.DebugLog("Probed %s: %s", utils.Truncate(entry.Name, 48), rec.Status)
	p.finishJob(job)
}

// writeOutput renders the current set of working streams. Used both for
// the periodic partial saves and the final playlist.
func (p *Pipeline) writeOutput() {
	records := p.store.WorkingRecords()
	if len(records) == 0 {
		return
	}
	groups := ranker.Organize(records)
	if err := output.Write(p.cfg.OutputPath, groups); err != nil {
		utils.ErrorLog("Writing output playlist: %v", err)
	}
}

func (p *Pipeline) logSummary(elapsed time.Duration) {
	utils.InfoLog("Run finished in %s", elapsed.Round(time.Second))
	utils.InfoLog("Playlists: %d processed, %d failed, %d skipped",
		p.stats.PlaylistsProcessed.Load(), p.stats.PlaylistsFailed.Load(), p.stats.PlaylistsSkipped.Load())
	utils.InfoLog("Entries: %d found, %d filtered", p.stats.EntriesFound.Load(), p.stats.EntriesFiltered.Load())
	for _, cc := range p.stats.FilteredBreakdown() {
		utils.InfoLog("  filtered as %s: %d", utils.Colorize(utils.ColorCyan, cc.Category), cc.Count)
	}
	utils.InfoLog("Streams: %d checked, %s working, %d dead, %s",
		p.stats.StreamsChecked.Load(),
		utils.Colorize(utils.ColorGreen, fmt.Sprintf("%d", p.stats.StreamsWorking.Load())),
		p.stats.StreamsFailed.Load(),
		utils.Colorize(utils.ColorGray, fmt.Sprintf("%d skipped", p.stats.StreamsSkipped.Load())))
}
