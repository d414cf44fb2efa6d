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

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/checkpoint"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/config"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/pipeline"
	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iptv-stream-extractor",
	Short: "Extract, validate and organize IPTV streams from playlist dumps",
	Long: `IPTV Stream Extractor scans a database dump for playlist URLs,
downloads each playlist, filters out unwanted content, probes every
remaining stream for availability and quality, and writes a single M3U
playlist organized by country, channel and bitrate.

Progress is checkpointed continuously: an interrupted run picks up
where it left off.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		conf := &config.ExtractorConfig{
			InputPath:          viper.GetString("input"),
			OutputPath:         viper.GetString("output"),
			LogPath:            viper.GetString("log-file"),
			ProgressDir:        viper.GetString("progress-dir"),
			PlaylistWorkers:    viper.GetInt("playlist-workers"),
			StreamWorkers:      viper.GetInt("stream-workers"),
			DownloadTimeout:    viper.GetDuration("download-timeout"),
			ProbeTimeout:       viper.GetDuration("probe-timeout"),
			ExpiryTimeout:      viper.GetDuration("expiry-timeout"),
			FlushInterval:      viper.GetDuration("flush-interval"),
			MaxDownloadsPerSec: viper.GetInt("max-downloads-per-sec"),
			ReprocessPlaylists: viper.GetBool("reprocess-playlists"),
			ReprocessStreams:   viper.GetBool("reprocess-streams"),
			ClearProgress:      viper.GetBool("clear-progress"),
			Quiet:              viper.GetBool("quiet"),
			NoColors:           viper.GetBool("no-colors"),
			Filters:            filterPolicyFromFlags(),
		}
		if err := conf.Validate(); err != nil {
			return err
		}

		if err := utils.InitLogging(conf.LogPath, conf.Quiet, conf.NoColors); err != nil {
			return err
		}
		defer utils.CloseLogging()

		store, err := checkpoint.New(conf.ProgressDir, checkpoint.Options{
			ReprocessPlaylists: conf.ReprocessPlaylists,
			ReprocessStreams:   conf.ReprocessStreams,
			ClearProgress:      conf.ClearProgress,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return pipeline.New(conf, store, nil).Run(ctx)
	},
}

func filterPolicyFromFlags() config.FilterPolicy {
	if viper.GetBool("disable-filters") {
		return config.FilterPolicy{}
	}
	policy := config.DefaultFilterPolicy()
	policy.FilterRadio = !viper.GetBool("include-radio")
	policy.FilterAdult = !viper.GetBool("include-adult")
	policy.MinExpiryDays = viper.GetInt("min-expiry-days")
	return policy
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.iptv-stream-extractor.yaml)")

	// Input and output
	rootCmd.Flags().StringP("input", "i", "", "Database dump to scan for playlist URLs")
	rootCmd.Flags().StringP("output", "o", "working_streams.m3u", "Output M3U file")
	rootCmd.Flags().String("log-file", "", "Also write logs to this file")
	rootCmd.Flags().String("progress-dir", ".", "Directory for progress checkpoint files")

	// Concurrency and pacing
	rootCmd.Flags().Int("playlist-workers", 10, "Concurrent playlist downloads")
	rootCmd.Flags().Int("stream-workers", 30, "Concurrent stream probes")
	rootCmd.Flags().Int("max-downloads-per-sec", 0, "Global playlist download rate cap (0 = unlimited)")

	// Timeouts
	rootCmd.Flags().Duration("download-timeout", 30*time.Second, "Per-playlist download timeout")
	rootCmd.Flags().Duration("probe-timeout", 10*time.Second, "Per-stream probe timeout")
	rootCmd.Flags().Duration("expiry-timeout", 10*time.Second, "Panel expiry lookup timeout")
	rootCmd.Flags().Duration("flush-interval", 30*time.Second, "Interval between progress flushes and partial output saves")

	// Resume behavior
	rootCmd.Flags().Bool("reprocess-playlists", false, "Re-fetch playlists already marked completed")
	rootCmd.Flags().Bool("reprocess-streams", false, "Re-probe streams already checked")
	rootCmd.Flags().Bool("clear-progress", false, "Discard all previous progress and start over")

	// Content filtering
	rootCmd.Flags().Bool("disable-filters", false, "Keep every entry, probing movies/series/VOD too")
	rootCmd.Flags().Bool("include-radio", false, "Keep radio stations")
	rootCmd.Flags().Bool("include-adult", false, "Keep adult content")
	rootCmd.Flags().Int("min-expiry-days", 30, "Skip playlists whose subscription expires sooner (0 disables)")

	// Console behavior
	rootCmd.Flags().BoolP("quiet", "q", false, "Only warnings and errors on the console")
	rootCmd.Flags().Bool("no-colors", false, "Disable ANSI colors in console output")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatal("Error binding PFlags to viper")
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory and current directory
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".iptv-stream-extractor")
	}

	// Replace hyphens with underscores in environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Read environment variables
	viper.AutomaticEnv()

	// Read in config file if found
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
