// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/AndersKabel/danmarkskort/geosearch"
	"github.com/AndersKabel/danmarkskort/marker"
	"github.com/AndersKabel/danmarkskort/markerstore"
)

type loadFlags struct {
	File      string
	Workspace string
	MapID     string
}

var loadOptions = &loadFlags{}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Indlæs redningsnummer-datasættet i markørlageret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		posts, err := geosearch.FileLoader(loadOptions.File)(cmd.Context())
		if err != nil {
			return err
		}

		db, repo, err := openStoreDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(len(posts),
				progressbar.OptionSetDescription("Loading "+loadOptions.File),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		for _, post := range posts {
			coord := post.Coord
			stored := &markerstore.StoredMarker{
				ID:        marker.StableID(loadOptions.Workspace, loadOptions.MapID, coord),
				Workspace: loadOptions.Workspace,
				MapID:     loadOptions.MapID,
				Point:     &coord,
				Title:     post.DisplayText(),
			}
			if err := repo.Save(stored); err != nil {
				return fmt.Errorf("saving %q: %w", post.Name, err)
			}
			if bar != nil {
				if err := bar.Add(1); err != nil {
					log.Warn().Err(err).Msg("updating progress bar")
				}
			}
		}

		count, err := repo.Count(loadOptions.Workspace)
		if err != nil {
			return err
		}
		log.Info().Int("loaded", len(posts)).Int("total", count).Msg("dataset loaded")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVar(&loadOptions.File, "file", "", "GeoJSON file with rescue posts")
	loadCmd.Flags().StringVar(&loadOptions.Workspace, "workspace", "default",
		"workspace to load the markers into")
	loadCmd.Flags().StringVar(&loadOptions.MapID, "map", "map-1",
		"map the markers belong to")
	loadCmd.Flags().StringVar(&serveOptions.DbPath, "db-path", "db",
		"directory holding the marker database")
	loadCmd.MarkFlagRequired("file")
}
