// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndersKabel/danmarkskort/geosearch"
	"github.com/AndersKabel/danmarkskort/utils/httputils"
)

type searchFlags struct {
	RegistryURL string
	PlaceToken  string
	ORSKey      string
	ORSBaseURL  string
	RescuePosts string
	Foreign     bool
	Resolve     bool
}

var searchOptions = &searchFlags{}

func newSearchHTTPClient() (*http.Client, error) {
	return httputils.NewClient(httputils.ClientOptions{
		UserAgent: "danmarkskort/" + Version,
		Timeout:   30 * time.Second,
	})
}

// buildSources wires the configured registries. The local dataset and the
// global geocoder join only when their key or dataset path is set.
func buildSources(client *http.Client, quota *geosearch.QuotaTracker) (domestic, foreign []geosearch.Source) {
	domestic = []geosearch.Source{
		geosearch.NewPlaceNameSource(client, searchOptions.RegistryURL, searchOptions.PlaceToken),
		geosearch.NewRoadSource(client, searchOptions.RegistryURL),
		geosearch.NewAddressSource(client, searchOptions.RegistryURL),
	}

	if searchOptions.RescuePosts != "" {
		domestic = append(domestic, geosearch.NewLocalPointSource(
			geosearch.FileLoader(searchOptions.RescuePosts), nil, 24*time.Hour))
	}

	if searchOptions.ORSKey != "" {
		foreign = append(foreign, geosearch.NewForeignSource(
			client, searchOptions.ORSBaseURL, searchOptions.ORSKey, quota))
	}

	return domestic, foreign
}

var searchCmd = &cobra.Command{
	Use:   "search <forespørgsel>",
	Short: "Søg på tværs af adresser, stednavne, veje og redningsnumre",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSearchHTTPClient()
		if err != nil {
			return err
		}

		quota := geosearch.NewQuotaTracker()
		domestic, foreign := buildSources(client, quota)
		agg := geosearch.NewAggregator(domestic, foreign)

		mode := geosearch.ModeDomestic
		if searchOptions.Foreign {
			mode = geosearch.ModeForeign
		}

		query := args[0]

		candidates := agg.Search(cmd.Context(), query, mode)
		if len(candidates) == 0 {
			fmt.Println("Ingen resultater.")

			return nil
		}

		for _, c := range candidates {
			coord := ""
			if c.Coord != nil {
				coord = fmt.Sprintf("  (%.5f, %.5f)", c.Coord.Lat, c.Coord.Lng)
			}

			fmt.Printf("%-10s %s%s\n", c.Kind, c.DisplayText, coord)
		}

		if q, ok := quota.Last("openrouteservice"); ok {
			fmt.Printf("\nKvote: %d/%d tilbage\n", q.Remaining, q.Limit)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.PersistentFlags().StringVar(&searchOptions.RegistryURL, "registry-url", "",
		"base URL for the national registries (default: public endpoint)")
	searchCmd.PersistentFlags().StringVar(&searchOptions.PlaceToken, "place-token", "",
		"access token for the place-name registry")
	searchCmd.PersistentFlags().StringVar(&searchOptions.ORSKey, "ors-key", os.Getenv("ORS_API_KEY"),
		"API key for the global geocoder (default: $ORS_API_KEY)")
	searchCmd.PersistentFlags().StringVar(&searchOptions.ORSBaseURL, "ors-url", "",
		"base URL for the global geocoder (default: public endpoint)")
	searchCmd.PersistentFlags().StringVar(&searchOptions.RescuePosts, "rescue-posts", "",
		"path to the rescue-post GeoJSON dataset")
	searchCmd.Flags().BoolVar(&searchOptions.Foreign, "foreign", false,
		"search only the global geocoder")
}
