// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AndersKabel/danmarkskort/geosearch"
	"github.com/AndersKabel/danmarkskort/spatial"
)

var resolveReverse bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <tekst eller koordinat>",
	Short: "Omsæt fritekst til et koordinat, eller et koordinat til en adresse",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newSearchHTTPClient()
		if err != nil {
			return err
		}

		address := geosearch.NewAddressSource(client, searchOptions.RegistryURL)

		var foreign *geosearch.ForeignSource
		if searchOptions.ORSKey != "" {
			foreign = geosearch.NewForeignSource(
				client, searchOptions.ORSBaseURL, searchOptions.ORSKey, nil)
		}

		text := strings.Join(args, " ")

		if resolveReverse {
			p := spatial.ParsePoint(text)
			if p == nil {
				return fmt.Errorf("%q is not a coordinate", text)
			}

			result := geosearch.NewReverseResolver(address, foreign).Reverse(cmd.Context(), *p)
			fmt.Println(result.Label)

			return nil
		}

		point := geosearch.NewResolver(address, foreign).Resolve(cmd.Context(), text, nil)
		if point == nil {
			fmt.Println("Ikke fundet.")

			return nil
		}

		fmt.Printf("%.5f, %.5f\n", point.Lat, point.Lng)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveReverse, "reverse", false,
		"look up the address at a coordinate instead")
	resolveCmd.Flags().StringVar(&searchOptions.RegistryURL, "registry-url", "",
		"base URL for the national registries (default: public endpoint)")
	resolveCmd.Flags().StringVar(&searchOptions.ORSKey, "ors-key", os.Getenv("ORS_API_KEY"),
		"API key for the global geocoder (default: $ORS_API_KEY)")
	resolveCmd.Flags().StringVar(&searchOptions.ORSBaseURL, "ors-url", "",
		"base URL for the global geocoder (default: public endpoint)")
}
