// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndersKabel/danmarkskort/geosearch"
	"github.com/AndersKabel/danmarkskort/marker"
	"github.com/AndersKabel/danmarkskort/markersync"
	"github.com/AndersKabel/danmarkskort/spatial"
	"github.com/AndersKabel/danmarkskort/utils/httputils"
)

type markersFlags struct {
	StoreURL  string
	Workspace string
	Secret    string
	MapID     string
	Areas     []string
	Scope     string
}

var markersOptions = &markersFlags{}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Arbejd med markører i det delte markørlager",
}

func newSyncService() (*markersync.Service, error) {
	client, err := markersync.NewClient(
		markersOptions.StoreURL,
		markersOptions.Workspace,
		markersOptions.Secret,
		httputils.ClientOptions{
			UserAgent: "danmarkskort/" + Version,
			Timeout:   30 * time.Second,
		})
	if err != nil {
		return nil, err
	}

	filter, err := markersync.ParseAreaFilter(markersOptions.Areas)
	if err != nil {
		return nil, err
	}

	return markersync.NewService(client, nil, filter, 0), nil
}

var markersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Vis markørerne i arbejdsområdet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		service, err := newSyncService()
		if err != nil {
			return err
		}
		defer service.Close()

		markers, err := service.List(cmd.Context())
		if err != nil {
			return err
		}

		if len(markers) == 0 {
			fmt.Println("Ingen markører.")

			return nil
		}

		for _, m := range markers {
			note := ""
			if m.Note != "" {
				note = "  — " + m.Note
			}

			fmt.Printf("%-44s %-24s (%.5f, %.5f)%s\n", m.ID, m.Title, m.Lat, m.Lng, note)
		}

		return nil
	},
}

// resolveText turns the positional argument into a coordinate via the usual
// fallback chain.
func resolveText(ctx context.Context, text string) (*geosearch.ReverseResult, float64, float64, error) {
	client, err := newSearchHTTPClient()
	if err != nil {
		return nil, 0, 0, err
	}

	address := geosearch.NewAddressSource(client, searchOptions.RegistryURL)

	var foreign *geosearch.ForeignSource
	if searchOptions.ORSKey != "" {
		foreign = geosearch.NewForeignSource(
			client, searchOptions.ORSBaseURL, searchOptions.ORSKey, nil)
	}

	point := geosearch.NewResolver(address, foreign).Resolve(ctx, text, nil)
	if point == nil {
		return nil, 0, 0, fmt.Errorf("could not resolve %q to a coordinate", text)
	}

	place := geosearch.NewReverseResolver(address, foreign).Reverse(ctx, *point)

	return &place, point.Lat, point.Lng, nil
}

var markersAddCmd = &cobra.Command{
	Use:   "add <adresse eller koordinat>",
	Short: "Opret en markør i lageret",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newSyncService()
		if err != nil {
			return err
		}
		defer service.Close()

		text := strings.Join(args, " ")

		place, lat, lng, err := resolveText(cmd.Context(), text)
		if err != nil {
			return err
		}

		remote := markersync.RemoteMarker{
			ID:        marker.StableID(markersOptions.Workspace, markersOptions.MapID, spatial.Point{Lat: lat, Lng: lng}),
			Workspace: markersOptions.Workspace,
			MapID:     markersOptions.MapID,
			Lat:       lat,
			Lng:       lng,
			Title:     place.Label,
		}
		if place.Address != nil {
			remote.PostalCode = place.Address.PostalCode
		}

		created, err := service.Create(cmd.Context(), remote)
		if err != nil {
			return err
		}

		if !created {
			fmt.Printf("Markøren findes allerede: %s\n", remote.ID)

			return nil
		}

		fmt.Printf("Oprettet %s — %s\n", remote.ID, remote.Title)

		return nil
	},
}

var markersNoteCmd = &cobra.Command{
	Use:   "note <markør-id> <tekst>",
	Short: "Sæt noten på en markør",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// One-shot tools have no further edits coming, so patch directly
		// instead of waiting out the debounce window.
		client, err := markersync.NewClient(
			markersOptions.StoreURL,
			markersOptions.Workspace,
			markersOptions.Secret,
			httputils.ClientOptions{UserAgent: "danmarkskort/" + Version})
		if err != nil {
			return err
		}

		return client.PatchNote(cmd.Context(), args[0], strings.Join(args[1:], " "))
	},
}

var markersDeleteCmd = &cobra.Command{
	Use:   "delete <markør-id>",
	Short: "Slet en markør (kan fortrydes med restore)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, err := newSyncService()
		if err != nil {
			return err
		}
		defer service.Close()

		return service.Delete(cmd.Context(), args[0])
	},
}

var markersRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Gendan slettede markører",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		service, err := newSyncService()
		if err != nil {
			return err
		}
		defer service.Close()

		restored, err := service.Restore(cmd.Context(), markersync.RestoreScope(markersOptions.Scope))
		if err != nil {
			return err
		}

		if len(restored) == 0 {
			fmt.Println("Intet at gendanne.")

			return nil
		}

		for _, id := range restored {
			fmt.Println(id)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(markersCmd)
	markersCmd.AddCommand(markersListCmd)
	markersCmd.AddCommand(markersAddCmd)
	markersCmd.AddCommand(markersNoteCmd)
	markersCmd.AddCommand(markersDeleteCmd)
	markersCmd.AddCommand(markersRestoreCmd)

	markersCmd.PersistentFlags().StringVar(&markersOptions.StoreURL, "store-url", "http://localhost:8090",
		"base URL of the marker store")
	markersCmd.PersistentFlags().StringVar(&markersOptions.Workspace, "workspace", "default",
		"workspace to operate in")
	markersCmd.PersistentFlags().StringVar(&markersOptions.Secret, "secret", os.Getenv("MARKERSTORE_SECRET"),
		"shared secret for the workspace (default: $MARKERSTORE_SECRET)")
	markersCmd.PersistentFlags().StringVar(&markersOptions.MapID, "map", "map-1",
		"map the markers belong to")
	markersCmd.PersistentFlags().StringSliceVar(&markersOptions.Areas, "areas", nil,
		"postal code areas to list, e.g. 5000 or 5000-5299 or all")
	markersRestoreCmd.Flags().StringVar(&markersOptions.Scope, "scope", "last",
		"how far back to restore: last, hour or day")

	markersAddCmd.Flags().StringVar(&searchOptions.RegistryURL, "registry-url", "",
		"base URL for the national registries (default: public endpoint)")
	markersAddCmd.Flags().StringVar(&searchOptions.ORSKey, "ors-key", os.Getenv("ORS_API_KEY"),
		"API key for the global geocoder (default: $ORS_API_KEY)")
	markersAddCmd.Flags().StringVar(&searchOptions.ORSBaseURL, "ors-url", "",
		"base URL for the global geocoder (default: public endpoint)")
}
