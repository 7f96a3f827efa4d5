// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"

	"github.com/AndersKabel/danmarkskort/markerstore"
)

type serveFlags struct {
	DbPath    string
	Listen    string
	Workspace string
	Secret    string
	AuthFile  string
}

var serveOptions = &serveFlags{}

const storeDbFile = "danmarkskort.duckdb"

func openStoreDB() (*sql.DB, markerstore.MarkerRepository, error) {
	if err := os.MkdirAll(serveOptions.DbPath, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(serveOptions.DbPath, storeDbFile))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := markerstore.NewMarkerRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating marker schema: %w", err)
	}

	return db, repo, nil
}

// loadSecrets builds the workspace credential map from the auth file when
// given, otherwise from the --workspace/--secret pair.
func loadSecrets() (map[string]string, error) {
	if serveOptions.AuthFile != "" {
		raw, err := os.ReadFile(serveOptions.AuthFile)
		if err != nil {
			return nil, fmt.Errorf("reading auth file: %w", err)
		}

		secrets := map[string]string{}
		if err := json.Unmarshal(raw, &secrets); err != nil {
			return nil, fmt.Errorf("decoding auth file: %w", err)
		}

		return secrets, nil
	}

	if serveOptions.Secret == "" {
		return nil, fmt.Errorf("either --auth or --secret is required")
	}

	return map[string]string{serveOptions.Workspace: serveOptions.Secret}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Kør markørlageret",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		secrets, err := loadSecrets()
		if err != nil {
			return err
		}

		db, repo, err := openStoreDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return markerstore.NewServer(repo, secrets).Run(serveOptions.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveOptions.DbPath, "db-path", "db",
		"directory holding the marker database")
	serveCmd.Flags().StringVar(&serveOptions.Listen, "listen", "localhost:8090",
		"address to listen on")
	serveCmd.Flags().StringVar(&serveOptions.Workspace, "workspace", "default",
		"workspace name for single-workspace setups")
	serveCmd.Flags().StringVar(&serveOptions.Secret, "secret", os.Getenv("MARKERSTORE_SECRET"),
		"shared secret for the workspace (default: $MARKERSTORE_SECRET)")
	serveCmd.Flags().StringVar(&serveOptions.AuthFile, "auth", "",
		"JSON file mapping workspaces to shared secrets")
}
