// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package markerstore is the remote side of marker persistence: a DuckDB
// backed repository and the HTTP surface the sync client talks to.
package markerstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uber/h3-go/v4"

	"github.com/AndersKabel/danmarkskort/markersync"
	"github.com/AndersKabel/danmarkskort/spatial"
)

// ErrNotFound is returned for lookups of markers the store does not hold or
// has soft-deleted.
var ErrNotFound = errors.New("marker not found")

// StoredMarker is a marker row. Soft deletion flips Hidden and stamps
// DeletedAt; the row itself stays so a restore can bring it back.
type StoredMarker struct {
	ID         string         `json:"id"`
	Workspace  string         `json:"workspace"`
	MapID      string         `json:"mapId"`
	Point      *spatial.Point `json:"point"`
	Title      string         `json:"title"`
	Note       string         `json:"note"`
	PostalCode string         `json:"postalCode"`
	Hidden     bool           `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  *time.Time     `json:"-"`
	H3Res5     int64          `json:"-"`
	H3Res8     int64          `json:"-"`
}

// computeH3 derives the coarse and fine cell of the marker's position.
// Res 5 buckets markers for area queries, res 8 pins down near-duplicates.
func (m *StoredMarker) computeH3() error {
	if m.Point == nil {
		m.H3Res5 = 0
		m.H3Res8 = 0

		return nil
	}

	latLng := h3.NewLatLng(m.Point.Lat, m.Point.Lng)
	for _, res := range []int{5, 8} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		switch res {
		case 5:
			m.H3Res5 = int64(cell)
		case 8:
			m.H3Res8 = int64(cell)
		}
	}

	return nil
}

// MarkerRepository handles persistence of markers.
type MarkerRepository interface {
	// CreateSchema creates the markers table
	CreateSchema() error

	// Save inserts or updates a marker keyed by (workspace, id)
	Save(m *StoredMarker) error

	// Get returns a visible marker
	Get(workspace, id string) (*StoredMarker, error)

	// List returns all visible markers of a workspace
	List(workspace string) ([]*StoredMarker, error)

	// SetNote replaces the note of a visible marker
	SetNote(workspace, id, note string) error

	// SoftDelete hides a marker and stamps its deletion time
	SoftDelete(workspace, id string) error

	// Restore unhides markers within the scope and returns their ids
	Restore(workspace string, scope markersync.RestoreScope) ([]string, error)

	// Nearby returns visible markers sharing the coarse cell of a point
	Nearby(workspace string, p spatial.Point) ([]*StoredMarker, error)

	// Count returns the number of visible markers in a workspace
	Count(workspace string) (int, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlMarkerRepository struct {
	db *sql.DB
}

// NewMarkerRepository creates a new marker repository.
func NewMarkerRepository(db *sql.DB) MarkerRepository {
	return &sqlMarkerRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlMarkerRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlMarkerRepository) CreateSchema() error {
	// DuckDB needs to load the spatial extension
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS markers (
			id VARCHAR NOT NULL,
			workspace VARCHAR NOT NULL,
			map_id VARCHAR NOT NULL,
			point POINT_2D NOT NULL,
			title VARCHAR NOT NULL,
			note TEXT NOT NULL,
			postal_code VARCHAR,
			hidden BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP,
			h3_res5 UBIGINT,
			h3_res8 UBIGINT,
			PRIMARY KEY (workspace, id)
		);
	`)

	return err
}

func (r *sqlMarkerRepository) Save(m *StoredMarker) error {
	if m.Point == nil {
		return errors.New("point can't be null")
	}

	if err := m.computeH3(); err != nil {
		return err
	}

	m.UpdatedAt = time.Now()

	// The existence check must see soft-deleted rows too: they still own
	// the (workspace, id) key, and saving the same spot again revives them.
	var exists bool
	err := r.db.QueryRow(`
		SELECT COUNT(*) > 0 FROM markers WHERE workspace = ? AND id = ?
	`, m.Workspace, m.ID).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		_, err = r.db.Exec(`
			UPDATE markers
			SET point = ST_Point(?, ?), title = ?, note = ?,
			    postal_code = ?, updated_at = ?,
			    h3_res5 = ?, h3_res8 = ?,
			    hidden = FALSE, deleted_at = NULL
			WHERE workspace = ? AND id = ?
		`,
			m.Point.Lng,
			m.Point.Lat,
			m.Title,
			m.Note,
			m.PostalCode,
			m.UpdatedAt,
			m.H3Res5,
			m.H3Res8,
			m.Workspace,
			m.ID,
		)

		return err
	}

	m.CreatedAt = m.UpdatedAt

	_, err = r.db.Exec(`
		INSERT INTO markers(
			id,
			workspace,
			map_id,
			point,
			title,
			note,
			postal_code,
			hidden,
			created_at,
			updated_at,
			h3_res5,
			h3_res8
		)
		VALUES (?, ?, ?, ST_Point(?, ?), ?, ?, ?, FALSE, ?, ?, ?, ?)
	`,
		m.ID,
		m.Workspace,
		m.MapID,
		m.Point.Lng,
		m.Point.Lat,
		m.Title,
		m.Note,
		m.PostalCode,
		m.CreatedAt,
		m.UpdatedAt,
		m.H3Res5,
		m.H3Res8,
	)

	return err
}

var baseSelect = `
	SELECT id, workspace, map_id, point, title, note, postal_code,
	       created_at, updated_at, h3_res5, h3_res8
	FROM markers
`

func (r *sqlMarkerRepository) scan(rows *sql.Rows) (*StoredMarker, error) {
	m := &StoredMarker{Point: &spatial.Point{}}

	var postalCode sql.NullString

	var h3Res5, h3Res8 sql.NullInt64

	err := rows.Scan(
		&m.ID,
		&m.Workspace,
		&m.MapID,
		&m.Point,
		&m.Title,
		&m.Note,
		&postalCode,
		&m.CreatedAt,
		&m.UpdatedAt,
		&h3Res5,
		&h3Res8,
	)
	if err != nil {
		return nil, err
	}

	if postalCode.Valid {
		m.PostalCode = postalCode.String
	}

	if h3Res5.Valid {
		m.H3Res5 = h3Res5.Int64
	}

	if h3Res8.Valid {
		m.H3Res8 = h3Res8.Int64
	}

	return m, nil
}

func (r *sqlMarkerRepository) list(query string, args []any) ([]*StoredMarker, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []*StoredMarker

	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}

		markers = append(markers, m)
	}

	return markers, rows.Err()
}

func (r *sqlMarkerRepository) Get(workspace, id string) (*StoredMarker, error) {
	markers, err := r.list(baseSelect+` WHERE workspace = ? AND id = ? AND NOT hidden`,
		[]any{workspace, id},
	)
	if err != nil {
		return nil, err
	}

	if len(markers) == 0 {
		return nil, ErrNotFound
	}

	return markers[0], nil
}

func (r *sqlMarkerRepository) List(workspace string) ([]*StoredMarker, error) {
	return r.list(baseSelect+` WHERE workspace = ? AND NOT hidden ORDER BY created_at, id`,
		[]any{workspace},
	)
}

func (r *sqlMarkerRepository) SetNote(workspace, id, note string) error {
	result, err := r.db.Exec(`
		UPDATE markers
		SET note = ?, updated_at = ?
		WHERE workspace = ? AND id = ? AND NOT hidden
	`, note, time.Now(), workspace, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *sqlMarkerRepository) SoftDelete(workspace, id string) error {
	now := time.Now()

	result, err := r.db.Exec(`
		UPDATE markers
		SET hidden = TRUE, deleted_at = ?, updated_at = ?
		WHERE workspace = ? AND id = ? AND NOT hidden
	`, now, now, workspace, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *sqlMarkerRepository) Restore(workspace string, scope markersync.RestoreScope) ([]string, error) {
	now := time.Now()

	var rows *sql.Rows

	var err error

	switch scope {
	case markersync.RestoreLast:
		rows, err = r.db.Query(`
			UPDATE markers
			SET hidden = FALSE, deleted_at = NULL, updated_at = ?
			WHERE workspace = ? AND hidden
			  AND deleted_at = (
				SELECT MAX(deleted_at) FROM markers WHERE workspace = ? AND hidden
			  )
			RETURNING id
		`, now, workspace, workspace)
	case markersync.RestoreHour, markersync.RestoreDay:
		window := time.Hour
		if scope == markersync.RestoreDay {
			window = 24 * time.Hour
		}

		rows, err = r.db.Query(`
			UPDATE markers
			SET hidden = FALSE, deleted_at = NULL, updated_at = ?
			WHERE workspace = ? AND hidden AND deleted_at >= ?
			RETURNING id
		`, now, workspace, now.Add(-window))
	default:
		return nil, fmt.Errorf("invalid restore scope %q", scope)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var restored []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		restored = append(restored, id)
	}

	return restored, rows.Err()
}

func (r *sqlMarkerRepository) Nearby(workspace string, p spatial.Point) ([]*StoredMarker, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), 5)
	if err != nil {
		return nil, fmt.Errorf("error converting to h3 cell: %w", err)
	}

	return r.list(baseSelect+` WHERE workspace = ? AND h3_res5 = ? AND NOT hidden ORDER BY created_at, id`,
		[]any{workspace, int64(cell)},
	)
}

func (r *sqlMarkerRepository) Count(workspace string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM markers WHERE workspace = ? AND NOT hidden", workspace,
	).Scan(&count)

	return count, err
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
