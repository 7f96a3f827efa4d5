// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package markersync keeps a session's persisted markers in step with the
// remote marker store.
package markersync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/utils/httputils"
)

// ErrUnauthorized is returned when the store rejects the credentials even
// after a fresh login.
var ErrUnauthorized = errors.New("marker store rejected credentials")

// sessionTTL caps how long a store session cookie is trusted client-side.
const sessionTTL = 30 * time.Minute

// RemoteMarker is the store's wire representation of a marker.
type RemoteMarker struct {
	ID         string    `json:"id"`
	Workspace  string    `json:"workspace"`
	MapID      string    `json:"mapId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Title      string    `json:"title"`
	Note       string    `json:"note"`
	PostalCode string    `json:"postalCode"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RestoreScope selects how far back a restore reaches.
type RestoreScope string

const (
	// RestoreLast brings back the most recently deleted marker.
	RestoreLast RestoreScope = "last"
	// RestoreHour brings back everything deleted within the last hour.
	RestoreHour RestoreScope = "hour"
	// RestoreDay brings back everything deleted within the last day.
	RestoreDay RestoreScope = "day"
)

// Valid reports whether the scope is one the store understands.
func (s RestoreScope) Valid() bool {
	switch s {
	case RestoreLast, RestoreHour, RestoreDay:
		return true
	}
	return false
}

// Client talks to the marker store over its REST surface. Authentication is
// a session cookie; a request bounced with 401 triggers exactly one fresh
// login and one retry before the error is terminal.
type Client struct {
	http      *http.Client
	baseURL   string
	workspace string
	secret    string
}

// NewClient builds a store client. The transport carries a cookie jar whose
// sessions expire client-side even when the store omits cookie lifetimes.
func NewClient(baseURL, workspace, secret string, opts httputils.ClientOptions) (*Client, error) {
	if opts.SessionTTL == 0 {
		opts.SessionTTL = sessionTTL
	}
	httpClient, err := httputils.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("building store transport: %w", err)
	}
	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		workspace: workspace,
		secret:    secret,
	}, nil
}

// Login opens a store session. The session cookie lands in the jar.
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{"workspace": c.workspace, "secret": c.secret}
	resp, err := c.send(ctx, http.MethodPost, "/auth/login", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed with HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// ListMarkers fetches every visible marker of the workspace.
func (c *Client) ListMarkers(ctx context.Context) ([]RemoteMarker, error) {
	var markers []RemoteMarker
	if err := c.do(ctx, http.MethodGet, "/markers", nil, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// CreateMarker writes a marker. The store upserts on the marker id, so
// resending an existing id is harmless.
func (c *Client) CreateMarker(ctx context.Context, m RemoteMarker) error {
	return c.do(ctx, http.MethodPost, "/markers", m, nil)
}

// PatchNote replaces the note text of a stored marker.
func (c *Client) PatchNote(ctx context.Context, id, note string) error {
	payload := map[string]string{"note": note}
	return c.do(ctx, http.MethodPatch, "/markers/"+id, payload, nil)
}

// DeleteMarker soft-deletes a stored marker.
func (c *Client) DeleteMarker(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/markers/"+id, nil, nil)
}

// Restore brings soft-deleted markers back and returns their ids.
func (c *Client) Restore(ctx context.Context, scope RestoreScope) ([]string, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid restore scope %q", scope)
	}
	payload := map[string]string{"scope": string(scope)}
	var result struct {
		Restored []string `json:"restored"`
	}
	if err := c.do(ctx, http.MethodPost, "/markers/restore", payload, &result); err != nil {
		return nil, err
	}
	return result.Restored, nil
}

// do runs one authenticated request. A 401 means the session lapsed: log in
// again and retry once.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		log.Debug().Str("path", path).Msg("session lapsed, logging in again")
		if err := c.Login(ctx); err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return ErrUnauthorized
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store returned HTTP %d for %s %s: %s", resp.StatusCode, method, path, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding store response for %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request %s %s: %w", method, path, err)
	}
	return resp, nil
}
