// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package markerstore

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/markersync"
	"github.com/AndersKabel/danmarkskort/spatial"
)

// sessionCookie is the name of the session cookie the server issues.
const sessionCookie = "session"

// sessionLifetime is how long a login stays valid server-side.
const sessionLifetime = 30 * time.Minute

// Server exposes the marker store over HTTP. Authentication is a per
// workspace shared secret exchanged for a session cookie.
type Server struct {
	repo     MarkerRepository
	secrets  map[string]string
	sessions *cache.Cache
}

// NewServer builds a server over the given repository. secrets maps each
// workspace to its shared secret; unknown workspaces cannot log in.
func NewServer(repo MarkerRepository, secrets map[string]string) *Server {
	return &Server{
		repo:     repo,
		secrets:  secrets,
		sessions: cache.New(sessionLifetime, sessionLifetime),
	}
}

// Handler builds the route tree. Split from Run so tests can drive it
// through httptest.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/auth/login", s.login)

	authorized := r.Group("/", s.requireSession)
	authorized.GET("/markers", s.listMarkers)
	authorized.POST("/markers", s.saveMarker)
	authorized.PATCH("/markers/:id", s.patchNote)
	authorized.DELETE("/markers/:id", s.deleteMarker)
	authorized.POST("/markers/restore", s.restoreMarkers)

	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	log.Info().Str("addr", addr).Msg("marker store listening")

	return s.Handler().Run(addr)
}

type loginRequest struct {
	Workspace string `json:"workspace"`
	Secret    string `json:"secret"`
}

func (s *Server) login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	secret, ok := s.secrets[req.Workspace]
	if !ok || subtle.ConstantTimeCompare([]byte(secret), []byte(req.Secret)) != 1 {
		log.Warn().Str("workspace", req.Workspace).Msg("login rejected")
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid workspace or secret"})

		return
	}

	session := ulid.Make().String()
	s.sessions.Set(session, req.Workspace, cache.DefaultExpiration)

	ctx.SetCookie(sessionCookie, session, int(sessionLifetime.Seconds()), "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// requireSession resolves the session cookie to a workspace and aborts with
// 401 when it is missing or lapsed.
func (s *Server) requireSession(ctx *gin.Context) {
	session, err := ctx.Cookie(sessionCookie)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})

		return
	}

	workspace, ok := s.sessions.Get(session)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})

		return
	}

	ctx.Set("workspace", workspace.(string))
	ctx.Next()
}

func (s *Server) workspace(ctx *gin.Context) string {
	return ctx.GetString("workspace")
}

func toWire(m *StoredMarker) markersync.RemoteMarker {
	wire := markersync.RemoteMarker{
		ID:         m.ID,
		Workspace:  m.Workspace,
		MapID:      m.MapID,
		Title:      m.Title,
		Note:       m.Note,
		PostalCode: m.PostalCode,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Point != nil {
		wire.Lat = m.Point.Lat
		wire.Lng = m.Point.Lng
	}

	return wire
}

func (s *Server) listMarkers(ctx *gin.Context) {
	markers, err := s.repo.List(s.workspace(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	wire := make([]markersync.RemoteMarker, 0, len(markers))
	for _, m := range markers {
		wire = append(wire, toWire(m))
	}

	ctx.JSON(http.StatusOK, wire)
}

func (s *Server) saveMarker(ctx *gin.Context) {
	var req markersync.RemoteMarker
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if req.ID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "marker id is required"})

		return
	}

	marker := &StoredMarker{
		ID:        req.ID,
		Workspace: s.workspace(ctx),
		MapID:     req.MapID,
		Point: &spatial.Point{
			Lat: req.Lat,
			Lng: req.Lng,
		},
		Title:      req.Title,
		Note:       req.Note,
		PostalCode: req.PostalCode,
	}

	if err := s.repo.Save(marker); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

type patchNoteRequest struct {
	Note string `json:"note"`
}

func (s *Server) patchNote(ctx *gin.Context) {
	var req patchNoteRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	err := s.repo.SetNote(s.workspace(ctx), ctx.Param("id"), req.Note)
	if errors.Is(err, ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no such marker"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteMarker(ctx *gin.Context) {
	err := s.repo.SoftDelete(s.workspace(ctx), ctx.Param("id"))
	if errors.Is(err, ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no such marker"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

type restoreRequest struct {
	Scope string `json:"scope"`
}

func (s *Server) restoreMarkers(ctx *gin.Context) {
	var req restoreRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	scope := markersync.RestoreScope(req.Scope)
	if !scope.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid restore scope"})

		return
	}

	restored, err := s.repo.Restore(s.workspace(ctx), scope)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if restored == nil {
		restored = []string{}
	}

	ctx.JSON(http.StatusOK, gin.H{"restored": restored})
}
