// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package trips

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ridemap/ridemap/hotspot"
	"github.com/ridemap/ridemap/spatial"
)

// Server exposes the trip aggregates and the clustering engine over HTTP.
type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

// Run registers the API routes and blocks serving them.
func (s *Server) Run(addr string) error {
	r := gin.Default()

	r.GET("/api/kpis", s.getKPIs)
	r.GET("/api/hotspots", s.getHotspots)
	r.GET("/api/trips-per-hour", s.getTripsPerHour)
	r.POST("/api/cluster", s.runClustering)

	return r.Run(addr)
}

// parseFilter reads the hour/borough query parameters. The borough is
// matched against the known boroughs ignoring case and accents.
func (s *Server) parseFilter(ctx *gin.Context) (Filter, error) {
	var filter Filter

	if hourStr := ctx.Query("hour"); hourStr != "" {
		hour, err := strconv.Atoi(hourStr)
		if err != nil || hour < 0 || hour > 23 {
			return filter, fmt.Errorf("invalid hour %q: must be 0-23", hourStr)
		}

		filter.Hour = &hour
	}

	if borough := ctx.Query("borough"); borough != "" {
		boroughs, err := s.repo.Boroughs()
		if err != nil {
			return filter, err
		}

		resolved, ok := ResolveBorough(borough, boroughs)
		if !ok {
			return filter, fmt.Errorf("unknown borough %q", borough)
		}

		filter.Borough = resolved
	}

	return filter, nil
}

func (s *Server) getKPIs(ctx *gin.Context) {
	filter, err := s.parseFilter(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	report, err := s.repo.KPIs(filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, report)
}

func (s *Server) getHotspots(ctx *gin.Context) {
	filter, err := s.parseFilter(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	summaries, err := s.repo.ClusterSummaries(filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"hotspots": summaries})
}

func (s *Server) getTripsPerHour(ctx *gin.Context) {
	filter, err := s.parseFilter(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	series, err := s.repo.TripsPerHour(filter.Borough)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"series": series})
}

type clusterRequest struct {
	Eps       *float64 `json:"eps"`
	MinPoints *int     `json:"min_points"`
}

// runClustering re-labels the filtered pickups with the supplied parameters
// and persists the result.
func (s *Server) runClustering(ctx *gin.Context) {
	filter, err := s.parseFilter(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	var req clusterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	params := hotspot.DefaultParams()
	if req.Eps != nil {
		params.Eps = *req.Eps
	}

	if req.MinPoints != nil {
		params.MinPoints = *req.MinPoints
	}

	pickups, err := s.repo.Pickups(filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	points := make([]spatial.Point, len(pickups))
	ids := make([]int64, len(pickups))

	for i, p := range pickups {
		points[i] = p.Point
		ids[i] = p.ID
	}

	labels, err := hotspot.Cluster(points, params)
	if err != nil {
		status := http.StatusInternalServerError
		if hotspot.IsParamError(err) || spatial.IsCoordinateError(err) {
			status = http.StatusBadRequest
		}

		ctx.JSON(status, gin.H{"error": err.Error()})

		return
	}

	if err := s.repo.SaveLabels(ids, labels); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	clusters, noise := hotspot.Summarize(labels)
	ctx.JSON(http.StatusOK, gin.H{
		"trips":    len(labels),
		"clusters": clusters,
		"noise":    noise,
	})
}
