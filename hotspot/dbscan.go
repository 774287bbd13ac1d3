// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

// Package hotspot labels dense groups of pickup coordinates using
// density-based clustering over a great-circle metric.
//
// Given a point set and two parameters — an epsilon radius and a minimum
// neighborhood size — every point is classified as part of a cluster or as
// noise. A point whose epsilon-neighborhood holds at least MinPoints points
// is a core point; clusters are the connected components of core points
// under the epsilon relation, plus the border points they reach. The result
// is one label per input point, aligned with input order: a cluster id
// starting at 0, or Noise.
//
// The labeling is deterministic for a fixed input order: the outer scan
// follows input order, the expansion queue is FIFO, and a border point
// shared between two dense regions goes to the first cluster that reaches
// it.
package hotspot

import (
	"math"
	"runtime"
	"sync"

	"github.com/ridemap/ridemap/spatial"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

// unvisited marks points the outer scan has not reached. It never appears
// in returned labels.
const unvisited = -2

// Params configures a clustering run. Eps is an angular radius in radians
// (see spatial.Radians to convert from kilometers); neighborhood membership
// is inclusive (distance <= Eps). MinPoints counts the point itself.
type Params struct {
	Eps       float64
	MinPoints int
}

// DefaultParams are the parameters used for citywide pickup hotspots:
// roughly 19 km reach with at least 100 pickups per dense region.
func DefaultParams() Params {
	return Params{Eps: 0.003, MinPoints: 100}
}

func (p Params) validate() error {
	if math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) {
		return &ParamError{Param: "eps", Value: p.Eps, Why: "must be finite"}
	}

	if p.Eps < 0 {
		return &ParamError{Param: "eps", Value: p.Eps, Why: "must be >= 0"}
	}

	if p.MinPoints < 1 {
		return &ParamError{Param: "min-points", Value: p.MinPoints, Why: "must be >= 1"}
	}

	return nil
}

// Cluster builds a spatial index over points and labels them. Invalid
// parameters and malformed coordinates are reported before any labeling
// happens; an empty input yields an empty, non-error result.
func Cluster(points []spatial.Point, params Params) ([]int, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	index, err := spatial.NewIndex(points, spatial.DefaultLeafSize)
	if err != nil {
		return nil, err
	}

	return ClusterIndexed(index, params)
}

// ClusterIndexed labels the points of an already-built index. The index and
// params must share the radian unit convention.
func ClusterIndexed(index *spatial.Index, params Params) ([]int, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	n := index.NumPoints()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	core := coreness(index, params)

	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		if !core[i] {
			// Provisional: a later expansion may still claim it as a
			// border point.
			labels[i] = Noise

			continue
		}

		labels[i] = clusterID
		queue := index.RangeQuery(i, params.Eps)

		for head := 0; head < len(queue); head++ {
			q := queue[head]

			if labels[q] == Noise {
				labels[q] = clusterID // border point, not re-expanded

				continue
			}

			if labels[q] != unvisited {
				continue
			}

			labels[q] = clusterID
			if core[q] {
				queue = append(queue, index.RangeQuery(q, params.Eps)...)
			}
		}

		clusterID++
	}

	return labels, nil
}

// coreness computes, for every point, whether its epsilon-neighborhood
// reaches MinPoints. The checks are independent reads of the immutable
// index, so they run on a bounded worker pool ahead of the sequential
// labeling pass. Only neighborhood sizes are precomputed; no cluster state
// is touched, so the final labels are identical to a fully sequential run.
func coreness(index *spatial.Index, params Params) []bool {
	n := index.NumPoints()
	core := make([]bool, n)

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, runtime.GOMAXPROCS(0))

	for i := 0; i < n; i++ {
		wg.Add(1)

		semaphore <- struct{}{}

		go func(i int) {
			defer wg.Done()

			core[i] = index.RangeCount(i, params.Eps) >= params.MinPoints

			<-semaphore
		}(i)
	}

	wg.Wait()

	return core
}

// Summarize reports the number of clusters and noise points in a label
// slice produced by Cluster.
func Summarize(labels []int) (clusters, noise int) {
	for _, l := range labels {
		switch {
		case l == Noise:
			noise++
		case l+1 > clusters:
			clusters = l + 1
		}
	}

	return clusters, noise
}
