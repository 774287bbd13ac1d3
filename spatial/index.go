// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"math"
	"sort"
)

// DefaultLeafSize is the bucket size below which the index stops partitioning.
const DefaultLeafSize = 16

// Index is a ball tree over a fixed set of points supporting exact
// great-circle radius queries. It is built once and never mutated; all
// distances are angular (radians), see Point.AngularDistance.
//
// The index stores only positions into the point slice it was built from,
// and results refer back to those positions.
type Index struct {
	lat, lng []float64 // coordinates in radians, caller order
	order    []int     // permutation: tree position → original position
	nodes    []indexNode
	leafSize int
}

// indexNode covers order[start:end]. Every point in that range lies within
// radius of the pivot. Leaves have inner == -1.
type indexNode struct {
	pivot        int // original position of the pivot point
	radius       float64
	start, end   int
	inner, outer int
}

// NewIndex builds a ball tree over points. leafSize <= 0 selects
// DefaultLeafSize. Points with NaN, infinite, or out-of-range coordinates
// are rejected with a *CoordinateError identifying the offending record.
func NewIndex(points []Point, leafSize int) (*Index, error) {
	if leafSize <= 0 {
		leafSize = DefaultLeafSize
	}

	n := len(points)
	x := &Index{
		lat:      make([]float64, n),
		lng:      make([]float64, n),
		order:    make([]int, n),
		leafSize: leafSize,
	}

	for i, p := range points {
		switch {
		case math.IsNaN(p.Lat) || math.IsNaN(p.Lng):
			return nil, &CoordinateError{Index: i, Point: p, Why: "coordinate is NaN"}
		case math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0):
			return nil, &CoordinateError{Index: i, Point: p, Why: "coordinate is infinite"}
		case p.Lat < -90 || p.Lat > 90:
			return nil, &CoordinateError{Index: i, Point: p, Why: "latitude out of range [-90,90]"}
		case p.Lng < -180 || p.Lng > 180:
			return nil, &CoordinateError{Index: i, Point: p, Why: "longitude out of range [-180,180]"}
		}

		x.lat[i] = p.Lat * math.Pi / 180
		x.lng[i] = p.Lng * math.Pi / 180
		x.order[i] = i
	}

	if n > 0 {
		x.build(0, n)
	}

	return x, nil
}

// NumPoints returns the number of indexed points.
func (x *Index) NumPoints() int {
	return len(x.lat)
}

// build partitions order[start:end] and returns the new node's id.
func (x *Index) build(start, end int) int {
	// The pivot is the point farthest from the mean of the partition's
	// radian coordinates. The mean is only a reproducible reference for
	// pivot selection, so averaging angles is fine here.
	var mLat, mLng float64
	for _, p := range x.order[start:end] {
		mLat += x.lat[p]
		mLng += x.lng[p]
	}

	count := float64(end - start)
	mLat /= count
	mLng /= count

	pivot := x.order[start]
	best := -1.0

	for _, p := range x.order[start:end] {
		d := haversine(mLat, mLng, x.lat[p], x.lng[p])
		if d > best || (d == best && p < pivot) {
			best = d
			pivot = p
		}
	}

	var radius float64
	for _, p := range x.order[start:end] {
		if d := x.distance(pivot, p); d > radius {
			radius = d
		}
	}

	id := len(x.nodes)
	x.nodes = append(x.nodes, indexNode{pivot: pivot, radius: radius, start: start, end: end, inner: -1, outer: -1})

	if end-start <= x.leafSize {
		return id
	}

	// Median split by distance to the pivot: the closer half forms the
	// inside-ball child, the rest the outside-ball child. Ties are broken
	// by original position so the layout is a pure function of input order.
	sub := x.order[start:end]
	sort.Slice(sub, func(i, j int) bool {
		di, dj := x.distance(pivot, sub[i]), x.distance(pivot, sub[j])
		if di != dj {
			return di < dj
		}

		return sub[i] < sub[j]
	})

	mid := start + (end-start)/2
	inner := x.build(start, mid)
	outer := x.build(mid, end)
	x.nodes[id].inner = inner
	x.nodes[id].outer = outer

	return id
}

func (x *Index) distance(i, j int) float64 {
	return haversine(x.lat[i], x.lng[i], x.lat[j], x.lng[j])
}

// RangeQuery returns the positions of every indexed point within radius
// (radians, inclusive) of point i, in ascending order. The center point is
// always part of its own neighborhood.
func (x *Index) RangeQuery(i int, radius float64) []int {
	if len(x.nodes) == 0 {
		return nil
	}

	var hits []int

	x.search(0, i, radius, func(p int) { hits = append(hits, p) })
	sort.Ints(hits)

	return hits
}

// RangeCount returns the size of the neighborhood RangeQuery would return,
// without materializing it.
func (x *Index) RangeCount(i int, radius float64) int {
	if len(x.nodes) == 0 {
		return 0
	}

	count := 0
	x.search(0, i, radius, func(int) { count++ })

	return count
}

// search walks the tree pruning any node whose covering ball cannot
// intersect the query ball, and scans leaves with exact distance checks.
func (x *Index) search(node, q int, radius float64, emit func(int)) {
	nd := &x.nodes[node]

	if x.distance(q, nd.pivot)-radius > nd.radius {
		return
	}

	if nd.inner < 0 {
		for _, p := range x.order[nd.start:nd.end] {
			if x.distance(q, p) <= radius {
				emit(p)
			}
		}

		return
	}

	x.search(nd.inner, q, radius, emit)
	x.search(nd.outer, q, radius, emit)
}
