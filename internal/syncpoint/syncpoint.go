// Package syncpoint holds the sync-point model: the (time, segment) anchors
// that tie narration playback to the text, and the lookup from a playback
// timestamp to the active segment.
package syncpoint

import (
	"sort"
)

// Point anchors a playback time, in seconds, to a text segment.
type Point struct {
	Time      float64 `json:"time"`
	SegmentID string  `json:"segmentId"`
}

// ActiveSegmentAt returns the segment active at time t. Points must be
// sorted ascending by time. The active point is the last one whose time is
// <= t; before the first point the first segment is returned. It reports
// false only when points is empty.
//
// ActiveSegmentAt keeps no state and never writes to points, so any number
// of views may call it concurrently on the same slice.
func ActiveSegmentAt(t float64, points []Point) (string, bool) {
	if len(points) == 0 {
		return "", false
	}
	// First index whose time is strictly after t.
	i := sort.Search(len(points), func(i int) bool { return points[i].Time > t })
	if i == 0 {
		return points[0].SegmentID, true
	}
	return points[i-1].SegmentID, true
}

// Sort returns a copy of points ordered by time. Points with equal times
// keep their relative order.
func Sort(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// IsSorted reports whether points are in non-decreasing time order.
func IsSorted(points []Point) bool {
	return sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Time < points[j].Time })
}

// TimeForSegment returns the time of the first point anchoring segmentID.
// Used to seek playback to a segment or station.
func TimeForSegment(segmentID string, points []Point) (float64, bool) {
	for _, p := range points {
		if p.SegmentID == segmentID {
			return p.Time, true
		}
	}
	return 0, false
}

// Even spreads ids evenly over duration seconds, the first at zero. It is
// the fallback mapping for a recording that has never been synced by hand.
func Even(duration float64, ids []string) []Point {
	if len(ids) == 0 || duration <= 0 {
		return nil
	}
	step := duration / float64(len(ids))
	points := make([]Point, len(ids))
	for i, id := range ids {
		points[i] = Point{Time: float64(i) * step, SegmentID: id}
	}
	return points
}
