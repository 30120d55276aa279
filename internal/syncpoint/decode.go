package syncpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Decode parses a JSON array of {time, segmentId} objects. It is shared by
// document import and legacy migration, so it checks types rather than
// trusting json.Unmarshal's zero values: a missing time or a numeric
// segmentId is an error, not a zero. Extra keys such as a storage row id
// are ignored. All failures are *ValidationError.
func Decode(raw json.RawMessage) ([]Point, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &ValidationError{Field: "syncData", Reason: "missing"}
	}
	if trimmed[0] != '[' {
		return nil, &ValidationError{Field: "syncData", Reason: "not an array"}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &ValidationError{Field: "syncData", Reason: err.Error()}
	}

	points := make([]Point, 0, len(elems))
	for i, elem := range elems {
		p, err := decodePoint(elem)
		if err != nil {
			if err.Field == "" {
				err.Field = fmt.Sprintf("syncData[%d]", i)
			} else {
				err.Field = fmt.Sprintf("syncData[%d].%s", i, err.Field)
			}
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func decodePoint(raw json.RawMessage) (Point, *ValidationError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Point{}, &ValidationError{Reason: "not an object"}
	}

	rawTime, ok := fields["time"]
	if !ok {
		return Point{}, &ValidationError{Field: "time", Reason: "missing"}
	}
	var t float64
	if err := json.Unmarshal(rawTime, &t); err != nil || isNull(rawTime) {
		return Point{}, &ValidationError{Field: "time", Reason: "not a number"}
	}
	if err := CheckTime(t); err != nil {
		err.Field = "time"
		return Point{}, err
	}

	rawID, ok := fields["segmentId"]
	if !ok {
		return Point{}, &ValidationError{Field: "segmentId", Reason: "missing"}
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil || isNull(rawID) {
		return Point{}, &ValidationError{Field: "segmentId", Reason: "not a string"}
	}
	if id == "" {
		return Point{}, &ValidationError{Field: "segmentId", Reason: "empty"}
	}

	return Point{Time: t, SegmentID: id}, nil
}

// CheckTime rejects negative, NaN and infinite playback times.
func CheckTime(t float64) *ValidationError {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return &ValidationError{Field: "time", Reason: "not finite"}
	}
	if t < 0 {
		return &ValidationError{Field: "time", Reason: "negative"}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
