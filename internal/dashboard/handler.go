package dashboard

import (
	"encoding/json"
	"time"

	"github.com/damgoweb/tokaido-orai/internal/state"
)

// watch turns state snapshots into broadcasts until the subscription closes
// or the server stops. Time-only changes are still sent so browser views can
// draw a progress bar; the subscription already coalesces bursts.
func (s *Server) watch(updates <-chan state.Snapshot) {
	var last state.Snapshot
	first := true
	for {
		select {
		case <-s.ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if first || snap.PointCount != last.PointCount {
				s.Broadcast(syncPointsMessage(snap))
			}
			if first || activeChanged(last, snap) {
				s.Broadcast(activeSegmentMessage(snap))
			}
			last, first = snap, false
		}
	}
}

func activeChanged(a, b state.Snapshot) bool {
	return a.Time != b.Time ||
		a.SegmentID != b.SegmentID ||
		a.StationID != b.StationID ||
		a.HasStation != b.HasStation ||
		a.Playing != b.Playing ||
		a.Duration != b.Duration
}

func activeSegmentMessage(snap state.Snapshot) Message {
	data := ActiveSegmentData{
		Time:     snap.Time,
		Duration: snap.Duration,
		Playing:  snap.Playing,
	}
	if snap.HasSegment {
		data.SegmentID = snap.SegmentID
	}
	if snap.HasStation {
		station := snap.StationID
		data.StationID = &station
	}
	raw, _ := json.Marshal(data)
	return Message{Type: MessageTypeActiveSegment, Timestamp: time.Now(), Data: raw}
}

func syncPointsMessage(snap state.Snapshot) Message {
	raw, _ := json.Marshal(SyncPointsData{Count: snap.PointCount})
	return Message{Type: MessageTypeSyncPoints, Timestamp: time.Now(), Data: raw}
}
