// Package catalog provides the read-only segment and station data: the
// ordered list of narrated text segments and the way-stations they belong to.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Segment is a contiguous unit of narrated text tied to one station.
type Segment struct {
	ID        string `json:"id" yaml:"id"`
	StationID int    `json:"stationId" yaml:"stationId"`
	Text      string `json:"text" yaml:"text"`
	Ruby      string `json:"ruby,omitempty" yaml:"ruby,omitempty"`
}

// Station is a waypoint along the route. ID 0 is the origin.
type Station struct {
	ID         int     `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	ModernName string  `json:"modernName" yaml:"modernName"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lng        float64 `json:"lng" yaml:"lng"`
}

// Document is the on-disk catalog format.
type Document struct {
	Version  string    `json:"version" yaml:"version"`
	Segments []Segment `json:"segments" yaml:"segments"`
	Stations []Station `json:"stations" yaml:"stations"`
}

// Catalog is an immutable, indexed view of a Document.
type Catalog struct {
	version    string
	segments   []Segment
	stations   []Station
	segmentIdx map[string]int
	stationIdx map[int]int
}

// Load reads a catalog from a .json, .yaml or .yml file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
	}

	c, err := New(doc.Segments, doc.Stations)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	c.version = doc.Version
	return c, nil
}

// New builds a Catalog, rejecting empty or duplicate IDs. The slices are
// copied.
func New(segments []Segment, stations []Station) (*Catalog, error) {
	c := &Catalog{
		segments:   append([]Segment(nil), segments...),
		stations:   append([]Station(nil), stations...),
		segmentIdx: make(map[string]int, len(segments)),
		stationIdx: make(map[int]int, len(stations)),
	}
	for i, s := range c.segments {
		if s.ID == "" {
			return nil, fmt.Errorf("segment %d has no id", i)
		}
		if _, dup := c.segmentIdx[s.ID]; dup {
			return nil, fmt.Errorf("duplicate segment id %q", s.ID)
		}
		c.segmentIdx[s.ID] = i
	}
	for i, st := range c.stations {
		if _, dup := c.stationIdx[st.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %d", st.ID)
		}
		c.stationIdx[st.ID] = i
	}
	return c, nil
}

// Version returns the document version string, if any.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of segments.
func (c *Catalog) Len() int { return len(c.segments) }

// At returns the i-th segment in narration order.
func (c *Catalog) At(i int) Segment { return c.segments[i] }

// Segments returns a copy of all segments in narration order.
func (c *Catalog) Segments() []Segment {
	return append([]Segment(nil), c.segments...)
}

// SegmentIDs returns segment IDs in narration order.
func (c *Catalog) SegmentIDs() []string {
	ids := make([]string, len(c.segments))
	for i, s := range c.segments {
		ids[i] = s.ID
	}
	return ids
}

// Stations returns a copy of all stations.
func (c *Catalog) Stations() []Station {
	return append([]Station(nil), c.stations...)
}

// Segment looks up a segment by ID.
func (c *Catalog) Segment(id string) (Segment, bool) {
	i, ok := c.segmentIdx[id]
	if !ok {
		return Segment{}, false
	}
	return c.segments[i], true
}

// Index returns the narration position of a segment.
func (c *Catalog) Index(id string) (int, bool) {
	i, ok := c.segmentIdx[id]
	return i, ok
}

// Station looks up a station by ID.
func (c *Catalog) Station(id int) (Station, bool) {
	i, ok := c.stationIdx[id]
	if !ok {
		return Station{}, false
	}
	return c.stations[i], true
}

// StationForSegment returns the station a segment belongs to. Unknown
// segments report false; the station ID itself is not checked against the
// station list.
func (c *Catalog) StationForSegment(segmentID string) (int, bool) {
	if c == nil {
		return 0, false
	}
	s, ok := c.Segment(segmentID)
	if !ok {
		return 0, false
	}
	return s.StationID, true
}

// FirstSegmentOfStation returns the earliest segment, in narration order,
// that belongs to stationID.
func (c *Catalog) FirstSegmentOfStation(stationID int) (Segment, bool) {
	for _, s := range c.segments {
		if s.StationID == stationID {
			return s, true
		}
	}
	return Segment{}, false
}
