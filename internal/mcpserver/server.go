// Package mcpserver exposes read-only sync lookups as MCP tools, so an
// assistant can ask which segment plays at a given time or fetch a backup
// document without touching the database directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/damgoweb/tokaido-orai/internal/backup"
	"github.com/damgoweb/tokaido-orai/internal/catalog"
	"github.com/damgoweb/tokaido-orai/internal/syncpoint"
)

// Version is reported in the MCP handshake.
const Version = "0.1.0"

// Store is the read side of the sync point store.
type Store interface {
	backup.Source
}

// Server wires the tools to a store and catalog.
type Server struct {
	store   Store
	catalog *catalog.Catalog
	mcp     *server.MCPServer
	now     func() time.Time
}

// ActiveSegmentResult is returned by the active_segment tool.
type ActiveSegmentResult struct {
	Time        float64 `json:"time"`
	SegmentID   string  `json:"segmentId,omitempty"`
	Text        string  `json:"text,omitempty"`
	StationID   *int    `json:"stationId,omitempty"`
	StationName string  `json:"stationName,omitempty"`
}

// New creates the MCP server and registers its tools.
func New(store Store, cat *catalog.Catalog) *Server {
	s := &Server{
		store:   store,
		catalog: cat,
		mcp:     server.NewMCPServer("tokaido", Version, server.WithToolCapabilities(false)),
		now:     time.Now,
	}

	s.mcp.AddTool(mcp.NewTool("active_segment",
		mcp.WithDescription("Return the text segment and station active at a playback time"),
		mcp.WithNumber("time", mcp.Required(), mcp.Description("Playback time in seconds")),
	), s.handleActiveSegment)

	s.mcp.AddTool(mcp.NewTool("segment_time",
		mcp.WithDescription("Return the playback time a segment starts at"),
		mcp.WithString("segment_id", mcp.Required(), mcp.Description("Segment ID, e.g. seg_001")),
	), s.handleSegmentTime)

	s.mcp.AddTool(mcp.NewTool("list_sync_points",
		mcp.WithDescription("List all sync points sorted by time"),
	), s.handleListSyncPoints)

	s.mcp.AddTool(mcp.NewTool("export_document",
		mcp.WithDescription("Build a settings backup document: sync points, recording metadata and preferences"),
	), s.handleExportDocument)

	return s
}

// ServeStdio serves MCP over stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleActiveSegment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := req.RequireFloat("time")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if verr := syncpoint.CheckTime(t); verr != nil {
		return mcp.NewToolResultError(verr.Error()), nil
	}

	points, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync points: %w", err)
	}

	res := ActiveSegmentResult{Time: t}
	id, ok := syncpoint.ActiveSegmentAt(t, points)
	if !ok {
		return jsonResult(res)
	}
	res.SegmentID = id
	if s.catalog == nil {
		return jsonResult(res)
	}
	if seg, ok := s.catalog.Segment(id); ok {
		res.Text = seg.Text
	}
	if stationID, ok := s.catalog.StationForSegment(id); ok {
		res.StationID = &stationID
		if st, ok := s.catalog.Station(stationID); ok {
			res.StationName = st.Name
		}
	}
	return jsonResult(res)
}

func (s *Server) handleSegmentTime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("segment_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	points, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync points: %w", err)
	}
	t, ok := syncpoint.TimeForSegment(id, points)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("segment %q has no sync point", id)), nil
	}
	return jsonResult(map[string]any{"segmentId": id, "time": t})
}

func (s *Server) handleListSyncPoints(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	points, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync points: %w", err)
	}
	return jsonResult(points)
}

func (s *Server) handleExportDocument(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := backup.Export(ctx, s.store, s.now())
	if err != nil {
		return nil, err
	}
	return jsonResult(doc)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
