// Package mcpserver exposes the read-only queries of a built tree as MCP
// tools over stdio.
package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/sleuth/internal/export"
	"github.com/agentic-research/sleuth/internal/logging"
	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"go.uber.org/zap"
)

// ErrNotFrozen is returned when the tree is still in its build phase.
// Tool handlers run concurrently, which is only safe on a frozen tree.
var ErrNotFrozen = errors.New("tree must be frozen before serving")

// Server wraps an MCP server bound to one tree.
type Server struct {
	tree *tree.Tree
	log  *zap.Logger
	mcp  *server.MCPServer
}

// New registers the query tools for t.
func New(t *tree.Tree, version string, log *zap.Logger) (*Server, error) {
	if !t.Frozen() {
		return nil, ErrNotFrozen
	}
	s := &Server{
		tree: t,
		log:  logging.OrNop(log),
		mcp:  server.NewMCPServer("sleuth", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("lookup_item",
		mcp.WithDescription("Find an item by stable id (breadth-first over directories, links are not followed)"),
		mcp.WithString("stable_id", mcp.Required(), mcp.Description("Stable id to look up")),
		mcp.WithBoolean("orphan_only", mcp.Description("Only search the orphan subtrees")),
	), s.lookupItem)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Search item titles by filename and regular expression"),
		mcp.WithArray("filenames", mcp.WithStringItems(), mcp.Description("Case-insensitive filenames")),
		mcp.WithArray("regex", mcp.WithStringItems(), mcp.Description("Case-sensitive regular expressions")),
		mcp.WithBoolean("contains", mcp.Description("Substring match for filenames (default true)")),
		mcp.WithBoolean("list_sub_items", mcp.Description("List every descendant of a match (default true)")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("print_tree",
		mcp.WithDescription("Render the synced items, deleted ids, orphan and shared-with-me roots"),
	), s.printTree)

	s.mcp.AddTool(mcp.NewTool("list_deleted",
		mcp.WithDescription("List tombstoned stable ids"),
	), s.listDeleted)

	return s, nil
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio blocks serving requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("serving MCP on stdio", zap.Int("items", s.tree.Len()))
	return server.ServeStdio(s.mcp)
}

func (s *Server) lookupItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("stable_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, ok := s.tree.GetItemByID(id, req.GetBool("orphan_only", false))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("item %s not found", id)), nil
	}
	return s.itemsResult([]*tree.Item{it}), nil
}

func (s *Server) searchItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := tree.SearchQuery{
		Filenames:    req.GetStringSlice("filenames", nil),
		Regex:        req.GetStringSlice("regex", nil),
		Contains:     req.GetBool("contains", true),
		ListSubItems: req.GetBool("list_sub_items", true),
	}
	found, err := s.tree.SearchItemByName(q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Debug("search", zap.Strings("filenames", q.Filenames), zap.Strings("regex", q.Regex), zap.Int("hits", len(found)))
	return s.itemsResult(found), nil
}

func (s *Server) printTree(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := s.tree.Print(&buf); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) listDeleted(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.tree.DeletedItems(), "\n")), nil
}

// itemsResult renders items as a JSON array. Items whose derived fields
// cannot be converted are listed under "failures".
func (s *Server) itemsResult(items []*tree.Item) *mcp.CallToolResult {
	rows, failures := export.ItemRows(items)
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Plain()
	}
	doc := map[string]any{"items": out}
	if len(failures) > 0 {
		errs := make([]any, len(failures))
		for i, f := range failures {
			errs[i] = f.Error()
			s.log.Warn("item not exportable", zap.String("stable_id", f.StableID), zap.Error(f.Err))
		}
		doc["failures"] = errs
	}
	return mcp.NewToolResultText(oj.JSON(doc, &ojg.Options{Sort: true}))
}
