// Package mcpserver exposes the knowledge base to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/logger"
	"github.com/kamusis/skillbase/internal/search"
)

const (
	serverName   = "skillbase"
	defaultLimit = 5
	maxLimit     = 50
)

// BaseProvider returns the knowledge base a tool call reads from.
type BaseProvider interface {
	Current() *kb.Base
}

// Tools holds the tool handlers.
type Tools struct {
	provider BaseProvider
}

// New builds an MCP server with every knowledge-base tool registered.
func New(provider BaseProvider, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	t := &Tools{provider: provider}
	s.AddTool(routeTopicTool(), t.RouteTopic)
	s.AddTool(getDocumentTool(), t.GetDocument)
	s.AddTool(listDocumentsTool(), t.ListDocuments)
	s.AddTool(searchDocumentsTool(), t.SearchDocuments)
	return s
}

// Serve runs s over the given streams until ctx is done or stdin closes.
func Serve(ctx context.Context, s *server.MCPServer, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s)
	if err := stdio.Listen(ctx, stdin, stdout); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "MCP stdio server failed")
	}
	return nil
}

const instructions = `skillbase serves a library of skill guides and their reference documents.
Call route_topic with a short topic such as "routing" or "testing" to find the
most relevant documents, then get_document with a returned id to read it.
Use search_documents for phrases that only appear in document bodies.`

func routeTopicTool() mcp.Tool {
	return mcp.NewTool("route_topic",
		mcp.WithDescription("Find documents for a topic. Exact tag matches rank above partial keyword matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Topic or keywords, e.g. \"path params\"")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5, max 50)")),
	)
}

func getDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Return the full text of a document by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id, e.g. \"fastapi-guide/references/routing.md\"")),
	)
}

func listDocumentsTool() mcp.Tool {
	return mcp.NewTool("list_documents",
		mcp.WithDescription("List document ids and titles in corpus order."),
		mcp.WithString("kind",
			mcp.Description("Only list documents of this kind"),
			mcp.Enum(corpus.KindSkill, corpus.KindReference, corpus.KindAsset),
		),
	)
}

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search over document titles, descriptions and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Words to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5, max 50)")),
	)
}

type resultItem struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Kind  string   `json:"kind"`
	Tags  []string `json:"tags,omitempty"`
	Score float64  `json:"score"`
	Why   string   `json:"why"`
}

type listItem struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// RouteTopic handles route_topic.
func (t *Tools) RouteTopic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, errResult := t.base()
	if errResult != nil {
		return errResult, nil
	}
	args := req.GetArguments()
	query, ok := stringArg(args, "query")
	if !ok {
		return mcp.NewToolResultError("query is required"), nil
	}
	results := b.Route(query, limitArg(args))
	logger.G(ctx).WithField("query", query).WithField("results", len(results)).Debug("route_topic")
	return jsonResult(toItems(results))
}

// GetDocument handles get_document.
func (t *Tools) GetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, errResult := t.base()
	if errResult != nil {
		return errResult, nil
	}
	id, ok := stringArg(req.GetArguments(), "id")
	if !ok {
		return mcp.NewToolResultError("id is required"), nil
	}
	d, err := b.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString("# " + d.Title + "\n\n")
	sb.WriteString("id: " + d.ID + "\n")
	sb.WriteString("kind: " + d.Kind + "\n")
	if len(d.Tags) > 0 {
		sb.WriteString("tags: " + strings.Join(d.Tags, ", ") + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(d.Body)
	return mcp.NewToolResultText(sb.String()), nil
}

// ListDocuments handles list_documents.
func (t *Tools) ListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, errResult := t.base()
	if errResult != nil {
		return errResult, nil
	}
	kind, _ := stringArg(req.GetArguments(), "kind")
	switch kind {
	case "", corpus.KindSkill, corpus.KindReference, corpus.KindAsset:
	default:
		return mcp.NewToolResultError("unknown kind " + kind), nil
	}

	items := []listItem{}
	for _, d := range b.Store.List() {
		if kind != "" && d.Kind != kind {
			continue
		}
		items = append(items, listItem{ID: d.ID, Kind: d.Kind, Title: d.Title, Description: d.Description})
	}
	return jsonResult(items)
}

// SearchDocuments handles search_documents.
func (t *Tools) SearchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, errResult := t.base()
	if errResult != nil {
		return errResult, nil
	}
	args := req.GetArguments()
	query, ok := stringArg(args, "query")
	if !ok {
		return mcp.NewToolResultError("query is required"), nil
	}
	results, err := b.Search(query, limitArg(args))
	if err != nil {
		logger.G(ctx).WithError(err).Error("search_documents failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toItems(results))
}

func (t *Tools) base() (*kb.Base, *mcp.CallToolResult) {
	b := t.provider.Current()
	if b == nil {
		return nil, mcp.NewToolResultError("knowledge base not loaded")
	}
	return b, nil
}

func toItems(results []search.Result) []resultItem {
	out := make([]resultItem, len(results))
	for i, r := range results {
		out[i] = resultItem{
			ID:    r.Document.ID,
			Title: r.Document.Title,
			Kind:  r.Document.Kind,
			Tags:  r.Document.Tags,
			Score: r.Score,
			Why:   r.Why,
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool result")
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// limitArg reads "limit" as sent by JSON clients (a float64), clamped to
// [1, maxLimit].
func limitArg(args map[string]any) int {
	var n int
	switch v := args["limit"].(type) {
	case float64:
		n = int(math.Round(v))
	case int:
		n = v
	default:
		return defaultLimit
	}
	return max(1, min(n, maxLimit))
}
