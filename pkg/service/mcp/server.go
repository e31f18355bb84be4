package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vestige/pkg/usecase/curator"
	"github.com/m-mizutani/vestige/pkg/vector"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultTopK = 5

// Server exposes the curator as MCP tools
type Server struct {
	uc       *curator.UseCase
	embedder vector.Embedder
	server   *mcp.Server
}

type storeMemoryInput struct {
	Fragment string `json:"fragment" jsonschema:"The memory fragment to evaluate and store"`
}

type searchMemoriesInput struct {
	Query string `json:"query" jsonschema:"Text to find similar memories for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Maximum number of memories to return (default 5)"`
}

type listMemoriesInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only list memories tagged with this category"`
}

// New creates an MCP server. search_memories fails when embedder is nil.
func New(uc *curator.UseCase, embedder vector.Embedder) *Server {
	x := &Server{
		uc:       uc,
		embedder: embedder,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "vestige",
			Version: "0.1.0",
		}, nil),
	}

	mcp.AddTool(x.server, &mcp.Tool{
		Name:        "store_memory",
		Description: "Evaluate a memory fragment with the librarian and append it to the memory log",
	}, x.storeMemory)

	mcp.AddTool(x.server, &mcp.Tool{
		Name:        "search_memories",
		Description: "Find stored memories most similar to a text by embedding cosine similarity",
	}, x.searchMemories)

	mcp.AddTool(x.server, &mcp.Tool{
		Name:        "list_memories",
		Description: "List stored memories by score, optionally restricted to one category",
	}, x.listMemories)

	return x
}

// Run serves over stdio until the client disconnects
func (x *Server) Run(ctx context.Context) error {
	if err := x.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Connect serves a single session over transport
func (x *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	session, err := x.server.Connect(ctx, transport, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect mcp session")
	}
	return session, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal tool result")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

func (x *Server) storeMemory(ctx context.Context, req *mcp.CallToolRequest, input storeMemoryInput) (*mcp.CallToolResult, any, error) {
	result, err := x.uc.Submit(ctx, input.Fragment)
	if err != nil {
		return nil, nil, err
	}

	res, err := jsonResult(map[string]any{
		"memory":    result.Memory,
		"defaulted": result.Evaluation.Defaulted,
	})
	return res, nil, err
}

func (x *Server) searchMemories(ctx context.Context, req *mcp.CallToolRequest, input searchMemoriesInput) (*mcp.CallToolResult, any, error) {
	if x.embedder == nil {
		return nil, nil, goerr.New("no embedding provider configured")
	}

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	archive, err := x.uc.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	results, err := curator.Search(ctx, archive, x.embedder, input.Query, topK)
	if err != nil {
		return nil, nil, err
	}

	records := make([]map[string]any, 0, len(results))
	for _, r := range results {
		records = append(records, r.Record())
	}

	res, err := jsonResult(records)
	return res, nil, err
}

func (x *Server) listMemories(ctx context.Context, req *mcp.CallToolRequest, input listMemoriesInput) (*mcp.CallToolResult, any, error) {
	archive, err := x.uc.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	memories := archive.ByScore()
	if input.Category != "" {
		memories = curator.NewArchive(archive.ByCategory(input.Category)).ByScore()
	}

	res, err := jsonResult(memories)
	return res, nil, err
}
