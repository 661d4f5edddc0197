package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"netmetamcp/internal/audit"
	"netmetamcp/internal/csvconv"
	"netmetamcp/internal/rbridge"
)

// Analyzer is the narrow view of the R bridge the tool surface needs. Each
// method returns the decoded engine document; errors travel inside it under
// the "error" key.
type Analyzer interface {
	RunNetmeta(ctx context.Context, data []rbridge.PairwiseContrast, sm, reference string, common, random bool) any
	GetNetworkGraph(ctx context.Context) any
	GetLeagueTable(ctx context.Context, random bool) any
	GetRanking(ctx context.Context, random bool) any
	GetForestData(ctx context.Context, reference string, random bool) any
	PairwiseToNetmeta(ctx context.Context, data []rbridge.ArmRecord, outcomeType string) any
}

// Server dispatches MCP requests to the bridge. It holds no per-client
// state; the analysis session lives in the bridge's state file.
type Server struct {
	name    string
	version string
	bridge  Analyzer
	audit   *audit.Store // nil disables auditing
	logger  *zap.Logger
}

// New creates a server around the given bridge. auditStore may be nil.
func New(name, version string, bridge Analyzer, auditStore *audit.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		name:    name,
		version: version,
		bridge:  bridge,
		audit:   auditStore,
		logger:  logger,
	}
}

// HandleRequest processes one JSON-RPC message. Notifications return nil:
// nothing goes back on the wire for them.
func (s *Server) HandleRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "initialized":
		return nil
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": toolsList()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		if req.ID == nil {
			// Unknown notification: ignore.
			return nil
		}
		return errorResponse(req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (s *Server) handleInitialize(req JSONRPCRequest) *JSONRPCResponse {
	return resultResponse(req.ID, InitializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
	})
}

// Argument shapes for tools/call. Pointer booleans distinguish "absent"
// from "false" so defaults apply only when the caller omits the flag.
type runnetmetaArgs struct {
	Data       []rbridge.PairwiseContrast `json:"data"`
	SM         string                     `json:"sm"`
	Reference  string                     `json:"reference"`
	CombFixed  *bool                      `json:"comb_fixed"`
	CombRandom *bool                      `json:"comb_random"`
}

type randomArgs struct {
	Random *bool `json:"random"`
}

type forestArgs struct {
	Reference string `json:"reference"`
	Random    *bool  `json:"random"`
}

type pairwiseArgs struct {
	Data        []rbridge.ArmRecord `json:"data"`
	OutcomeType string              `json:"outcome_type"`
}

type csvArgs struct {
	CSVContent string `json:"csv_content"`
	DataFormat string `json:"data_format"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *Server) handleToolsCall(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params: "+err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	start := time.Now()
	result, ok := s.dispatch(ctx, params.Name, params.Arguments)
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound, "Unknown tool: "+params.Name)
	}

	s.record(params.Name, params.Arguments, result, time.Since(start))

	return resultResponse(req.ID, packResult(result))
}

// dispatch routes one tool call. The second return is false only for an
// unknown tool name; every operational failure is data inside the result.
func (s *Server) dispatch(ctx context.Context, tool string, args json.RawMessage) (any, bool) {
	switch tool {
	case "runnetmeta":
		var a runnetmetaArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err), true
		}
		if a.SM == "" {
			a.SM = rbridge.SummaryOddsRatio
		}
		return s.bridge.RunNetmeta(ctx, a.Data, a.SM, a.Reference,
			boolOr(a.CombFixed, true), boolOr(a.CombRandom, true)), true

	case "get_network_graph":
		return s.bridge.GetNetworkGraph(ctx), true

	case "get_league_table":
		var a randomArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err), true
		}
		return s.bridge.GetLeagueTable(ctx, boolOr(a.Random, true)), true

	case "get_ranking":
		var a randomArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err), true
		}
		return s.bridge.GetRanking(ctx, boolOr(a.Random, true)), true

	case "get_forest_data":
		var a forestArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err), true
		}
		return s.bridge.GetForestData(ctx, a.Reference, boolOr(a.Random, true)), true

	case "pairwise_to_netmeta":
		var a pairwiseArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err), true
		}
		if a.OutcomeType == "" {
			a.OutcomeType = rbridge.OutcomeBinary
		}
		return s.bridge.PairwiseToNetmeta(ctx, a.Data, a.OutcomeType), true

	case "csv_to_json":
		var a csvArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return invalidArgs(err), true
		}
		if a.DataFormat == "" {
			a.DataFormat = csvconv.FormatPairwise
		}
		return csvconv.Convert(a.CSVContent, a.DataFormat), true

	default:
		return nil, false
	}
}

func invalidArgs(err error) map[string]any {
	return map[string]any{"error": "Invalid arguments: " + err.Error()}
}

// record appends the call to the audit store, when one is configured.
func (s *Server) record(tool string, args json.RawMessage, result any, elapsed time.Duration) {
	if s.audit == nil {
		return
	}

	rec := audit.Record{
		CallID:     uuid.NewString(),
		Tool:       tool,
		Arguments:  string(args),
		Success:    true,
		DurationMs: elapsed.Milliseconds(),
	}
	if m, ok := result.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok {
			rec.Success = false
			rec.Error = msg
		}
	}

	if err := s.audit.Append(rec); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("tool", tool), zap.Error(err))
	}
}

// packResult wraps a tool result as a single JSON text content block.
func packResult(result any) CallToolResult {
	data, err := json.Marshal(result)
	if err != nil {
		return CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: `{"error": "Failed to serialize result"}`}},
			IsError: true,
		}
	}
	return CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(data)}},
	}
}

func resultResponse(id any, result any) *JSONRPCResponse {
	data, _ := json.Marshal(result)
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: data}
}

func errorResponse(id any, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}
