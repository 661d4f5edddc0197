package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmetamcp/internal/rbridge"
)

// stubAnalyzer records the last call and returns canned documents.
type stubAnalyzer struct {
	lastOp        string
	lastSM        string
	lastReference string
	lastCommon    bool
	lastRandom    bool
	lastOutcome   string
	lastContrasts []rbridge.PairwiseContrast
	lastArms      []rbridge.ArmRecord
	result        any
}

func (s *stubAnalyzer) RunNetmeta(ctx context.Context, data []rbridge.PairwiseContrast, sm, reference string, common, random bool) any {
	s.lastOp, s.lastContrasts, s.lastSM, s.lastReference = "runnetmeta", data, sm, reference
	s.lastCommon, s.lastRandom = common, random
	return s.result
}

func (s *stubAnalyzer) GetNetworkGraph(ctx context.Context) any {
	s.lastOp = "get_network_graph"
	return s.result
}

func (s *stubAnalyzer) GetLeagueTable(ctx context.Context, random bool) any {
	s.lastOp, s.lastRandom = "get_league_table", random
	return s.result
}

func (s *stubAnalyzer) GetRanking(ctx context.Context, random bool) any {
	s.lastOp, s.lastRandom = "get_ranking", random
	return s.result
}

func (s *stubAnalyzer) GetForestData(ctx context.Context, reference string, random bool) any {
	s.lastOp, s.lastReference, s.lastRandom = "get_forest_data", reference, random
	return s.result
}

func (s *stubAnalyzer) PairwiseToNetmeta(ctx context.Context, data []rbridge.ArmRecord, outcomeType string) any {
	s.lastOp, s.lastArms, s.lastOutcome = "pairwise_to_netmeta", data, outcomeType
	return s.result
}

func newTestServer(stub *stubAnalyzer) *Server {
	return New("netmeta-mcp", "test", stub, nil, nil)
}

func call(t *testing.T, s *Server, method string, params any) *JSONRPCResponse {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	return s.HandleRequest(context.Background(), JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  raw,
	})
}

// decodeToolResult unpacks the text content block back into a document.
func decodeToolResult(t *testing.T, resp *JSONRPCResponse) any {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)

	var doc any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &doc))
	return doc
}

func TestInitialize(t *testing.T) {
	resp := call(t, newTestServer(&stubAnalyzer{}), "initialize", nil)

	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, protocolVersion, result.ProtocolVersion)
	assert.Equal(t, "netmeta-mcp", result.ServerInfo.Name)
}

func TestInitializedNotificationGetsNoResponse(t *testing.T) {
	s := newTestServer(&stubAnalyzer{})
	resp := s.HandleRequest(context.Background(), JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	assert.Nil(t, resp)
}

func TestToolsListAdvertisesAllSevenTools(t *testing.T) {
	resp := call(t, newTestServer(&stubAnalyzer{}), "tools/list", nil)

	var result struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description, "tool %s needs a description", tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"])
	}
	assert.ElementsMatch(t, []string{
		"runnetmeta", "get_network_graph", "get_league_table", "get_ranking",
		"get_forest_data", "pairwise_to_netmeta", "csv_to_json",
	}, names)
}

func TestUnknownMethod(t *testing.T) {
	resp := call(t, newTestServer(&stubAnalyzer{}), "resources/list", nil)

	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRunnetmetaDefaults(t *testing.T) {
	stub := &stubAnalyzer{result: map[string]any{"treatments": []string{"A", "B"}}}
	s := newTestServer(stub)

	resp := call(t, s, "tools/call", map[string]any{
		"name": "runnetmeta",
		"arguments": map[string]any{
			"data": []map[string]any{
				{"study": "S1", "treat1": "A", "treat2": "B", "TE": 0.1, "seTE": 0.2},
			},
		},
	})

	decodeToolResult(t, resp)
	assert.Equal(t, "runnetmeta", stub.lastOp)
	assert.Equal(t, "OR", stub.lastSM, "sm should default to OR")
	assert.Equal(t, "", stub.lastReference)
	assert.True(t, stub.lastCommon, "comb_fixed should default to true")
	assert.True(t, stub.lastRandom, "comb_random should default to true")
	require.Len(t, stub.lastContrasts, 1)
	assert.Equal(t, "S1", stub.lastContrasts[0].Study)
}

func TestRunnetmetaExplicitFlags(t *testing.T) {
	stub := &stubAnalyzer{result: map[string]any{}}
	s := newTestServer(stub)

	call(t, s, "tools/call", map[string]any{
		"name": "runnetmeta",
		"arguments": map[string]any{
			"data":        []map[string]any{{"study": "S1", "treat1": "A", "treat2": "B", "TE": 0.1, "seTE": 0.2}},
			"sm":          "MD",
			"reference":   "A",
			"comb_fixed":  false,
			"comb_random": false,
		},
	})

	assert.Equal(t, "MD", stub.lastSM)
	assert.Equal(t, "A", stub.lastReference)
	assert.False(t, stub.lastCommon)
	assert.False(t, stub.lastRandom)
}

func TestReadToolsDefaultToRandomEffects(t *testing.T) {
	for _, tool := range []string{"get_league_table", "get_ranking", "get_forest_data"} {
		stub := &stubAnalyzer{result: map[string]any{}}
		s := newTestServer(stub)

		call(t, s, "tools/call", map[string]any{"name": tool})

		assert.Equal(t, tool, stub.lastOp)
		assert.True(t, stub.lastRandom, "%s should default to random effects", tool)
	}
}

func TestBridgeErrorObjectIsAResultNotAProtocolError(t *testing.T) {
	stub := &stubAnalyzer{result: map[string]any{
		"error": "No netmeta result available. Run runnetmeta first.",
	}}
	s := newTestServer(stub)

	resp := call(t, s, "tools/call", map[string]any{"name": "get_ranking"})

	doc := decodeToolResult(t, resp).(map[string]any)
	assert.Equal(t, "No netmeta result available. Run runnetmeta first.", doc["error"])
}

func TestUnknownToolIsProtocolError(t *testing.T) {
	resp := call(t, newTestServer(&stubAnalyzer{}), "tools/call", map[string]any{
		"name": "plot_network",
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "plot_network")
}

func TestCSVToJSONDispatch(t *testing.T) {
	s := newTestServer(&stubAnalyzer{})

	resp := call(t, s, "tools/call", map[string]any{
		"name": "csv_to_json",
		"arguments": map[string]any{
			"csv_content": "study,treat1,treat2,TE,seTE\nS1,A,B,0.1,0.2\n",
		},
	})

	doc := decodeToolResult(t, resp).(map[string]any)
	assert.Equal(t, float64(1), doc["n_records"])
	assert.Equal(t, "pairwise", doc["format"], "data_format should default to pairwise")
}

func TestPairwiseToNetmetaDefaultsToBinary(t *testing.T) {
	stub := &stubAnalyzer{result: []any{}}
	s := newTestServer(stub)

	call(t, s, "tools/call", map[string]any{
		"name": "pairwise_to_netmeta",
		"arguments": map[string]any{
			"data": []map[string]any{
				{"study": "S1", "treatment": "A", "events": 10, "n": 100},
			},
		},
	})

	assert.Equal(t, "pairwise_to_netmeta", stub.lastOp)
	assert.Equal(t, "binary", stub.lastOutcome)
	require.Len(t, stub.lastArms, 1)
	require.NotNil(t, stub.lastArms[0].Events)
	assert.Equal(t, 10, *stub.lastArms[0].Events)
}
