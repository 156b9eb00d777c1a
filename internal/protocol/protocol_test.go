package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRequestMarshal_BareVariants(t *testing.T) {
	cases := []struct {
		req  Request
		want string
	}{
		{PingRequest(), `"ping"`},
		{GetConfigFingerprintRequest(), `"get_config_fingerprint"`},
		{ListServersRequest(), `"list_servers"`},
		{ShutdownRequest(), `"shutdown"`},
	}
	for _, c := range cases {
		data, err := json.Marshal(c.req)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", c.req, err)
		}
		if string(data) != c.want {
			t.Errorf("Marshal(%v) = %s, want %s", c.req, data, c.want)
		}
	}
}

func TestRequestRoundTrip_ExecuteTool(t *testing.T) {
	req := ExecuteToolRequest("weather", "get_forecast", json.RawMessage(`{"city":"NYC"}`))
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	var got Request
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != RequestExecuteTool || got.ServerName != "weather" || got.ToolName != "get_forecast" {
		t.Errorf("unexpected round trip: %+v", got)
	}
	if string(got.Arguments) != `{"city":"NYC"}` {
		t.Errorf("unexpected arguments: %s", got.Arguments)
	}
}

func TestRequestRoundTrip_ListTools(t *testing.T) {
	req := ListToolsRequest("weather")
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"list_tools"`) {
		t.Errorf("expected tagged object, got %s", data)
	}

	var got Request
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != RequestListTools || got.ServerName != "weather" {
		t.Errorf("unexpected round trip: %+v", got)
	}
}

func TestResponseMarshal_BareVariants(t *testing.T) {
	data, err := json.Marshal(PongResponse())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"pong"` {
		t.Errorf("Marshal(Pong) = %s", data)
	}

	data, err = json.Marshal(ShutdownAckResponse())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"shutdown_ack"` {
		t.Errorf("Marshal(ShutdownAck) = %s", data)
	}
}

func TestResponseRoundTrip_Error(t *testing.T) {
	resp := ErrorResponse(2, "daemon not running")
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var got Response
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != ResponseError || got.Error.Code != 2 || got.Error.Message != "daemon not running" {
		t.Errorf("unexpected round trip: %+v", got)
	}
}

func TestResponseRoundTrip_ToolList(t *testing.T) {
	resp := ToolListResponse([]ToolInfo{
		{Name: "get_forecast", Description: "weather forecast", InputSchema: json.RawMessage(`{"type":"object"}`)},
	})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var got Response
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.ToolList) != 1 || got.ToolList[0].Name != "get_forecast" {
		t.Errorf("unexpected round trip: %+v", got)
	}
}

func TestNDJSON_WriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if err := WriteRequest(w, PingRequest()); err != nil {
		t.Fatal(err)
	}
	if err := WriteRequest(w, ListToolsRequest("weather")); err != nil {
		t.Fatal(err)
	}

	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected 2 newline-terminated frames, got %d", n)
	}

	r := NewReader(&buf)
	first, err := ReadRequest(r)
	if err != nil {
		t.Fatalf("ReadRequest(1): %v", err)
	}
	if first.Kind != RequestPing {
		t.Errorf("expected ping, got %v", first.Kind)
	}

	second, err := ReadRequest(r)
	if err != nil {
		t.Fatalf("ReadRequest(2): %v", err)
	}
	if second.Kind != RequestListTools || second.ServerName != "weather" {
		t.Errorf("unexpected second request: %+v", second)
	}
}

func TestNDJSON_LargePayloadRoundTrip(t *testing.T) {
	large := strings.Repeat("x", 150*1024)
	args, err := json.Marshal(map[string]string{"blob": large})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	req := ExecuteToolRequest("srv", "echo", args)
	if err := WriteRequest(w, req); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	got, err := ReadRequest(r)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if len(got.Arguments) != len(args) {
		t.Errorf("expected arguments of length %d, got %d", len(args), len(got.Arguments))
	}
}

func TestResponseUnmarshal_RejectsMultiKeyObject(t *testing.T) {
	var got Response
	err := json.Unmarshal([]byte(`{"pong":null,"shutdown_ack":null}`), &got)
	if err == nil {
		t.Error("expected error for multi-key tagged object")
	}
}

func TestRequestUnmarshal_RejectsUnknownKind(t *testing.T) {
	var got Request
	err := json.Unmarshal([]byte(`"not_a_real_kind"`), &got)
	if err == nil {
		t.Error("expected error for unknown bare request kind")
	}
}
