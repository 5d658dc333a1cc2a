package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func serve(t *testing.T, in string, fn HandlerFunc) Response {
	t.Helper()
	var out bytes.Buffer
	if err := Serve(strings.NewReader(in), &out, fn); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("bad response %q: %v", out.String(), err)
	}
	return resp
}

func TestServe(t *testing.T) {
	resp := serve(t, `{"action":"press","gesture":"namaste","config":{"key":"space"}}`, func(req *Request) (any, error) {
		var cfg struct {
			Key string `json:"key"`
		}
		if err := req.DecodeConfig(&cfg); err != nil {
			return nil, err
		}
		return map[string]string{"pressed": cfg.Key, "for": req.Gesture}, nil
	})
	if !resp.Success || string(resp.Data) != `{"for":"namaste","pressed":"space"}` {
		t.Errorf("unexpected response %+v (data %s)", resp, resp.Data)
	}
}

func TestServe_Failures(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		fn      HandlerFunc
		wantErr string
	}{
		{"bad request", "not json", func(*Request) (any, error) { return nil, nil }, "failed to decode request"},
		{"handler error", `{"action":"press"}`, func(*Request) (any, error) { return nil, errors.New("no display") }, "action press failed: no display"},
		{"bad config", `{"action":"press","config":[1]}`, func(req *Request) (any, error) {
			var cfg struct{ Key string }
			return nil, req.DecodeConfig(&cfg)
		}, "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, tt.in, tt.fn)
			if resp.Success || !strings.Contains(resp.Error, tt.wantErr) {
				t.Errorf("expected failure containing %q, got %+v", tt.wantErr, resp)
			}
		})
	}
}

func TestServe_NoData(t *testing.T) {
	resp := serve(t, `{"action":"noop"}`, func(*Request) (any, error) { return nil, nil })
	if !resp.Success || resp.Data != nil {
		t.Errorf("unexpected response %+v", resp)
	}
}
