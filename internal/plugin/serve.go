package plugin

import (
	"encoding/json"
	"fmt"
	"io"
)

// HandlerFunc runs one action. The returned data, if any, is sent back in
// Response.Data.
type HandlerFunc func(req *Request) (any, error)

// Serve is the plugin side of the executor protocol: it reads one Request
// from r, runs fn and writes the Response to w. Handler failures become an
// unsuccessful Response; only I/O and encoding problems are returned.
func Serve(r io.Reader, w io.Writer, fn HandlerFunc) error {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return writeResponse(w, Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
	}

	data, err := fn(&req)
	if err != nil {
		return writeResponse(w, Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
	}

	resp := Response{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return writeResponse(w, Response{Error: fmt.Sprintf("encode result: %v", err)})
		}
		resp.Data = raw
	}
	return writeResponse(w, resp)
}

func writeResponse(w io.Writer, resp Response) error {
	return json.NewEncoder(w).Encode(resp)
}

// DecodeConfig unmarshals the binding config into v. An empty config leaves
// v unchanged.
func (r *Request) DecodeConfig(v any) error {
	if len(r.Config) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Config, v); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
