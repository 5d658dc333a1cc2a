// Package model describes the external gesture classifier: its metadata,
// its input/output contract and the transports that reach it.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"
)

// Built-in shape used when metadata leaves it unspecified.
const (
	DefaultSeqLen  = 30
	DefaultFeatDim = 63
)

// Metadata describes the classifier. It is immutable once loaded and may be
// shared between pipelines.
type Metadata struct {
	Labels  []string `json:"labels" yaml:"labels"`
	SeqLen  int      `json:"seq_len" yaml:"seq_len"`
	FeatDim int      `json:"feat_dim" yaml:"feat_dim"`
}

// DefaultMetadata returns the built-in shape with no labels.
func DefaultMetadata() *Metadata {
	return &Metadata{SeqLen: DefaultSeqLen, FeatDim: DefaultFeatDim}
}

// Label maps a class index to its label. It reports false when the index
// has no label, including when no labels were supplied at all.
func (m *Metadata) Label(index int) (string, bool) {
	if m == nil || index < 0 || index >= len(m.Labels) {
		return "", false
	}
	return m.Labels[index], true
}

// NumClasses is the number of labelled classes.
func (m *Metadata) NumClasses() int {
	if m == nil {
		return 0
	}
	return len(m.Labels)
}

// Format selects the document syntax for ParseMetadata.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// WithDefaults returns a copy in which a missing (zero) seq_len or feat_dim
// is replaced by the given fallbacks, or the built-in ones when those are zero too.
func (m *Metadata) WithDefaults(seqLen, featDim int) *Metadata {
	if seqLen <= 0 {
		seqLen = DefaultSeqLen
	}
	if featDim <= 0 {
		featDim = DefaultFeatDim
	}

	out := &Metadata{SeqLen: seqLen, FeatDim: featDim}
	if m == nil {
		return out
	}
	out.Labels = append([]string(nil), m.Labels...)
	if m.SeqLen > 0 {
		out.SeqLen = m.SeqLen
	}
	if m.FeatDim > 0 {
		out.FeatDim = m.FeatDim
	}
	return out
}

// ParseMetadata decodes a metadata document. A missing seq_len or feat_dim is
// left at zero; see WithDefaults.
func ParseMetadata(data []byte, format Format) (*Metadata, error) {
	m := &Metadata{}

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, m)
	default:
		err = json.Unmarshal(data, m)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if m.SeqLen < 0 || m.FeatDim < 0 {
		return nil, fmt.Errorf("invalid shape seq_len=%d feat_dim=%d", m.SeqLen, m.FeatDim)
	}
	return m, nil
}

// MetadataSource loads metadata from wherever the model assets live.
// Failures are reported as *MetadataError.
type MetadataSource interface {
	Load(ctx context.Context) (*Metadata, error)
}

// NewMetadataSource returns an HTTP source for http(s) URLs and a file source otherwise.
func NewMetadataSource(ref string) MetadataSource {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return &HTTPSource{URL: ref}
	}
	return &FileSource{Path: ref}
}

// FileSource reads a JSON or YAML (by extension) metadata file.
type FileSource struct {
	Path string
}

// Load reads and parses the file.
func (s *FileSource) Load(ctx context.Context) (*Metadata, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &MetadataError{Source: s.Path, Err: err}
	}

	m, err := ParseMetadata(data, formatFor(s.Path))
	if err != nil {
		return nil, &MetadataError{Source: s.Path, Err: err}
	}
	return m, nil
}

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// HTTPSource fetches metadata from a URL. The body is parsed as YAML when the
// URL path or content type says so, JSON otherwise.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Load fetches and parses the document.
func (s *HTTPSource) Load(ctx context.Context) (*Metadata, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &MetadataError{Source: s.URL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &MetadataError{Source: s.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &MetadataError{Source: s.URL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &MetadataError{Source: s.URL, Err: err}
	}

	format := formatFor(req.URL.Path)
	if strings.Contains(resp.Header.Get("Content-Type"), "yaml") {
		format = FormatYAML
	}

	m, err := ParseMetadata(data, format)
	if err != nil {
		return nil, &MetadataError{Source: s.URL, Err: err}
	}
	return m, nil
}

// StaticSource always returns the same metadata. Useful when the metadata is
// compiled in or already loaded elsewhere.
type StaticSource struct {
	Metadata *Metadata
}

// Load returns the wrapped metadata or a MetadataError when it is nil.
func (s StaticSource) Load(ctx context.Context) (*Metadata, error) {
	if s.Metadata == nil {
		return nil, &MetadataError{Source: "static", Err: fmt.Errorf("no metadata")}
	}
	return s.Metadata, nil
}
