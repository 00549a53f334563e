package matcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/orderrisk/internal/model"
)

// LoadFile reads a mapping file and builds a Matcher. Files ending in .yaml or
// .yml are parsed as YAML, anything else as JSON. Top-level keys starting
// with "_" carry metadata and are skipped.
func LoadFile(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "matcher: read mapping %s", path)
	}

	var entries map[string]model.MappingEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = ParseYAML(data)
	default:
		entries, err = ParseJSON(data)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "matcher: parse mapping %s", path)
	}

	m := New(entries)
	zap.L().Info("matcher: loaded restaurant mapping",
		zap.String("path", path),
		zap.Int("entries", len(entries)),
		zap.Int("normalized", m.Len()),
	)
	return m, nil
}

// ParseJSON decodes a JSON mapping object.
func ParseJSON(data []byte) (map[string]model.MappingEntry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "decode json mapping")
	}

	out := make(map[string]model.MappingEntry, len(raw))
	for name, msg := range raw {
		if strings.HasPrefix(name, "_") {
			continue
		}
		var e model.MappingEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, eris.Wrapf(err, "decode mapping entry %q", name)
		}
		out[name] = e
	}
	return out, nil
}

// ParseYAML decodes a YAML mapping document of the same shape as ParseJSON.
func ParseYAML(data []byte) (map[string]model.MappingEntry, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "decode yaml mapping")
	}

	out := make(map[string]model.MappingEntry, len(raw))
	for name, node := range raw {
		if strings.HasPrefix(name, "_") {
			continue
		}
		var e model.MappingEntry
		if err := node.Decode(&e); err != nil {
			return nil, eris.Wrapf(err, "decode mapping entry %q", name)
		}
		out[name] = e
	}
	return out, nil
}
