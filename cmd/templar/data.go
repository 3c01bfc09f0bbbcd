package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/amenyxia/templar/pkg/template"
)

// loadData reads the input data set for a generation run. YAML and JSON
// are supported, chosen by file extension. An empty path yields an empty
// data set.
func loadData(path string) (map[string]template.Value, error) {
	if path == "" {
		return map[string]template.Value{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var decoded map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
		}
	default:
		if err = json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
		}
	}

	data := make(map[string]template.Value, len(decoded))
	for name, v := range decoded {
		value, err := template.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("data key %q: %w", name, err)
		}
		data[name] = value
	}
	return data, nil
}
