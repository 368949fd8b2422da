package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/solatis/flagkeeper/internal/schema"
	"github.com/solatis/flagkeeper/internal/types"
)

// readConfiguration loads a configuration document from a JSON or YAML
// file, checks it against the schema and decodes it.
func readConfiguration(path string) (types.Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Configuration{}, err
	}
	return parseConfiguration(path, raw)
}

func parseConfiguration(name string, raw []byte) (types.Configuration, error) {
	data := raw
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var err error
		if data, err = yaml.YAMLToJSON(raw); err != nil {
			return types.Configuration{}, fmt.Errorf("%s: %w", name, err)
		}
	}

	v, err := schema.Default()
	if err != nil {
		return types.Configuration{}, err
	}
	if err := v.Validate(data); err != nil {
		return types.Configuration{}, fmt.Errorf("%s: %w", name, err)
	}

	cfg, err := types.ParseConfiguration(data)
	if err != nil {
		return types.Configuration{}, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}
