package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of an authored flow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, path)
	}
}

// ParseFlow decodes an authored flow document. YAML documents are converted
// to JSON first so both formats share the JSON field names of the model.
func ParseFlow(data []byte, format Format) (*models.FlowDefinition, error) {
	switch format {
	case FormatJSON:
	case FormatYAML:
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, &ValidationError{Problems: []string{"invalid YAML: " + err.Error()}}
		}

		data = converted
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, format)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	flow := &models.FlowDefinition{}

	err := decoder.Decode(flow)
	if err != nil {
		return nil, &ValidationError{Problems: []string{"invalid document: " + err.Error()}}
	}

	return flow, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var document any

	err := yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, err
	}

	return json.Marshal(document)
}
