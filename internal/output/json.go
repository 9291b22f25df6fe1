package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/namelens/ascgate/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatResources renders resources as a JSON array.
func (f *JSONFormatter) FormatResources(resources []core.Resource) (string, error) {
	return f.marshal(nonNil(resources))
}

// FormatUploads renders upload journal entries as a JSON array.
func (f *JSONFormatter) FormatUploads(records []core.UploadRecord) (string, error) {
	return f.marshal(nonNil(records))
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatResources renders resources as a YAML sequence.
func (f *YAMLFormatter) FormatResources(resources []core.Resource) (string, error) {
	return marshalYAML(nonNil(resources))
}

// FormatUploads renders upload journal entries as a YAML sequence.
func (f *YAMLFormatter) FormatUploads(records []core.UploadRecord) (string, error) {
	return marshalYAML(nonNil(records))
}

func marshalYAML(value any) (string, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
