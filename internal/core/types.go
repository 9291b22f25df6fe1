package core

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Logger is the logging surface core packages depend on.
// *logging.Logger from gofulmen satisfies it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...zap.Field) {}
func (NopLogger) Info(string, ...zap.Field)  {}
func (NopLogger) Warn(string, ...zap.Field)  {}

// LoggerOrNop returns l, or a NopLogger when l is nil.
func LoggerOrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Resource is a single JSON:API resource object.
type Resource struct {
	Type          string                     `json:"type" yaml:"type"`
	ID            string                     `json:"id" yaml:"id"`
	Attributes    map[string]any             `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Relationships map[string]json.RawMessage `json:"relationships,omitempty" yaml:"-"`
	Links         map[string]any             `json:"links,omitempty" yaml:"links,omitempty"`
}

// Document is a JSON:API top-level document carrying a single resource.
type Document struct {
	Data  Resource          `json:"data"`
	Links map[string]string `json:"links,omitempty"`
}

// UploadState tracks where an upload is in the reserve/transfer/commit protocol.
type UploadState string

const (
	UploadStateReserved    UploadState = "reserved"
	UploadStateTransferred UploadState = "transferred"
	UploadStateCommitted   UploadState = "committed"
	UploadStateFailed      UploadState = "failed"
)

// UploadRecord is the journal entry for one upload attempt.
type UploadRecord struct {
	ID        string      `json:"id" yaml:"id"`
	Kind      string      `json:"kind" yaml:"kind"`
	FileName  string      `json:"file_name" yaml:"file_name"`
	FileSize  int64       `json:"file_size" yaml:"file_size"`
	SetID     string      `json:"set_id" yaml:"set_id"`
	AssetID   string      `json:"asset_id,omitempty" yaml:"asset_id,omitempty"`
	Checksum  string      `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	State     UploadState `json:"state" yaml:"state"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" yaml:"updated_at"`
}
