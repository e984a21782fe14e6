// Package serializer writes sweep reports in machine-readable (JSON, YAML)
// or human-readable text form.
//
//	writer := serializer.NewFileWriterOrStdout(serializer.FormatJSON, path)
//	defer writer.Close()
//	if err := writer.Serialize(ctx, report); err != nil { ... }
package serializer

import "context"

// Format represents the output format type.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// IsUnknown reports whether the format is not one of the supported values.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatText:
		return false
	default:
		return true
	}
}

// SupportedFormats lists the accepted output format names.
func SupportedFormats() []string {
	return []string{string(FormatJSON), string(FormatYAML), string(FormatText)}
}

// Serializer writes a value to an output destination.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}
