package serializer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderable struct {
	Name string `json:"name" yaml:"name"`
}

func (r renderable) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "name: %s\n", r.Name)
	return err
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatJSON, &buf)

	require.NoError(t, w.Serialize(context.Background(), renderable{Name: "dgx01"}))
	assert.JSONEq(t, `{"name":"dgx01"}`, buf.String())
}

func TestWriter_YAML(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatYAML, &buf)

	require.NoError(t, w.Serialize(context.Background(), renderable{Name: "dgx01"}))
	assert.Equal(t, "name: dgx01\n", buf.String())
}

func TestWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatText, &buf)

	require.NoError(t, w.Serialize(context.Background(), renderable{Name: "dgx01"}))
	assert.Equal(t, "name: dgx01\n", buf.String())
}

func TestWriter_TextWithoutRenderer(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatText, &buf)

	err := w.Serialize(context.Background(), map[string]string{"a": "b"})
	assert.Error(t, err)
}

func TestWriter_UnknownFormatDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(Format("xml"), &buf)

	require.NoError(t, w.Serialize(context.Background(), renderable{Name: "x"}))
	assert.JSONEq(t, `{"name":"x"}`, buf.String())
}

func TestFormat_IsUnknown(t *testing.T) {
	assert.False(t, FormatJSON.IsUnknown())
	assert.False(t, FormatYAML.IsUnknown())
	assert.False(t, FormatText.IsUnknown())
	assert.True(t, Format("csv").IsUnknown())
	assert.Len(t, SupportedFormats(), 3)
}
