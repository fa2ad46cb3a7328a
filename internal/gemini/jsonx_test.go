package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
		{"unfenced with inner backticks", "{\"descricao\":\"uso de ``` no texto\"}", "{\"descricao\":\"uso de ``` no texto\"}"},
		{"fenced with inner backticks", "```json\n{\"descricao\":\"uso de ``` no texto\"}\n```", "{\"descricao\":\"uso de ``` no texto\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractObject(t *testing.T) {
	obj, err := ExtractObject(`Here is the result: {"a": {"b": 2}} hope it helps`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 2}}`, obj)

	_, err = ExtractObject("no json here")
	assert.Error(t, err)
}

func TestDecodeObject(t *testing.T) {
	var out struct {
		Valor int `json:"valor"`
	}

	err := DecodeObject("```json\nSegue o JSON: {\"valor\": 42}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Valor)

	err = DecodeObject("{not valid json}", &out)
	assert.Error(t, err, "malformed JSON must surface, not default")
}
