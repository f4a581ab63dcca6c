package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalDirect(t *testing.T) {
	var out struct {
		Type string `json:"type"`
	}

	require.NoError(t, Unmarshal(`{"type": "chat"}`, &out))
	assert.Equal(t, "chat", out.Type)
}

func TestUnmarshalWithProse(t *testing.T) {
	var out struct {
		Type    string   `json:"type"`
		Domains []string `json:"domains"`
	}

	text := "Sure! Here is the routing decision:\n{\"type\": \"action\", \"domains\": [\"task\"]}\nLet me know if you need anything else."

	require.NoError(t, Unmarshal(text, &out))
	assert.Equal(t, "action", out.Type)
	assert.Equal(t, []string{"task"}, out.Domains)
}

func TestUnmarshalNestedBraces(t *testing.T) {
	var out struct {
		Params map[string]string `json:"params"`
	}

	text := `prefix {"params": {"title": "call {mom}"}} suffix`

	require.NoError(t, Unmarshal(text, &out))
	assert.Equal(t, "call {mom}", out.Params["title"])
}

func TestUnmarshalBracesInsideStrings(t *testing.T) {
	var out struct {
		Message string `json:"message"`
	}

	text := `{"message": "a \"quoted\" brace } inside"}`

	require.NoError(t, Unmarshal(text, &out))
	assert.Equal(t, `a "quoted" brace } inside`, out.Message)
}

func TestUnmarshalNoJSON(t *testing.T) {
	var out map[string]any

	err := Unmarshal("sorry, I can't help with that", &out)
	require.Error(t, err)
	assert.True(t, ErrNoJSON(err))
}

func TestRenderTemplate(t *testing.T) {
	result := RenderTemplate("hello {name}, today is {day}", map[string]string{
		"name": "world",
		"day":  "Tuesday",
	})

	assert.Equal(t, "hello world, today is Tuesday", result)
}
