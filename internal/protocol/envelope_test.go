package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := Envelope{
		ID:     "req-1",
		Type:   KindRequest,
		Method: "math.add",
		Args:   json.RawMessage(`[1,2]`),
	}

	line, err := Encode(env)
	require.NoError(t, err)
	assert.NotContains(t, line, "\n")

	decoded, ok := Decode(line)
	require.True(t, ok)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, Version, decoded.Version)
	assert.JSONEq(t, `[1,2]`, string(decoded.Args))
}

func TestDecodeDropsMalformedAndEmptyLines(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"{not json",
		`{"id":"x","type":"unknown","version":"json"}`,
		`{"id":"x","version":"json"}`,
	}
	for _, line := range cases {
		_, ok := Decode(line)
		assert.False(t, ok, "expected line to be dropped: %q", line)
	}
}

func TestDecodeAcceptsAllSixKinds(t *testing.T) {
	kinds := []Kind{KindRequest, KindResponse, KindCallback, KindGet, KindSet, KindConstruct}
	for _, k := range kinds {
		line := `{"id":"x","type":"` + string(k) + `","version":"json"}`
		_, ok := Decode(line)
		assert.True(t, ok, "expected kind %s to decode", k)
	}
}

func TestNewResultDefaultsNilToNull(t *testing.T) {
	env, err := NewResult("id-1", nil)
	require.NoError(t, err)

	var args ResponseArgs
	require.NoError(t, json.Unmarshal(env.Args, &args))
	assert.Equal(t, "null", strings.TrimSpace(string(args.Result)))
	assert.Empty(t, args.Error)
}

func TestNewErrorCarriesNameMessageData(t *testing.T) {
	env, err := NewError("id-2", WireError{Name: "TypeError", Message: "bad arg", Data: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)

	var args ResponseArgs
	require.NoError(t, json.Unmarshal(env.Args, &args))
	require.NotEmpty(t, args.Error)

	var wireErr WireError
	require.NoError(t, json.Unmarshal(args.Error, &wireErr))
	assert.Equal(t, "TypeError", wireErr.Name)
	assert.Equal(t, "bad arg", wireErr.Message)
	assert.JSONEq(t, `{"x":1}`, string(wireErr.Data))
}

func TestEncodePreservesFramingForValuesContainingNewlines(t *testing.T) {
	args, err := json.Marshal([]string{"line one\nline two"})
	require.NoError(t, err)

	line, err := Encode(Envelope{ID: "x", Type: KindRequest, Method: "echo", Args: args})
	require.NoError(t, err)
	assert.NotContains(t, line, "\n", "JSON string escaping must absorb the embedded newline")

	decoded, ok := Decode(line)
	require.True(t, ok)

	var got []string
	require.NoError(t, json.Unmarshal(decoded.Args, &got))
	assert.Equal(t, []string{"line one\nline two"}, got)
}
