package callback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitToken(t *testing.T) {
	token, ok := SplitToken(Prefix + "abc-123")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", token)

	_, ok = SplitToken("not-a-callback")
	assert.False(t, ok)
}

func TestRegisterAndInvoke(t *testing.T) {
	reg := New()
	var got []json.RawMessage
	reg.Register("tok-1", func(args []json.RawMessage) { got = args })

	ok := reg.Invoke("tok-1", []json.RawMessage{json.RawMessage(`"payload"`)})
	assert.True(t, ok)
	assert.Equal(t, []json.RawMessage{json.RawMessage(`"payload"`)}, got)
}

func TestInvokeUnknownTokenIsDropped(t *testing.T) {
	reg := New()
	ok := reg.Invoke("no-such-token", nil)
	assert.False(t, ok)
}

func TestInvokeArbitraryManyTimes(t *testing.T) {
	reg := New()
	count := 0
	reg.Register("tok", func(args []json.RawMessage) { count++ })

	for i := 0; i < 5; i++ {
		assert.True(t, reg.Invoke("tok", nil))
	}
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, reg.Len())
}
