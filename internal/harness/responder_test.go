package harness

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

func TestResponderFiresOncePerPrompt(t *testing.T) {
	var buf bytes.Buffer
	r := NewResponder([]model.PromptRule{
		{ID: "provider", Contains: "How would you like to log in", Response: []byte(model.KeyDown + model.KeyEnter)},
	}, &buf)

	// A full-screen menu repaints the same prompt on every frame.
	for i := 0; i < 50; i++ {
		fired, err := r.Observe("? How would you like to log in to Visual Studio Code?")
		require.NoError(t, err)
		assert.Equal(t, i == 0, fired)
	}
	assert.Equal(t, model.KeyDown+model.KeyEnter, buf.String())
	assert.True(t, r.Answered("provider"))
}

func TestResponderIndependentPrompts(t *testing.T) {
	var buf bytes.Buffer
	r := NewResponder([]model.PromptRule{
		{ID: "license", Contains: "accept the license", Response: []byte("y\n")},
		{ID: "telemetry", Contains: "send telemetry", Response: []byte("n\n")},
	}, &buf)

	fired, err := r.Observe("Do you accept the license terms?")
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = r.Observe("May we send telemetry?")
	require.NoError(t, err)
	assert.True(t, fired)

	assert.Equal(t, "y\nn\n", buf.String())
}

func TestResponderIgnoresUnknownText(t *testing.T) {
	var buf bytes.Buffer
	r := NewResponder([]model.PromptRule{
		{ID: "license", Contains: "accept the license", Response: []byte("y\n")},
	}, &buf)

	fired, err := r.Observe("starting server on 127.0.0.1:8080")
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Zero(t, buf.Len())
}
