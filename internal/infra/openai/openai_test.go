package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/kbchat/internal/core/datatools"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewGenerator("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	generator, err := NewGenerator("dummy-key", WithChatModel("custom-model"))
	require.NoError(t, err)
	assert.Equal(t, "custom-model", generator.ModelName())
}

func TestBuildSelectionPromptListsCatalog(t *testing.T) {
	catalog := []datatools.Description{
		{Name: "find_employees", Description: "look up employees"},
		{Name: "data_query", Description: "answer aggregate questions"},
	}

	prompt := buildSelectionPrompt("who works in HR?", catalog)

	assert.Contains(t, prompt, "- find_employees: look up employees")
	assert.Contains(t, prompt, "- data_query: answer aggregate questions")
	assert.Contains(t, prompt, "who works in HR?")
	assert.Contains(t, prompt, `"tools"`)
}
