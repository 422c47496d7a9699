package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelOutputFinal(t *testing.T) {
	out, err := ParseModelOutput(`{"type":"final","result":{"answer":42}}`)
	require.NoError(t, err)
	assert.Equal(t, "final", out.Type)
	assert.JSONEq(t, `{"answer":42}`, string(out.Result))
}

func TestParseModelOutputPlan(t *testing.T) {
	out, err := ParseModelOutput(`{
		"type": "plan",
		"agentsToCreate": [{"slug":"s","name":"N","systemPrompt":"p"}],
		"runsToExecute": [{"slug":"s","userMessage":"go"}]
	}`)
	require.NoError(t, err)
	assert.Equal(t, "plan", out.Type)
	require.Len(t, out.AgentsToCreate, 1)
	require.Len(t, out.RunsToExecute, 1)
	assert.Equal(t, "s", out.RunsToExecute[0].Slug)
}

func TestParseModelOutputLegacyKeys(t *testing.T) {
	out, err := ParseModelOutput(`{
		"type": "plan",
		"agents": [{"slug":"s","name":"N","systemPrompt":"p"}],
		"runs": [{"slug":"s"}]
	}`)
	require.NoError(t, err)
	require.Len(t, out.AgentsToCreate, 1)
	require.Len(t, out.RunsToExecute, 1)
}

func TestParseModelOutputPrimaryKeyWins(t *testing.T) {
	out, err := ParseModelOutput(`{
		"type": "plan",
		"agentsToCreate": [],
		"agents": [{"slug":"legacy","name":"L","systemPrompt":"p"}],
		"runsToExecute": [],
		"runs": [{"slug":"legacy"}]
	}`)
	require.NoError(t, err)
	assert.Empty(t, out.AgentsToCreate)
	assert.Empty(t, out.RunsToExecute)
}

func TestParseModelOutputMissingType(t *testing.T) {
	_, err := ParseModelOutput(`{"result":{}}`)
	require.Error(t, err)
	assert.Equal(t, "Model response missing type plan/final", err.Error())

	_, err = ParseModelOutput(`{"type":"other"}`)
	require.Error(t, err)
}

func TestParseModelOutputRejectsNonJSON(t *testing.T) {
	_, err := ParseModelOutput(`plain text answer`)
	require.Error(t, err)
}

func TestParseModelOutputRejectsNonArrayPlanKeys(t *testing.T) {
	_, err := ParseModelOutput(`{"type":"plan","agentsToCreate":"oops"}`)
	require.Error(t, err)

	_, err = ParseModelOutput(`{"type":"plan","runsToExecute":{"slug":"x"}}`)
	require.Error(t, err)
}

func TestParseModelOutputEmptyPlan(t *testing.T) {
	out, err := ParseModelOutput(`{"type":"plan"}`)
	require.NoError(t, err)
	assert.NotNil(t, out.AgentsToCreate)
	assert.NotNil(t, out.RunsToExecute)
	assert.Empty(t, out.AgentsToCreate)
	assert.Empty(t, out.RunsToExecute)
}
