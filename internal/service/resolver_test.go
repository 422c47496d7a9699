package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/planweave/internal/domain"
)

func echoSpec() domain.AgentSpec {
	return domain.AgentSpec{
		Slug:         "demo-echo",
		Name:         "Demo Echo",
		Description:  "Echoes input.",
		SystemPrompt: "You echo the input.",
		Metadata: &domain.SpecMetadata{
			Tags: []string{"specialist", "domain:demo"},
		},
	}
}

func TestResolveCreatesNewAgent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	origin := domain.AgentOrigin{ParentRunID: "r1", RootRunID: "r1", CreatedByAgentID: "a0", UserMessage: "go"}
	res, err := svc.ResolveAgentSpec(ctx, echoSpec(), origin, domain.CreatedByAgent)
	require.NoError(t, err)

	assert.True(t, res.CreatedNewAgent)
	assert.False(t, res.Reused)
	assert.Equal(t, "demo-echo", res.Slug)
	assert.Equal(t, "", res.MatchedOn)

	agent, err := svc.Store().GetAgent(ctx, res.AgentID)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, domain.RoleSpecialist, agent.Metadata.Role)
	assert.Equal(t, []string{"demo"}, agent.Metadata.Domains)
	require.NotNil(t, agent.Metadata.Origin)
	assert.Equal(t, "r1", agent.Metadata.Origin.ParentRunID)

	// The synthesized card carries the effective tags in its first skill.
	var card struct {
		ProtocolVersion string `json:"protocolVersion"`
		Skills          []struct {
			Tags []string `json:"tags"`
		} `json:"skills"`
	}
	require.NoError(t, json.Unmarshal(agent.Metadata.Card, &card))
	assert.NotEmpty(t, card.ProtocolVersion)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, []string{"specialist", "domain:demo"}, card.Skills[0].Tags)

	version, err := svc.Store().GetAgentVersion(ctx, res.AgentVersionID)
	require.NoError(t, err)
	assert.Equal(t, 1, version.Version)
}

func TestResolveReusesBySlugWhenPromptUnchanged(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.ResolveAgentSpec(ctx, echoSpec(), domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	// Same spec with extra whitespace around the prompt: still a reuse.
	spec := echoSpec()
	spec.SystemPrompt = "  " + spec.SystemPrompt + "\n"
	second, err := svc.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, "slug", second.MatchedOn)
	assert.Equal(t, first.AgentID, second.AgentID)
	assert.Equal(t, first.AgentVersionID, second.AgentVersionID)

	versions, err := svc.Store().ListAgentVersions(ctx, first.AgentID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "identical prompt must not create a new version")
}

func TestResolveAppendsVersionWhenPromptDiffers(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.ResolveAgentSpec(ctx, echoSpec(), domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	spec := echoSpec()
	spec.SystemPrompt = "You echo the input, loudly."
	second, err := svc.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	assert.False(t, second.Reused)
	assert.True(t, second.CreatedNewVersion)
	assert.Equal(t, "slug-updated", second.MatchedOn)
	assert.Equal(t, first.AgentID, second.AgentID)
	assert.NotEqual(t, first.AgentVersionID, second.AgentVersionID)

	agent, err := svc.Store().GetAgent(ctx, first.AgentID)
	require.NoError(t, err)
	assert.Equal(t, second.AgentVersionID, agent.ActiveVersionID)

	versions, err := svc.Store().ListAgentVersions(ctx, first.AgentID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
}

func TestResolveMatchesByName(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ResolveAgentSpec(ctx, echoSpec(), domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	spec := echoSpec()
	spec.Slug = "another-slug"
	spec.Name = "DEMO ECHO"
	res, err := svc.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	assert.Equal(t, "name", res.MatchedOn)
	assert.Equal(t, "another-slug", res.RequestedSlug)
	assert.Equal(t, "demo-echo", res.Slug)
}

func TestResolveMatchesByTags(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	seed := echoSpec()
	seed.Metadata.Tags = []string{"alpha"}
	first, err := svc.ResolveAgentSpec(ctx, seed, domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	spec := domain.AgentSpec{
		Slug:         "x-helper",
		Name:         "X Helper",
		SystemPrompt: "You help with x.",
		Metadata:     &domain.SpecMetadata{Tags: []string{"alpha"}},
	}
	res, err := svc.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedByAgent)
	require.NoError(t, err)

	// Prompts differ, so the tag match appends a version to the existing agent.
	assert.Equal(t, "tags-updated", res.MatchedOn)
	assert.Equal(t, first.AgentID, res.AgentID)
	assert.True(t, res.CreatedNewVersion)
}

func TestResolveRejectsIncompleteSpec(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	spec := echoSpec()
	spec.SystemPrompt = "   "
	_, err := svc.ResolveAgentSpec(ctx, spec, domain.AgentOrigin{}, domain.CreatedByAgent)
	require.Error(t, err)

	agents, err := svc.Store().ListAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents, "validation must run before any insert")
}
