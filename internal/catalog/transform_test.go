package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

func fetchResult(plane *fakePlane) *FetchResult {
	res := &FetchResult{
		Regions:     make(map[string]RegionData),
		Failed:      make(map[string]error),
		RetrievedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for region, models := range plane.models {
		res.Regions[region] = RegionData{Models: models, Profiles: plane.profiles[region]}
	}
	return res
}

func TestTransformCorrelatesProfiles(t *testing.T) {
	cat, err := Transform(fetchResult(standardPlane()))
	require.NoError(t, err)

	meta := cat.Metadata()
	assert.Equal(t, protocol.SourceAPI, meta.Source)
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, meta.RegionsQueried)

	claude, ok := cat.Model("Claude")
	require.True(t, ok)
	assert.Equal(t, "Anthropic", claude.Provider)
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, claude.RegionNames())

	east := claude.Regions["us-east-1"]
	assert.False(t, east.Direct, "INFERENCE_PROFILE-only models have no direct access")
	assert.Equal(t, "us.anthropic.claude-v1", east.RegionalProfileID)
	assert.Equal(t, "global.anthropic.claude-v1", east.GlobalProfileID, "prefix-stripped profile ids correlate")

	west := claude.Regions["us-west-2"]
	assert.True(t, west.Direct)
	assert.Equal(t, "anthropic.claude-v1", west.DirectID)
	assert.False(t, west.RegionalProfile)

	titan, ok := cat.Model("Titan")
	require.True(t, ok)
	assert.Equal(t, []protocol.AccessMethod{protocol.AccessDirect}, titan.Regions["us-east-1"].Methods())
}

func TestTransformDropsUninvocableAndInactive(t *testing.T) {
	plane := newFakePlane()
	plane.models["us-east-1"] = []FoundationModel{
		{ModelID: "vendor.provisioned-only", ModelName: "Provisioned", InferenceTypes: []string{"PROVISIONED"}},
	}
	plane.profiles["us-east-1"] = []InferenceProfile{
		{ID: "us.vendor.provisioned-only", Status: "DISABLED"},
	}

	cat, err := Transform(fetchResult(plane))
	require.NoError(t, err)
	assert.Zero(t, cat.Len())
}

func TestTransformResolvesNameCollisions(t *testing.T) {
	plane := newFakePlane()
	plane.models["us-east-1"] = []FoundationModel{
		{ModelID: "a.model-v1", ModelName: "Model", InferenceTypes: []string{"ON_DEMAND"}},
		{ModelID: "b.model-v1", ModelName: "Model", InferenceTypes: []string{"ON_DEMAND"}},
	}

	cat, err := Transform(fetchResult(plane))
	require.NoError(t, err)

	first, ok := cat.Model("Model")
	require.True(t, ok)
	assert.Equal(t, "a.model-v1", first.ModelID)

	second, ok := cat.Model("b.model-v1")
	require.True(t, ok)
	assert.Equal(t, "b.model-v1", second.ModelID)
}

func TestTransformProfileForUnlistedModel(t *testing.T) {
	plane := newFakePlane()
	plane.models["eu-west-1"] = nil
	plane.profiles["eu-west-1"] = []InferenceProfile{
		{ID: "eu.vendor.remote-v1", ModelARNs: []string{
			"arn:aws:bedrock:eu-central-1::foundation-model/vendor.remote-v1",
			"arn:aws:bedrock:eu-west-3::foundation-model/vendor.remote-v1",
		}},
	}

	cat, err := Transform(fetchResult(plane))
	require.NoError(t, err)

	entry, ok := cat.Model("vendor.remote-v1")
	require.True(t, ok)
	assert.Equal(t, "eu.vendor.remote-v1", entry.Regions["eu-west-1"].RegionalProfileID)
}
