package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePlane serves canned per-region data and can fail chosen regions.
type fakePlane struct {
	mu       sync.Mutex
	models   map[string][]FoundationModel
	profiles map[string][]InferenceProfile
	fail     map[string]error
	calls    map[string]int
}

func newFakePlane() *fakePlane {
	return &fakePlane{
		models:   make(map[string][]FoundationModel),
		profiles: make(map[string][]InferenceProfile),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakePlane) ListFoundationModels(ctx context.Context, region string) ([]FoundationModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[region]++
	if err := f.fail[region]; err != nil {
		return nil, err
	}
	return f.models[region], nil
}

func (f *fakePlane) ListInferenceProfiles(ctx context.Context, region string) ([]InferenceProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[region]; err != nil {
		return nil, err
	}
	return f.profiles[region], nil
}

func (f *fakePlane) callCount(region string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[region]
}

// standardPlane returns a plane where "Claude" is profile-only in us-east-1
// and direct in us-west-2, and "Titan" is direct in us-east-1.
func standardPlane() *fakePlane {
	p := newFakePlane()
	p.models["us-east-1"] = []FoundationModel{
		{
			ModelID:         "anthropic.claude-v1",
			ModelName:       "Claude",
			ProviderName:    "Anthropic",
			InputModalities: []string{"TEXT", "IMAGE"},
			InferenceTypes:  []string{"INFERENCE_PROFILE"},
		},
		{
			ModelID:        "amazon.titan-v1",
			ModelName:      "Titan",
			ProviderName:   "Amazon",
			InferenceTypes: []string{"ON_DEMAND"},
		},
	}
	p.profiles["us-east-1"] = []InferenceProfile{
		{
			ID:        "us.anthropic.claude-v1",
			Status:    "ACTIVE",
			ModelARNs: []string{"arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-v1"},
		},
		{
			ID:     "global.anthropic.claude-v1",
			Status: "ACTIVE",
		},
	}
	p.models["us-west-2"] = []FoundationModel{
		{
			ModelID:        "anthropic.claude-v1",
			ModelName:      "Claude",
			ProviderName:   "Anthropic",
			InferenceTypes: []string{"ON_DEMAND"},
		},
	}
	return p
}

func noRetry() *apperrors.Policy {
	p := apperrors.NoRetry()
	p.RetryIf = func(error) bool { return false }
	return p
}

func testCatalog(t *testing.T) *UnifiedCatalog {
	t.Helper()
	cat, err := NewUnifiedCatalog(Metadata{
		Source:         protocol.SourceAPI,
		RetrievedAt:    time.Now().Add(-time.Minute),
		RegionsQueried: []string{"us-east-1", "us-west-2"},
	}, map[string]ModelEntry{
		"Claude": {
			Provider:        "Anthropic",
			ModelID:         "anthropic.claude-v1",
			InputModalities: []string{"TEXT", "IMAGE"},
			Regions: map[string]ModelAccessInfo{
				"us-east-1": {RegionalProfile: true, RegionalProfileID: "us.anthropic.claude-v1"},
				"us-west-2": {Direct: true, DirectID: "anthropic.claude-v1"},
			},
		},
		"Titan": {
			Provider: "Amazon",
			ModelID:  "amazon.titan-v1",
			Regions: map[string]ModelAccessInfo{
				"us-east-1": {Direct: true, DirectID: "amazon.titan-v1"},
			},
		},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return cat
}

// failingLocation always fails and records the order it was tried in.
type failingLocation struct {
	name  string
	order *[]string
}

func (f failingLocation) Path() string { return f.name }

func (f failingLocation) Read(context.Context) ([]byte, error) {
	*f.order = append(*f.order, "read:"+f.name)
	return nil, fmt.Errorf("%s unreadable", f.name)
}

func (f failingLocation) Write(context.Context, []byte) error {
	*f.order = append(*f.order, "write:"+f.name)
	return fmt.Errorf("%s not writable", f.name)
}

// recordingLocation wraps a MemoryLocation and records the order it was tried in.
type recordingLocation struct {
	*MemoryLocation
	name  string
	order *[]string
}

func (r recordingLocation) Path() string { return r.name }

func (r recordingLocation) Write(ctx context.Context, data []byte) error {
	*r.order = append(*r.order, "write:"+r.name)
	return r.MemoryLocation.Write(ctx, data)
}
