package bedrock

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"golang.org/x/sync/singleflight"

	"github.com/Bestehorn/LLMManager-sub002/internal/catalog"
)

// ListAPI is the subset of the bedrock client used for catalog discovery.
type ListAPI interface {
	ListFoundationModels(ctx context.Context, in *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
	bedrock.ListInferenceProfilesAPIClient
}

// ControlPlane lists models and inference profiles, one client per region.
type ControlPlane struct {
	newClient func(ctx context.Context, region string) (ListAPI, error)
	builds    singleflight.Group

	mu      sync.Mutex
	clients map[string]ListAPI
}

// NewControlPlane returns a control plane using the default credential chain.
// optFns are applied to every regional config load.
func NewControlPlane(optFns ...func(*awsconfig.LoadOptions) error) *ControlPlane {
	return newControlPlane(func(ctx context.Context, region string) (ListAPI, error) {
		cfg, err := loadConfig(ctx, region, optFns...)
		if err != nil {
			return nil, err
		}
		return bedrock.NewFromConfig(cfg), nil
	})
}

func newControlPlane(newClient func(ctx context.Context, region string) (ListAPI, error)) *ControlPlane {
	return &ControlPlane{newClient: newClient, clients: make(map[string]ListAPI)}
}

func (c *ControlPlane) client(ctx context.Context, region string) (ListAPI, error) {
	if cl, ok := c.cached(region); ok {
		return cl, nil
	}
	v, err, _ := c.builds.Do(region, func() (any, error) {
		if cl, ok := c.cached(region); ok {
			return cl, nil
		}
		cl, err := c.newClient(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("bedrock client for %s: %w", region, err)
		}
		c.mu.Lock()
		c.clients[region] = cl
		c.mu.Unlock()
		return cl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ListAPI), nil
}

func (c *ControlPlane) cached(region string) (ListAPI, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[region]
	return cl, ok
}

// ListFoundationModels returns the region's foundation models.
func (c *ControlPlane) ListFoundationModels(ctx context.Context, region string) ([]catalog.FoundationModel, error) {
	cl, err := c.client(ctx, region)
	if err != nil {
		return nil, err
	}
	out, err := cl.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, mapError("ListFoundationModels", err)
	}

	models := make([]catalog.FoundationModel, 0, len(out.ModelSummaries))
	for _, s := range out.ModelSummaries {
		models = append(models, foundationModel(s))
	}
	return models, nil
}

// ListInferenceProfiles returns every system-defined inference profile in the region.
func (c *ControlPlane) ListInferenceProfiles(ctx context.Context, region string) ([]catalog.InferenceProfile, error) {
	cl, err := c.client(ctx, region)
	if err != nil {
		return nil, err
	}

	var profiles []catalog.InferenceProfile
	pages := bedrock.NewListInferenceProfilesPaginator(cl, &bedrock.ListInferenceProfilesInput{
		MaxResults: aws.Int32(100),
		TypeEquals: types.InferenceProfileTypeSystemDefined,
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, mapError("ListInferenceProfiles", err)
		}
		for _, s := range page.InferenceProfileSummaries {
			profiles = append(profiles, inferenceProfile(s))
		}
	}
	return profiles, nil
}

func foundationModel(s types.FoundationModelSummary) catalog.FoundationModel {
	m := catalog.FoundationModel{
		ModelID:            aws.ToString(s.ModelId),
		ModelARN:           aws.ToString(s.ModelArn),
		ModelName:          aws.ToString(s.ModelName),
		ProviderName:       aws.ToString(s.ProviderName),
		StreamingSupported: aws.ToBool(s.ResponseStreamingSupported),
	}
	for _, in := range s.InputModalities {
		m.InputModalities = append(m.InputModalities, string(in))
	}
	for _, out := range s.OutputModalities {
		m.OutputModalities = append(m.OutputModalities, string(out))
	}
	for _, t := range s.InferenceTypesSupported {
		m.InferenceTypes = append(m.InferenceTypes, string(t))
	}
	if s.ModelLifecycle != nil {
		m.LifecycleStatus = string(s.ModelLifecycle.Status)
	}
	return m
}

func inferenceProfile(s types.InferenceProfileSummary) catalog.InferenceProfile {
	p := catalog.InferenceProfile{
		ID:     aws.ToString(s.InferenceProfileId),
		ARN:    aws.ToString(s.InferenceProfileArn),
		Name:   aws.ToString(s.InferenceProfileName),
		Type:   string(s.Type),
		Status: string(s.Status),
	}
	for _, m := range s.Models {
		if arn := aws.ToString(m.ModelArn); arn != "" {
			p.ModelARNs = append(p.ModelARNs, arn)
		}
	}
	return p
}

func loadConfig(ctx context.Context, region string, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
	opts := append([]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}, optFns...)
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
