// Package catalog knows which models exist, in which regions, and through
// which access method each can be invoked.
//
// Catalogs come from a waterfall: cached document, live control-plane fetch
// across regions, then a bundled snapshot shipped with the binary. A
// UnifiedCatalog is immutable once built; refreshes build a new one.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// PackageVersion is the document schema version written by this build.
// Documents load only when their major version matches and their minor
// version is not newer.
const PackageVersion = "1.3.0"

// ModelAccessInfo describes how one model can be reached in one region.
type ModelAccessInfo struct {
	Region            string `json:"region"`
	Direct            bool   `json:"direct"`
	DirectID          string `json:"direct_id,omitempty"`
	RegionalProfile   bool   `json:"regional_profile"`
	RegionalProfileID string `json:"regional_profile_id,omitempty"`
	GlobalProfile     bool   `json:"global_profile"`
	GlobalProfileID   string `json:"global_profile_id,omitempty"`
}

// Identifier returns the id to invoke with for method, if the method is offered.
func (a ModelAccessInfo) Identifier(method protocol.AccessMethod) (string, bool) {
	switch method {
	case protocol.AccessDirect:
		return a.DirectID, a.Direct && a.DirectID != ""
	case protocol.AccessRegionalProfile:
		return a.RegionalProfileID, a.RegionalProfile && a.RegionalProfileID != ""
	case protocol.AccessGlobalProfile:
		return a.GlobalProfileID, a.GlobalProfile && a.GlobalProfileID != ""
	}
	return "", false
}

// Offers reports whether method is usable.
func (a ModelAccessInfo) Offers(method protocol.AccessMethod) bool {
	_, ok := a.Identifier(method)
	return ok
}

// Methods returns the usable methods in default preference order.
func (a ModelAccessInfo) Methods() []protocol.AccessMethod {
	methods := make([]protocol.AccessMethod, 0, len(protocol.DefaultAccessOrder))
	for _, m := range protocol.DefaultAccessOrder {
		if a.Offers(m) {
			methods = append(methods, m)
		}
	}
	return methods
}

// Available reports whether at least one method has an identifier.
func (a ModelAccessInfo) Available() bool {
	return len(a.Methods()) > 0
}

func (a ModelAccessInfo) validate() error {
	if a.Direct && a.DirectID == "" {
		return fmt.Errorf("direct access without model id")
	}
	if a.RegionalProfile && a.RegionalProfileID == "" {
		return fmt.Errorf("regional profile without profile id")
	}
	if a.GlobalProfile && a.GlobalProfileID == "" {
		return fmt.Errorf("global profile without profile id")
	}
	if !a.Available() {
		return fmt.Errorf("no access method")
	}
	return nil
}

// ModelEntry is one model with its per-region access.
type ModelEntry struct {
	Name               string                     `json:"name"`
	Provider           string                     `json:"provider,omitempty"`
	ModelID            string                     `json:"model_id"`
	InputModalities    []string                   `json:"input_modalities,omitempty"`
	OutputModalities   []string                   `json:"output_modalities,omitempty"`
	StreamingSupported bool                       `json:"streaming_supported"`
	Regions            map[string]ModelAccessInfo `json:"regions"`
}

// RegionNames returns the regions the model is available in, sorted.
func (m ModelEntry) RegionNames() []string {
	names := make([]string, 0, len(m.Regions))
	for r := range m.Regions {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

// SupportsInput reports whether the model accepts the modality (case-insensitive).
func (m ModelEntry) SupportsInput(modality string) bool {
	for _, in := range m.InputModalities {
		if strings.EqualFold(in, modality) {
			return true
		}
	}
	return false
}

func (m ModelEntry) clone() ModelEntry {
	c := m
	c.InputModalities = append([]string(nil), m.InputModalities...)
	c.OutputModalities = append([]string(nil), m.OutputModalities...)
	c.Regions = make(map[string]ModelAccessInfo, len(m.Regions))
	for r, info := range m.Regions {
		info.Region = r
		c.Regions[r] = info
	}
	return c
}

// Metadata describes where and when a catalog was obtained.
type Metadata struct {
	Source         protocol.CatalogSource `json:"source"`
	RetrievedAt    time.Time              `json:"retrieval_timestamp"`
	RegionsQueried []string               `json:"regions_queried"`
	PackageVersion string                 `json:"package_version"`
	CachePath      string                 `json:"cache_path,omitempty"`
}

// UnifiedCatalog maps model names to their access information.
type UnifiedCatalog struct {
	metadata Metadata
	models   map[string]ModelEntry
}

// NewUnifiedCatalog validates and copies its inputs into an immutable catalog.
func NewUnifiedCatalog(meta Metadata, models map[string]ModelEntry) (*UnifiedCatalog, error) {
	if meta.Source == "" {
		return nil, fmt.Errorf("catalog metadata has no source")
	}
	if meta.RetrievedAt.IsZero() {
		return nil, fmt.Errorf("catalog metadata has no retrieval timestamp")
	}
	if meta.PackageVersion == "" {
		meta.PackageVersion = PackageVersion
	}
	meta.RetrievedAt = meta.RetrievedAt.UTC()
	meta.RegionsQueried = append([]string(nil), meta.RegionsQueried...)

	copied := make(map[string]ModelEntry, len(models))
	for name, entry := range models {
		if name == "" {
			return nil, fmt.Errorf("catalog contains a model without a name")
		}
		for region, info := range entry.Regions {
			info.Region = region
			if err := info.validate(); err != nil {
				return nil, fmt.Errorf("model %q in %s: %w", name, region, err)
			}
		}
		entry = entry.clone()
		entry.Name = name
		copied[name] = entry
	}

	return &UnifiedCatalog{metadata: meta, models: copied}, nil
}

// Metadata returns the catalog metadata.
func (c *UnifiedCatalog) Metadata() Metadata {
	m := c.metadata
	m.RegionsQueried = append([]string(nil), c.metadata.RegionsQueried...)
	return m
}

// Len returns the number of models.
func (c *UnifiedCatalog) Len() int {
	return len(c.models)
}

// Model returns a copy of the named entry.
func (c *UnifiedCatalog) Model(name string) (ModelEntry, bool) {
	entry, ok := c.models[name]
	if !ok {
		return ModelEntry{}, false
	}
	return entry.clone(), true
}

// Models returns copies of every entry keyed by name.
func (c *UnifiedCatalog) Models() map[string]ModelEntry {
	out := make(map[string]ModelEntry, len(c.models))
	for name, entry := range c.models {
		out[name] = entry.clone()
	}
	return out
}

// ============================================================
// Version compatibility
// ============================================================

// CompatibleVersion reports whether a document written by version can be read
// by this build: same major version, minor not newer than ours.
func CompatibleVersion(version string) bool {
	gotMajor, gotMinor, ok := parseVersion(version)
	if !ok {
		return false
	}
	wantMajor, wantMinor, _ := parseVersion(PackageVersion)
	return gotMajor == wantMajor && gotMinor <= wantMinor
}

func parseVersion(v string) (major, minor int, ok bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.SplitN(v, ".", 3)
	nums := make([]int, 2)
	for i := 0; i < 2 && i < len(parts); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], true
}
