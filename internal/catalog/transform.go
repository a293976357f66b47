package catalog

import (
	"sort"
	"strings"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

const (
	inferenceOnDemand = "ON_DEMAND"
	globalPrefix      = "global."
	modelARNMarker    = "foundation-model/"
	statusActive      = "ACTIVE"
)

// Transform correlates raw per-region records into a catalog tagged API.
// Profiles are linked to the models they route to; a model reached only
// through profiles still gets an entry for that region.
func Transform(res *FetchResult) (*UnifiedCatalog, error) {
	names := newNameIndex(res)
	models := make(map[string]ModelEntry)

	entry := func(modelID string, raw *FoundationModel) ModelEntry {
		name := names.name(modelID)
		e, ok := models[name]
		if !ok {
			e = ModelEntry{Name: name, ModelID: modelID, Regions: make(map[string]ModelAccessInfo)}
		}
		if raw != nil && e.Provider == "" {
			e.Provider = raw.ProviderName
			e.InputModalities = append([]string(nil), raw.InputModalities...)
			e.OutputModalities = append([]string(nil), raw.OutputModalities...)
			e.StreamingSupported = raw.StreamingSupported
		}
		return e
	}

	for _, region := range res.Succeeded() {
		data := res.Regions[region]

		for i := range data.Models {
			raw := &data.Models[i]
			e := entry(raw.ModelID, raw)
			info := e.Regions[region]
			if hasInferenceType(raw.InferenceTypes, inferenceOnDemand) {
				info.Direct = true
				info.DirectID = raw.ModelID
			}
			e.Regions[region] = info
			models[e.Name] = e
		}

		for _, p := range data.Profiles {
			if p.Status != "" && !strings.EqualFold(p.Status, statusActive) {
				continue
			}
			for _, modelID := range profileModelIDs(p) {
				e := entry(modelID, names.raw(modelID))
				info := e.Regions[region]
				if strings.HasPrefix(p.ID, globalPrefix) {
					info.GlobalProfile = true
					info.GlobalProfileID = p.ID
				} else {
					info.RegionalProfile = true
					info.RegionalProfileID = p.ID
				}
				e.Regions[region] = info
				models[e.Name] = e
			}
		}
	}

	// Drop regions where the model is listed but not invocable.
	for name, e := range models {
		for region, info := range e.Regions {
			info.Region = region
			if !info.Available() {
				delete(e.Regions, region)
			}
		}
		if len(e.Regions) == 0 {
			delete(models, name)
		}
	}

	return NewUnifiedCatalog(Metadata{
		Source:         protocol.SourceAPI,
		RetrievedAt:    res.RetrievedAt,
		RegionsQueried: res.Succeeded(),
		PackageVersion: PackageVersion,
	}, models)
}

// profileModelIDs returns the model ids a profile routes to. ARNs win; the
// profile id with its geography prefix stripped is the fallback.
func profileModelIDs(p InferenceProfile) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, arn := range p.ModelARNs {
		if _, id, ok := strings.Cut(arn, modelARNMarker); ok && id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		if _, id, ok := strings.Cut(p.ID, "."); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func hasInferenceType(types []string, want string) bool {
	for _, t := range types {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

// nameIndex assigns each model id a stable catalog name. The first id (in
// sorted order) to claim a display name keeps it; later ids fall back to
// their raw id.
type nameIndex struct {
	names map[string]string
	raws  map[string]*FoundationModel
}

func newNameIndex(res *FetchResult) *nameIndex {
	idx := &nameIndex{
		names: make(map[string]string),
		raws:  make(map[string]*FoundationModel),
	}
	for _, region := range res.Succeeded() {
		data := res.Regions[region]
		for i := range data.Models {
			raw := &data.Models[i]
			if _, ok := idx.raws[raw.ModelID]; !ok {
				idx.raws[raw.ModelID] = raw
			}
		}
	}

	ids := make([]string, 0, len(idx.raws))
	for id := range idx.raws {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	claimed := make(map[string]string)
	for _, id := range ids {
		name := strings.TrimSpace(idx.raws[id].ModelName)
		if name == "" {
			name = id
		}
		if owner, ok := claimed[name]; ok && owner != id {
			name = id
		}
		claimed[name] = id
		idx.names[id] = name
	}
	return idx
}

func (n *nameIndex) name(modelID string) string {
	if name, ok := n.names[modelID]; ok {
		return name
	}
	return modelID
}

func (n *nameIndex) raw(modelID string) *FoundationModel {
	return n.raws[modelID]
}
