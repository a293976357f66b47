package catalog

import (
	"sort"
	"strings"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Store is a read-only, query-optimized view over a UnifiedCatalog.
// It is safe for concurrent use without locking.
type Store struct {
	catalog  *UnifiedCatalog
	byName   map[string]string   // normalized name -> catalog name
	byID     map[string]string   // raw model id -> catalog name
	byRegion map[string][]string // region -> sorted catalog names
	names    []string
}

// Filter narrows ListModels. Zero fields match everything.
type Filter struct {
	Provider      string
	Region        string
	Streaming     bool
	InputModality string
}

// NewStore indexes a catalog.
func NewStore(c *UnifiedCatalog) *Store {
	s := &Store{
		catalog:  c,
		byName:   make(map[string]string, len(c.models)),
		byID:     make(map[string]string, len(c.models)),
		byRegion: make(map[string][]string),
		names:    make([]string, 0, len(c.models)),
	}

	for name, entry := range c.models {
		s.names = append(s.names, name)
		s.byName[normalize(name)] = name
		if entry.ModelID != "" {
			s.byID[entry.ModelID] = name
		}
		for region := range entry.Regions {
			s.byRegion[region] = append(s.byRegion[region], name)
		}
	}

	sort.Strings(s.names)
	for region := range s.byRegion {
		sort.Strings(s.byRegion[region])
	}
	return s
}

// Catalog returns the underlying catalog.
func (s *Store) Catalog() *UnifiedCatalog {
	return s.catalog
}

// Metadata returns the catalog metadata.
func (s *Store) Metadata() Metadata {
	return s.catalog.Metadata()
}

// Resolve maps a name, a differently-cased name or a raw model id to the catalog name.
func (s *Store) Resolve(nameOrID string) (string, bool) {
	if _, ok := s.catalog.models[nameOrID]; ok {
		return nameOrID, true
	}
	if name, ok := s.byName[normalize(nameOrID)]; ok {
		return name, true
	}
	if name, ok := s.byID[nameOrID]; ok {
		return name, true
	}
	return "", false
}

// Model returns the entry for a name or raw model id.
func (s *Store) Model(nameOrID string) (ModelEntry, bool) {
	name, ok := s.Resolve(nameOrID)
	if !ok {
		return ModelEntry{}, false
	}
	return s.catalog.Model(name)
}

// AccessInfo returns how the model can be reached in region.
func (s *Store) AccessInfo(nameOrID, region string) (ModelAccessInfo, bool) {
	name, ok := s.Resolve(nameOrID)
	if !ok {
		return ModelAccessInfo{}, false
	}
	info, ok := s.catalog.models[name].Regions[region]
	return info, ok
}

// IsAvailable reports whether the model can be invoked in region by any method.
func (s *Store) IsAvailable(nameOrID, region string) bool {
	info, ok := s.AccessInfo(nameOrID, region)
	return ok && info.Available()
}

// Names returns every model name, sorted.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// ModelsInRegion returns the names of models available in region, sorted.
func (s *Store) ModelsInRegion(region string) []string {
	return append([]string(nil), s.byRegion[region]...)
}

// RegionsForModel returns the regions a model is available in, sorted.
func (s *Store) RegionsForModel(nameOrID string) []string {
	entry, ok := s.Model(nameOrID)
	if !ok {
		return nil
	}
	return entry.RegionNames()
}

// Regions returns every region holding at least one model, sorted.
func (s *Store) Regions() []string {
	regions := make([]string, 0, len(s.byRegion))
	for r := range s.byRegion {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

// ListModels returns the entries matching f, sorted by name.
func (s *Store) ListModels(f Filter) []ModelEntry {
	candidates := s.names
	if f.Region != "" {
		candidates = s.byRegion[f.Region]
	}

	var out []ModelEntry
	for _, name := range candidates {
		entry := s.catalog.models[name]
		if f.Provider != "" && !strings.EqualFold(entry.Provider, f.Provider) {
			continue
		}
		if f.Streaming && !entry.StreamingSupported {
			continue
		}
		if f.InputModality != "" && !entry.SupportsInput(f.InputModality) {
			continue
		}
		out = append(out, entry.clone())
	}
	return out
}

// ProfileModels returns the names of models that some region offers only
// through an inference profile.
func (s *Store) ProfileModels() []string {
	var out []string
	for _, name := range s.names {
		for _, info := range s.catalog.models[name].Regions {
			if !info.Offers(protocol.AccessDirect) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
