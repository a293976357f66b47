package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Document is the on-disk form shared by cache files and the bundled snapshot.
type Document struct {
	Metadata DocumentMetadata      `json:"metadata"`
	Models   map[string]ModelEntry `json:"models"`
}

// DocumentMetadata is the persisted subset of Metadata.
type DocumentMetadata struct {
	RetrievedAt    time.Time `json:"retrieval_timestamp"`
	RegionsQueried []string  `json:"regions_queried"`
	PackageVersion string    `json:"package_version"`
}

// Encode serializes a catalog as an indented document.
func Encode(c *UnifiedCatalog) ([]byte, error) {
	meta := c.Metadata()
	doc := Document{
		Metadata: DocumentMetadata{
			RetrievedAt:    meta.RetrievedAt,
			RegionsQueried: meta.RegionsQueried,
			PackageVersion: PackageVersion,
		},
		Models: c.models,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses and schema-checks a document. It does not check age.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog document: %w", err)
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) check() error {
	if d.Metadata.RetrievedAt.IsZero() {
		return fmt.Errorf("catalog document has no retrieval_timestamp")
	}
	if d.Metadata.PackageVersion == "" {
		return fmt.Errorf("catalog document has no package_version")
	}
	if d.Models == nil {
		return fmt.Errorf("catalog document has no models section")
	}
	return nil
}

// Catalog builds an immutable catalog from the document.
func (d *Document) Catalog(source protocol.CatalogSource, path string) (*UnifiedCatalog, error) {
	return NewUnifiedCatalog(Metadata{
		Source:         source,
		RetrievedAt:    d.Metadata.RetrievedAt,
		RegionsQueried: d.Metadata.RegionsQueried,
		PackageVersion: d.Metadata.PackageVersion,
		CachePath:      path,
	}, d.Models)
}
