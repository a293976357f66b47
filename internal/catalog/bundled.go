package catalog

import (
	_ "embed"
	"fmt"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

//go:embed bundled/catalog.json
var bundledDocument []byte

// BundledPath names the embedded snapshot in metadata and logs.
const BundledPath = "embedded:bundled/catalog.json"

// BundledLoader produces the last-resort catalog.
type BundledLoader func() (*UnifiedCatalog, error)

// LoadBundled parses the snapshot shipped with the binary. Age is not
// checked; the snapshot is stale by construction.
func LoadBundled() (*UnifiedCatalog, error) {
	return loadBundled(bundledDocument)
}

func loadBundled(data []byte) (*UnifiedCatalog, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bundled catalog: %w", err)
	}
	if !CompatibleVersion(doc.Metadata.PackageVersion) {
		return nil, fmt.Errorf("bundled catalog: version %s incompatible with %s",
			doc.Metadata.PackageVersion, PackageVersion)
	}
	return doc.Catalog(protocol.SourceBundled, BundledPath)
}
