// Package protocol provides shared data structures used across the catalog and
// retry components. These types can be imported by external tools that read
// cache documents or attempt histories.
package protocol

// AccessMethod is the way a model is addressed when invoked.
type AccessMethod string

const (
	AccessDirect          AccessMethod = "direct"           // Raw model id
	AccessRegionalProfile AccessMethod = "regional_profile" // Regional cross-region inference profile
	AccessGlobalProfile   AccessMethod = "global_profile"   // Global inference profile
)

// DefaultAccessOrder is the preference order used when nothing has been learned.
var DefaultAccessOrder = []AccessMethod{
	AccessDirect,
	AccessRegionalProfile,
	AccessGlobalProfile,
}

// IsProfile reports whether the method goes through an inference profile.
func (m AccessMethod) IsProfile() bool {
	return m == AccessRegionalProfile || m == AccessGlobalProfile
}

// CatalogSource tags where a catalog came from.
type CatalogSource string

const (
	SourceAPI     CatalogSource = "API"
	SourceCache   CatalogSource = "CACHE"
	SourceBundled CatalogSource = "BUNDLED"
)
