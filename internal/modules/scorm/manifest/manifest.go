// Package manifest parses IMS Content Packaging descriptors (imsmanifest.xml)
// into the organization/item/resource structure a SCORM player needs.
package manifest

import "strings"

const (
	FileName       = "imsmanifest.xml"
	DefaultTitle   = "SCORM Package"
	DefaultVersion = "1.2"
)

type Manifest struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Title      string `json:"title" yaml:"title"`
	Version    string `json:"version" yaml:"version"`
	// SchemaVersion is metadata/schemaversion ("1.2", "2004 4th Edition", ...) when present.
	SchemaVersion       string         `json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	DefaultOrganization string         `json:"default_organization,omitempty" yaml:"default_organization,omitempty"`
	Organizations       []Organization `json:"organizations" yaml:"organizations"`
	Resources           []Resource     `json:"resources" yaml:"resources"`
}

type Organization struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Title      string `json:"title" yaml:"title"`
	Items      []Item `json:"items" yaml:"items"`
}

type Item struct {
	Identifier    string `json:"identifier" yaml:"identifier"`
	Title         string `json:"title" yaml:"title"`
	IdentifierRef string `json:"identifier_ref,omitempty" yaml:"identifier_ref,omitempty"`
	Items         []Item `json:"items,omitempty" yaml:"items,omitempty"`
}

type Resource struct {
	Identifier string   `json:"identifier" yaml:"identifier"`
	Type       string   `json:"type" yaml:"type"`
	ScormType  string   `json:"scorm_type" yaml:"scorm_type"`
	Href       string   `json:"href,omitempty" yaml:"href,omitempty"`
	Files      []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Is2004 reports whether the package targets the SCORM 2004 run-time.
func (m Manifest) Is2004() bool {
	for _, v := range []string{m.SchemaVersion, m.Version} {
		v = strings.ToLower(v)
		if strings.Contains(v, "2004") || strings.Contains(v, "cam 1.3") {
			return true
		}
	}
	return false
}

// Resource looks up a resource by identifier.
func (m Manifest) Resource(identifier string) (Resource, bool) {
	for _, r := range m.Resources {
		if r.Identifier == identifier {
			return r, true
		}
	}
	return Resource{}, false
}

// LaunchHref picks the entry point: the first item (depth-first) of the default
// organization whose resource has an href, else the first launchable resource,
// preferring SCOs over assets.
func (m Manifest) LaunchHref() string {
	for _, o := range m.orderedOrganizations() {
		if href := m.firstItemHref(o.Items); href != "" {
			return href
		}
	}
	for _, r := range m.Resources {
		if r.Href != "" && strings.EqualFold(r.ScormType, "sco") {
			return r.Href
		}
	}
	for _, r := range m.Resources {
		if r.Href != "" {
			return r.Href
		}
	}
	return ""
}

func (m Manifest) orderedOrganizations() []Organization {
	if m.DefaultOrganization == "" {
		return m.Organizations
	}
	out := make([]Organization, 0, len(m.Organizations))
	for _, o := range m.Organizations {
		if o.Identifier == m.DefaultOrganization {
			out = append(out, o)
		}
	}
	for _, o := range m.Organizations {
		if o.Identifier != m.DefaultOrganization {
			out = append(out, o)
		}
	}
	return out
}

func (m Manifest) firstItemHref(items []Item) string {
	for _, it := range items {
		if it.IdentifierRef != "" {
			if r, ok := m.Resource(it.IdentifierRef); ok && r.Href != "" {
				return r.Href
			}
		}
		if href := m.firstItemHref(it.Items); href != "" {
			return href
		}
	}
	return ""
}

// ItemCount counts items across all organizations, nested ones included.
func (m Manifest) ItemCount() int {
	var walk func([]Item) int
	walk = func(items []Item) int {
		n := len(items)
		for _, it := range items {
			n += walk(it.Items)
		}
		return n
	}
	total := 0
	for _, o := range m.Organizations {
		total += walk(o.Items)
	}
	return total
}
