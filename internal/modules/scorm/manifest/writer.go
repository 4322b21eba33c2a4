package manifest

import (
	"bytes"
	"encoding/xml"
)

const (
	nsIMSCP = "http://www.imsglobal.org/xsd/imscp_v1p1"
	nsADLCP = "http://www.adlnet.org/xsd/adlcp_v1p3"
)

type outManifest struct {
	XMLName       xml.Name         `xml:"manifest"`
	Xmlns         string           `xml:"xmlns,attr"`
	XmlnsADLCP    string           `xml:"xmlns:adlcp,attr"`
	Identifier    string           `xml:"identifier,attr"`
	Version       string           `xml:"version,attr,omitempty"`
	Metadata      outMetadata      `xml:"metadata"`
	Organizations outOrganizations `xml:"organizations"`
	Resources     outResources     `xml:"resources"`
}

type outMetadata struct {
	Schema        string `xml:"schema"`
	SchemaVersion string `xml:"schemaversion,omitempty"`
	Title         string `xml:"lom>general>title>string"`
}

type outOrganizations struct {
	Default       string            `xml:"default,attr,omitempty"`
	Organizations []outOrganization `xml:"organization"`
}

type outOrganization struct {
	Identifier string    `xml:"identifier,attr"`
	Title      string    `xml:"title"`
	Items      []outItem `xml:"item"`
}

type outItem struct {
	Identifier    string    `xml:"identifier,attr"`
	IdentifierRef string    `xml:"identifierref,attr,omitempty"`
	Title         string    `xml:"title"`
	Items         []outItem `xml:"item"`
}

type outResources struct {
	Resources []outResource `xml:"resource"`
}

type outResource struct {
	Identifier string    `xml:"identifier,attr"`
	Type       string    `xml:"type,attr"`
	ScormType  string    `xml:"adlcp:scormType,attr,omitempty"`
	Href       string    `xml:"href,attr,omitempty"`
	Files      []outFile `xml:"file"`
}

type outFile struct {
	Href string `xml:"href,attr"`
}

// Marshal renders m as an IMS CP document that Parse reads back to the same structure.
func Marshal(m Manifest) ([]byte, error) {
	doc := outManifest{
		Xmlns:      nsIMSCP,
		XmlnsADLCP: nsADLCP,
		Identifier: m.Identifier,
		Version:    m.Version,
		Metadata: outMetadata{
			Schema:        "ADL SCORM",
			SchemaVersion: m.SchemaVersion,
			Title:         m.Title,
		},
		Organizations: outOrganizations{Default: m.DefaultOrganization},
	}
	for _, o := range m.Organizations {
		doc.Organizations.Organizations = append(doc.Organizations.Organizations, outOrganization{
			Identifier: o.Identifier,
			Title:      o.Title,
			Items:      outItems(o.Items),
		})
	}
	for _, r := range m.Resources {
		or := outResource{Identifier: r.Identifier, Type: r.Type, ScormType: r.ScormType, Href: r.Href}
		for _, f := range r.Files {
			or.Files = append(or.Files, outFile{Href: f})
		}
		doc.Resources.Resources = append(doc.Resources.Resources, or)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func outItems(items []Item) []outItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]outItem, 0, len(items))
	for _, it := range items {
		out = append(out, outItem{
			Identifier:    it.Identifier,
			IdentifierRef: it.IdentifierRef,
			Title:         it.Title,
			Items:         outItems(it.Items),
		})
	}
	return out
}
