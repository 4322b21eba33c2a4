package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html/charset"
)

var (
	ErrInvalidXML             = errors.New("manifest: invalid xml")
	ErrMissingManifestElement = errors.New("manifest: missing <manifest> root element")
	ErrMissingAttributes      = errors.New("manifest: <manifest> has no identifier attribute")
)

type xmlManifest struct {
	Identifier    string           `xml:"identifier,attr"`
	Version       string           `xml:"version,attr"`
	Metadata      xmlMetadata      `xml:"metadata"`
	Organizations xmlOrganizations `xml:"organizations"`
	Resources     xmlResources     `xml:"resources"`
}

type xmlMetadata struct {
	SchemaVersion string `xml:"schemaversion"`
	LOM           struct {
		General struct {
			Title xmlLangText `xml:"title"`
		} `xml:"general"`
	} `xml:"lom"`
}

// xmlLangText covers LOM 2004 (<string>) and SCORM 1.2 (<langstring>) titles.
type xmlLangText struct {
	Strings     []string `xml:"string"`
	LangStrings []string `xml:"langstring"`
}

func (t xmlLangText) first() string {
	for _, s := range append(append([]string{}, t.Strings...), t.LangStrings...) {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

type xmlOrganizations struct {
	Default       string            `xml:"default,attr"`
	Organizations []xmlOrganization `xml:"organization"`
}

type xmlOrganization struct {
	Identifier string    `xml:"identifier,attr"`
	Title      string    `xml:"title"`
	Items      []xmlItem `xml:"item"`
}

type xmlItem struct {
	Identifier    string    `xml:"identifier,attr"`
	IdentifierRef string    `xml:"identifierref,attr"`
	Title         string    `xml:"title"`
	Items         []xmlItem `xml:"item"`
}

type xmlResources struct {
	Resources []xmlResource `xml:"resource"`
}

type xmlResource struct {
	Identifier string `xml:"identifier,attr"`
	Type       string `xml:"type,attr"`
	// SCORM 2004 spells the attribute scormType, SCORM 1.2 scormtype.
	ScormType       string `xml:"scormType,attr"`
	ScormTypeLegacy string `xml:"scormtype,attr"`
	Href            string `xml:"href,attr"`
	Base            string `xml:"base,attr"`
	Files           []struct {
		Href string `xml:"href,attr"`
	} `xml:"file"`
}

// Parse decodes imsmanifest.xml bytes. Optional fields fall back to documented
// defaults; only malformed XML or a missing/unidentified root is an error.
func Parse(data []byte) (Manifest, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	root, err := rootElement(dec)
	if err != nil {
		return Manifest{}, err
	}
	if !strings.EqualFold(root.Name.Local, "manifest") {
		return Manifest{}, fmt.Errorf("%w: root is <%s>", ErrMissingManifestElement, root.Name.Local)
	}

	var doc xmlManifest
	if err := dec.DecodeElement(&doc, &root); err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidXML, err)
	}
	if strings.TrimSpace(doc.Identifier) == "" {
		return Manifest{}, ErrMissingAttributes
	}
	return doc.toManifest(), nil
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, fmt.Errorf("%w: %w", ErrInvalidXML, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("%w: %w", ErrInvalidXML, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func (doc xmlManifest) toManifest() Manifest {
	m := Manifest{
		Identifier:          strings.TrimSpace(doc.Identifier),
		Version:             strings.TrimSpace(doc.Version),
		SchemaVersion:       strings.TrimSpace(doc.Metadata.SchemaVersion),
		DefaultOrganization: strings.TrimSpace(doc.Organizations.Default),
		Organizations:       make([]Organization, 0, len(doc.Organizations.Organizations)),
		Resources:           make([]Resource, 0, len(doc.Resources.Resources)),
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	for _, o := range doc.Organizations.Organizations {
		m.Organizations = append(m.Organizations, Organization{
			Identifier: strings.TrimSpace(o.Identifier),
			Title:      strings.TrimSpace(o.Title),
			Items:      convertItems(o.Items),
		})
	}
	for _, r := range doc.Resources.Resources {
		m.Resources = append(m.Resources, convertResource(r))
	}

	m.Title = doc.Metadata.LOM.General.Title.first()
	if m.Title == "" && len(m.Organizations) > 0 {
		m.Title = m.Organizations[0].Title
	}
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	return m
}

func convertItems(in []xmlItem) []Item {
	if len(in) == 0 {
		return nil
	}
	out := make([]Item, 0, len(in))
	for _, it := range in {
		out = append(out, Item{
			Identifier:    strings.TrimSpace(it.Identifier),
			Title:         strings.TrimSpace(it.Title),
			IdentifierRef: strings.TrimSpace(it.IdentifierRef),
			Items:         convertItems(it.Items),
		})
	}
	return out
}

func convertResource(r xmlResource) Resource {
	scormType := strings.TrimSpace(r.ScormType)
	if scormType == "" {
		scormType = strings.TrimSpace(r.ScormTypeLegacy)
	}
	res := Resource{
		Identifier: strings.TrimSpace(r.Identifier),
		Type:       strings.TrimSpace(r.Type),
		ScormType:  strings.ToLower(scormType),
		Href:       withBase(r.Base, r.Href),
	}
	for _, f := range r.Files {
		if href := strings.TrimSpace(f.Href); href != "" {
			res.Files = append(res.Files, withBase(r.Base, href))
		}
	}
	return res
}

func withBase(base, href string) string {
	href = strings.TrimSpace(href)
	base = strings.TrimSpace(base)
	if href == "" || base == "" || strings.Contains(href, "://") {
		return href
	}
	return path.Join(base, href)
}
