package manifest

import (
	"errors"
	"reflect"
	"testing"
)

const scorm2004Manifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest identifier="com.example.safety" version="1.3"
  xmlns="http://www.imsglobal.org/xsd/imscp_v1p1"
  xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_v1p3"
  xmlns:imsmd="http://ltsc.ieee.org/xsd/LOM">
  <metadata>
    <schema>ADL SCORM</schema>
    <schemaversion>2004 4th Edition</schemaversion>
    <imsmd:lom><imsmd:general><imsmd:title><imsmd:string language="en">Workplace Safety</imsmd:string></imsmd:title></imsmd:general></imsmd:lom>
  </metadata>
  <organizations default="ORG-1">
    <organization identifier="ORG-1">
      <title>Safety Course</title>
      <item identifier="MOD-1">
        <title>Module 1</title>
        <item identifier="ITEM-1" identifierref="RES-1"><title>Intro</title></item>
        <item identifier="ITEM-2" identifierref="RES-2"><title>Quiz</title></item>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES-1" type="webcontent" adlcp:scormType="sco" href="intro/index.html">
      <file href="intro/index.html"/>
      <file href="intro/app.js"/>
    </resource>
    <resource identifier="RES-2" type="webcontent" adlcp:scormType="sco" href="quiz/index.html">
      <file href="quiz/index.html"/>
    </resource>
    <resource identifier="SHARED" type="webcontent" adlcp:scormType="asset">
      <file href="shared/logo.png"/>
    </resource>
  </resources>
</manifest>`

const scorm12Manifest = `<?xml version="1.0"?>
<manifest identifier="MANIFEST-12" xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_rootv1p2">
  <organizations default="TOC1">
    <organization identifier="TOC1">
      <title>Legacy Course</title>
      <item identifier="I1" identifierref="R1"><title>Lesson</title></item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="R1" type="webcontent" adlcp:scormtype="sco" href="index_lms.html"/>
  </resources>
</manifest>`

func TestParseScorm2004(t *testing.T) {
	m, err := Parse([]byte(scorm2004Manifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Identifier != "com.example.safety" {
		t.Fatalf("identifier: got=%q", m.Identifier)
	}
	if m.Title != "Workplace Safety" {
		t.Fatalf("title should come from lom: got=%q", m.Title)
	}
	if m.Version != "1.3" || m.SchemaVersion != "2004 4th Edition" {
		t.Fatalf("version: got=%q schema=%q", m.Version, m.SchemaVersion)
	}
	if !m.Is2004() {
		t.Fatalf("expected 2004 package")
	}
	if len(m.Organizations) != 1 || len(m.Organizations[0].Items) != 1 {
		t.Fatalf("organizations: %+v", m.Organizations)
	}
	mod := m.Organizations[0].Items[0]
	if mod.IdentifierRef != "" || len(mod.Items) != 2 {
		t.Fatalf("module item: %+v", mod)
	}
	if mod.Items[0].Identifier != "ITEM-1" || mod.Items[0].IdentifierRef != "RES-1" || mod.Items[1].IdentifierRef != "RES-2" {
		t.Fatalf("nested items out of order: %+v", mod.Items)
	}
	if len(m.Resources) != 3 {
		t.Fatalf("resources: want=3 got=%d", len(m.Resources))
	}
	if r := m.Resources[0]; r.ScormType != "sco" || r.Href != "intro/index.html" || !reflect.DeepEqual(r.Files, []string{"intro/index.html", "intro/app.js"}) {
		t.Fatalf("resource 0: %+v", r)
	}
	if r := m.Resources[2]; r.ScormType != "asset" || r.Href != "" {
		t.Fatalf("asset resource: %+v", r)
	}
	if got := m.LaunchHref(); got != "intro/index.html" {
		t.Fatalf("launch href: got=%q", got)
	}
	if got := m.ItemCount(); got != 3 {
		t.Fatalf("item count: want=3 got=%d", got)
	}
}

func TestParseScorm12Defaults(t *testing.T) {
	m, err := Parse([]byte(scorm12Manifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Version != DefaultVersion {
		t.Fatalf("version default: got=%q", m.Version)
	}
	if m.Title != "Legacy Course" {
		t.Fatalf("title should fall back to organization: got=%q", m.Title)
	}
	if m.Resources[0].ScormType != "sco" {
		t.Fatalf("lowercase scormtype not read: %+v", m.Resources[0])
	}
	if m.Is2004() {
		t.Fatalf("1.2 package reported as 2004")
	}
}

func TestParseTitleDefault(t *testing.T) {
	m, err := Parse([]byte(`<manifest identifier="X"><organizations/><resources/></manifest>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Title != DefaultTitle {
		t.Fatalf("title: want=%q got=%q", DefaultTitle, m.Title)
	}
	if len(m.Organizations) != 0 || len(m.Resources) != 0 {
		t.Fatalf("expected empty structure: %+v", m)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrInvalidXML},
		{"malformed", `<manifest identifier="x"><organizations></manifest>`, ErrInvalidXML},
		{"wrong root", `<package identifier="x"/>`, ErrMissingManifestElement},
		{"no identifier", `<manifest version="1.2"/>`, ErrMissingAttributes},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.in))
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v got %v", tc.want, err)
			}
		})
	}
}

func TestParseDoesNotMutateInput(t *testing.T) {
	in := []byte(scorm12Manifest)
	cp := append([]byte(nil), in...)
	if _, err := Parse(in); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(in) != string(cp) {
		t.Fatalf("input mutated")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	for name, src := range map[string]string{"2004": scorm2004Manifest, "1.2": scorm12Manifest} {
		first, err := Parse([]byte(src))
		if err != nil {
			t.Fatalf("%s Parse: %v", name, err)
		}
		out, err := Marshal(first)
		if err != nil {
			t.Fatalf("%s Marshal: %v", name, err)
		}
		second, err := Parse(out)
		if err != nil {
			t.Fatalf("%s re-Parse: %v\n%s", name, err, out)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s round trip mismatch:\nfirst=%+v\nsecond=%+v", name, first, second)
		}
	}
}

func TestResourceXMLBase(t *testing.T) {
	m, err := Parse([]byte(`<manifest identifier="B"><resources>
		<resource identifier="R" type="webcontent" xml:base="content/" href="start.html"><file href="start.html"/></resource>
	</resources></manifest>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Resources[0].Href != "content/start.html" || m.Resources[0].Files[0] != "content/start.html" {
		t.Fatalf("xml:base not applied: %+v", m.Resources[0])
	}
}
