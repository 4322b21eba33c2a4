package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const sampleManifest = `<?xml version="1.0"?>
<manifest identifier="CTL-1" version="1.3">
  <metadata><schemaversion>2004 3rd Edition</schemaversion></metadata>
  <organizations default="O1">
    <organization identifier="O1"><title>Fire Safety</title>
      <item identifier="M1"><title>Module</title>
        <item identifier="I1" identifierref="R1"><title>Start</title></item>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="R1" type="webcontent" adlcp:scormType="sco" href="sco/index.html" xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_v1p3">
      <file href="sco/index.html"/>
      <file href="sco/app.js"/>
    </resource>
  </resources>
</manifest>`

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	path := filepath.Join(t.TempDir(), "course.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cc := newCommandContext()
	defer cc.close()
	cmd := newRootCommand(cc)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if cc.app != nil {
		t.Fatalf("%v: app should not be built", args)
	}
	return out.String(), err
}

func TestInspectZipJSON(t *testing.T) {
	path := writeZip(t, map[string]string{
		"course/imsmanifest.xml": sampleManifest,
		"course/sco/index.html":  "<html></html>",
	})
	out, err := runCLI(t, "inspect", "--zip", path, "-o", "json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var got inspectReport
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.ManifestDir != "course" || got.LaunchHref != "sco/index.html" {
		t.Fatalf("report: dir=%q launch=%q", got.ManifestDir, got.LaunchHref)
	}
	if !got.Is2004 || got.ItemCount != 2 || got.Entries != 2 {
		t.Fatalf("report: is2004=%v items=%d entries=%d", got.Is2004, got.ItemCount, got.Entries)
	}
	if got.Manifest.Title != "Fire Safety" {
		t.Fatalf("title: want=%q got=%q", "Fire Safety", got.Manifest.Title)
	}
}

func TestInspectZipYAMLAndTable(t *testing.T) {
	path := writeZip(t, map[string]string{"imsmanifest.xml": sampleManifest})

	out, err := runCLI(t, "inspect", "--zip", path, "-o", "yaml")
	if err != nil {
		t.Fatalf("inspect yaml: %v", err)
	}
	var got map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if got["launch_href"] != "sco/index.html" {
		t.Fatalf("yaml launch_href: got=%v", got["launch_href"])
	}

	out, err = runCLI(t, "inspect", "--zip", path)
	if err != nil {
		t.Fatalf("inspect table: %v", err)
	}
	for _, want := range []string{"Fire Safety", "CTL-1", "I1", "R1", "2004"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectArgumentErrors(t *testing.T) {
	path := writeZip(t, map[string]string{"imsmanifest.xml": sampleManifest})
	cases := [][]string{
		{"inspect"},
		{"inspect", "--zip", path, "6f1c3a52-2b7e-4a63-9a43-3d35b6cbb0e9"},
		{"inspect", "not-a-uuid"},
		{"inspect", "--zip", path, "-o", "xml"},
	}
	for _, args := range cases {
		if _, err := runCLI(t, args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestInspectZipWithoutManifest(t *testing.T) {
	path := writeZip(t, map[string]string{"a/b/imsmanifest.xml": sampleManifest})
	_, err := runCLI(t, "inspect", "--zip", path)
	if err == nil || !strings.Contains(err.Error(), "imsmanifest.xml not found") {
		t.Fatalf("want manifest not found, got %v", err)
	}
}
