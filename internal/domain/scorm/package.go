package scorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Package is an ingested SCORM archive owned by exactly one lesson.
type Package struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_scorm_package_lesson" json:"lesson_id"`

	// PackagePath is the directory holding imsmanifest.xml; resource hrefs resolve against it.
	PackagePath string `gorm:"column:package_path;type:text;not null" json:"package_path"`
	// ExtractRoot is the {timestamp}_{random} directory the archive was unpacked into.
	ExtractRoot string `gorm:"column:extract_root;type:text;not null;index" json:"-"`

	Manifest   datatypes.JSON `gorm:"column:manifest;type:jsonb" json:"manifest"`
	Version    string         `gorm:"column:version;type:text;not null;default:'1.2'" json:"version"`
	Title      string         `gorm:"column:title;type:text" json:"title"`
	Identifier string         `gorm:"column:identifier;type:text" json:"identifier"`
	LaunchHref string         `gorm:"column:launch_href;type:text" json:"launch_href"`
	SizeBytes  int64          `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Package) TableName() string { return "scorm_package" }
