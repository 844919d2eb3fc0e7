package models

import (
	"strings"
	"time"
)

// StorageTier names the backend that holds a photo's bytes.
type StorageTier string

const (
	TierRemote StorageTier = "remote"
	TierLocal  StorageTier = "local"
)

const (
	remoteRefPrefix = "gcs:"
	localRefPrefix  = "local:"
	sectionPathSep  = "|"

	// DefaultSection is applied to photos uploaded without a section.
	DefaultSection = "general"
)

// RemoteRef builds the storage reference of a remote object.
func RemoteRef(object string) string { return remoteRefPrefix + object }

// LocalRef builds the storage reference of a locally stored file.
func LocalRef(name string) string { return localRefPrefix + name }

// ParseStorageRef splits a reference into its tier and key. ok is false for unknown formats.
func ParseStorageRef(ref string) (tier StorageTier, key string, ok bool) {
	switch {
	case strings.HasPrefix(ref, remoteRefPrefix):
		key = strings.TrimPrefix(ref, remoteRefPrefix)
		return TierRemote, key, key != ""
	case strings.HasPrefix(ref, localRefPrefix):
		key = strings.TrimPrefix(ref, localRefPrefix)
		return TierLocal, key, key != ""
	default:
		return "", "", false
	}
}

// SectionPath is the structured grouping of a photo: a section and an optional checklist item.
type SectionPath struct {
	Section string
	Item    string
}

// ParseSectionPath decodes the flat "section|item" wire form.
func ParseSectionPath(raw string) SectionPath {
	raw = strings.TrimSpace(raw)
	section, item, _ := strings.Cut(raw, sectionPathSep)
	section = strings.TrimSpace(section)
	if section == "" {
		section = DefaultSection
	}
	return SectionPath{Section: section, Item: strings.TrimSpace(item)}
}

// String encodes the path in its flat wire form.
func (p SectionPath) String() string {
	if p.Item == "" {
		return p.Section
	}
	return p.Section + sectionPathSep + p.Item
}

// Photo is an image attached to a report.
type Photo struct {
	ID         int64     `db:"id" json:"id"`
	ReportID   int64     `db:"report_id" json:"report_id"`
	SectionKey string    `db:"section_key" json:"-"`
	ItemKey    string    `db:"item_key" json:"-"`
	StorageRef string    `db:"storage_ref" json:"-"`
	Filename   string    `db:"filename" json:"filename"`
	Caption    string    `db:"caption" json:"caption"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Path returns the structured section path.
func (p *Photo) Path() SectionPath {
	return SectionPath{Section: p.SectionKey, Item: p.ItemKey}
}

// Tier reports where the bytes live.
func (p *Photo) Tier() StorageTier {
	tier, _, _ := ParseStorageRef(p.StorageRef)
	return tier
}
