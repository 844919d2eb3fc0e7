package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// ChecklistResponse is one answered checklist item.
type ChecklistResponse struct {
	ID         int64     `db:"id" json:"-"`
	ReportID   int64     `db:"report_id" json:"report_id"`
	SectionKey string    `db:"section_key" json:"section_key"`
	ItemKey    string    `db:"item_key" json:"item_key"`
	Value      string    `db:"value" json:"value"`
	Notes      string    `db:"notes" json:"notes"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ChecklistItem is the grouped representation of a response.
type ChecklistItem struct {
	Item  string `json:"item"`
	Value string `json:"value"`
	Notes string `json:"notes,omitempty"`
}

// ChecklistSection holds the items of one section.
type ChecklistSection struct {
	Key   string
	Items []ChecklistItem
}

// GroupedChecklist is a section-keyed checklist that marshals as an object in first-seen order.
type GroupedChecklist struct {
	Sections []ChecklistSection
}

// GroupChecklist buckets responses by section, keeping the order sections first appear in.
func GroupChecklist(rows []ChecklistResponse) *GroupedChecklist {
	grouped := &GroupedChecklist{Sections: make([]ChecklistSection, 0)}
	index := make(map[string]int)
	for _, row := range rows {
		pos, ok := index[row.SectionKey]
		if !ok {
			pos = len(grouped.Sections)
			index[row.SectionKey] = pos
			grouped.Sections = append(grouped.Sections, ChecklistSection{Key: row.SectionKey})
		}
		grouped.Sections[pos].Items = append(grouped.Sections[pos].Items, ChecklistItem{
			Item:  row.ItemKey,
			Value: row.Value,
			Notes: row.Notes,
		})
	}
	return grouped
}

// Section returns the items for a key.
func (g *GroupedChecklist) Section(key string) []ChecklistItem {
	if g == nil {
		return nil
	}
	for _, s := range g.Sections {
		if s.Key == key {
			return s.Items
		}
	}
	return nil
}

// Len is the number of answered items.
func (g *GroupedChecklist) Len() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, s := range g.Sections {
		n += len(s.Items)
	}
	return n
}

// MarshalJSON renders {"section": [items...]} preserving section order.
func (g *GroupedChecklist) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if g != nil {
		for i, section := range g.Sections {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(section.Key)
			if err != nil {
				return nil, err
			}
			items, err := json.Marshal(section.Items)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(items)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
