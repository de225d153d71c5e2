package domain

// Category is a node in the category forest. ParentID refers to another
// node of the same forest by ID.
type Category struct {
	ID           int64        `json:"id"`
	Tag          *string      `json:"tag,omitempty"`
	Name         string       `json:"name"`
	Translations Translations `json:"translations,omitempty"`
	ParentID     *int64       `json:"parent_id,omitempty"`
	IsApproved   bool         `json:"is_approved"`
}

// TagValue returns the tag or "" for legacy untagged nodes
func (c *Category) TagValue() string {
	if c == nil || c.Tag == nil {
		return ""
	}
	return *c.Tag
}

// CuratedCategory is one entry of a curated taxonomy file
type CuratedCategory struct {
	Tag          string       `json:"tag"`
	Name         string       `json:"name"`
	ParentTag    string       `json:"parent_tag,omitempty"`
	Translations Translations `json:"translations,omitempty"`
}
