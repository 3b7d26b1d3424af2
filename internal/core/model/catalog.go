package model

// ResourceGroup is a top-level catalog entry (room type) with its resources
type ResourceGroup struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Resources []Ref  `json:"resources"`
}

// Catalog is the ordered list of resource groups that drives row order
type Catalog []ResourceGroup

// Lookup finds the group owning a resource
func (c Catalog) Lookup(resourceID int64) (ResourceGroup, Ref, bool) {
	for _, g := range c {
		for _, r := range g.Resources {
			if r.ID == resourceID {
				return g, r, true
			}
		}
	}
	return ResourceGroup{}, Ref{}, false
}

// ResourceCount returns the number of resources across all groups
func (c Catalog) ResourceCount() int {
	n := 0
	for _, g := range c {
		n += len(g.Resources)
	}
	return n
}

// Group is one output row of the timeline
type Group struct {
	CategoryID    int64   `json:"category_id"`
	CategoryLabel string  `json:"category_label"`
	ResourceID    int64   `json:"resource_id,omitempty"`
	ResourceLabel string  `json:"resource_label,omitempty"`
	Unassigned    bool    `json:"unassigned"`
	RecordIDs     []int64 `json:"record_ids"`
}

// Label is the row caption shown by renderers
func (g Group) Label() string {
	if g.Unassigned {
		return g.CategoryLabel + " / unassigned"
	}
	return g.CategoryLabel + " / " + g.ResourceLabel
}
