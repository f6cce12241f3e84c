package carriers

// Ref identifies a carrier on a raw quote.
type Ref struct {
	Name string
	NAIC string
}

// FilteredCarrier is one carrier removed by the whitelist.
type FilteredCarrier struct {
	Name  string `json:"name"`
	NAIC  string `json:"naic,omitempty"`
	Count int    `json:"count"`
}

// FilterStats summarises a whitelist pass for logging.
type FilterStats struct {
	Total            int               `json:"total"`
	Allowed          int               `json:"allowed"`
	Filtered         int               `json:"filtered"`
	FilteredCarriers []FilteredCarrier `json:"filteredCarriers"`
}

// FilterStats counts allowed and filtered quotes, grouping filtered ones by
// carrier name and NAIC in first-seen order.
func (c *Catalog) FilterStats(refs []Ref) FilterStats {
	stats := FilterStats{Total: len(refs), FilteredCarriers: []FilteredCarrier{}}
	index := make(map[Ref]int)

	for _, ref := range refs {
		if c.IsAllowed(ref.Name) {
			stats.Allowed++
			continue
		}

		key := ref
		if key.Name == "" {
			key.Name = "Unknown"
		}
		if i, ok := index[key]; ok {
			stats.FilteredCarriers[i].Count++
			continue
		}
		index[key] = len(stats.FilteredCarriers)
		stats.FilteredCarriers = append(stats.FilteredCarriers, FilteredCarrier{Name: key.Name, NAIC: key.NAIC, Count: 1})
	}

	stats.Filtered = stats.Total - stats.Allowed
	return stats
}
