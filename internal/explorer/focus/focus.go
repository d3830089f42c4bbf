// Package focus derives the relatedness of a selected settlement to the rest
// of the frame.
package focus

import (
	"sort"

	"civscope.ai/internal/explorer/model"
)

type set map[string]struct{}

func (s set) add(id string) { s[id] = struct{}{} }

func (s set) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type Context struct {
	SelectedID  model.SettlementID
	SelectedCiv model.CivID

	SameGroup         set
	DirectNeighbors   set
	DirectPairKeys    set
	RelatedEntities   set
	RelatedGroups     set
	DiplomacyPairKeys set
}

// Build returns nil when nothing is selected or the selection is absent.
// Each input is scanned once.
func Build(selected model.SettlementID, settlements []model.Settlement, trade []model.TradeRoute, diplomacy []model.DiplomacyLine) *Context {
	if selected == "" {
		return nil
	}
	civOf := make(map[model.SettlementID]model.CivID, len(settlements))
	found := false
	for _, s := range settlements {
		civOf[s.ID] = s.CivID
		if s.ID == selected {
			found = true
		}
	}
	if !found {
		return nil
	}
	c := &Context{
		SelectedID:        selected,
		SelectedCiv:       civOf[selected],
		SameGroup:         set{},
		DirectNeighbors:   set{selected: {}},
		DirectPairKeys:    set{},
		RelatedEntities:   set{selected: {}},
		RelatedGroups:     set{},
		DiplomacyPairKeys: set{},
	}

	if c.SelectedCiv != "" {
		for _, s := range settlements {
			if s.CivID == c.SelectedCiv {
				c.SameGroup.add(s.ID)
			}
		}
	}

	for _, r := range trade {
		if r.From != selected && r.To != selected {
			continue
		}
		other := r.To
		if r.To == selected {
			other = r.From
		}
		c.DirectNeighbors.add(other)
		c.DirectPairKeys.add(model.DirectedKey(r.From, r.To))
		c.DirectPairKeys.add(model.DirectedKey(r.To, r.From))
	}

	for id := range c.SameGroup {
		c.RelatedEntities.add(id)
	}
	for id := range c.DirectNeighbors {
		c.RelatedEntities.add(id)
	}

	if c.SelectedCiv != "" {
		c.RelatedGroups.add(c.SelectedCiv)
	}
	for id := range c.RelatedEntities {
		if civ := civOf[id]; civ != "" {
			c.RelatedGroups.add(civ)
		}
	}

	if c.SelectedCiv != "" {
		for _, l := range diplomacy {
			if l.CivA != c.SelectedCiv && l.CivB != c.SelectedCiv {
				continue
			}
			c.DiplomacyPairKeys.add(model.DirectedKey(l.CivA, l.CivB))
			c.DiplomacyPairKeys.add(model.DirectedKey(l.CivB, l.CivA))
		}
	}
	return c
}

func (c *Context) IsRelatedSettlement(id model.SettlementID) bool {
	return c == nil || c.RelatedEntities.has(id)
}

func (c *Context) IsRelatedCiv(id model.CivID) bool {
	return c == nil || c.RelatedGroups.has(id)
}

// IsDirectRoute is false outside focus mode.
func (c *Context) IsDirectRoute(from, to model.SettlementID) bool {
	return c != nil && c.DirectPairKeys.has(model.DirectedKey(from, to))
}

func (c *Context) IncludesSelectedCiv(a, b model.CivID) bool {
	if c == nil || c.SelectedCiv == "" {
		return false
	}
	return a == c.SelectedCiv || b == c.SelectedCiv
}

func (c *Context) HasDiplomacyPair(a, b model.CivID) bool {
	return c != nil && c.DiplomacyPairKeys.has(model.DirectedKey(a, b))
}

// Lists is the sorted, serializable view of a Context.
type Lists struct {
	SelectedID        string   `json:"selected_id"`
	SelectedCiv       string   `json:"selected_civ,omitempty"`
	SameGroup         []string `json:"same_group"`
	DirectNeighbors   []string `json:"direct_neighbors"`
	RelatedEntities   []string `json:"related_entities"`
	RelatedGroups     []string `json:"related_groups"`
	DiplomacyPairKeys []string `json:"diplomacy_pair_keys"`
}

func (c *Context) Lists() *Lists {
	if c == nil {
		return nil
	}
	return &Lists{
		SelectedID:        c.SelectedID,
		SelectedCiv:       c.SelectedCiv,
		SameGroup:         c.SameGroup.sorted(),
		DirectNeighbors:   c.DirectNeighbors.sorted(),
		RelatedEntities:   c.RelatedEntities.sorted(),
		RelatedGroups:     c.RelatedGroups.sorted(),
		DiplomacyPairKeys: c.DiplomacyPairKeys.sorted(),
	}
}
