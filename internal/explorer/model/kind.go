package model

type LinkKind string

const (
	LinkTrade     LinkKind = "trade"
	LinkDiplomacy LinkKind = "diplomacy"
	LinkMigration LinkKind = "migration"
	LinkKnowledge LinkKind = "knowledge"
)

// LinkModeAll shows every kind.
const LinkModeAll = "all"

// Kinds lists relational kinds in paint order; hover ties resolve in this order.
var Kinds = []LinkKind{LinkKnowledge, LinkMigration, LinkDiplomacy, LinkTrade}

func (k LinkKind) Valid() bool {
	switch k {
	case LinkTrade, LinkDiplomacy, LinkMigration, LinkKnowledge:
		return true
	}
	return false
}

// NormalizeLinkMode maps unknown modes to "all".
func NormalizeLinkMode(mode string) string {
	if mode == LinkModeAll || LinkKind(mode).Valid() {
		return mode
	}
	return LinkModeAll
}

// LinkModeShows reports whether kind k is visible under mode.
func LinkModeShows(mode string, k LinkKind) bool {
	return mode == LinkModeAll || mode == string(k)
}

// PairKey is the symmetric key for an unordered endpoint pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// DirectedKey keeps endpoint order.
func DirectedKey(from, to string) string { return from + "|" + to }
