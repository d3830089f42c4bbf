package focus

import (
	"testing"

	"civscope.ai/internal/explorer/model"
)

func fixture() ([]model.Settlement, []model.TradeRoute, []model.DiplomacyLine) {
	settlements := []model.Settlement{
		{ID: "1", CivID: "A"},
		{ID: "2", CivID: "A"},
		{ID: "3", CivID: "B"},
		{ID: "4", CivID: "C"},
		{ID: "5"},
	}
	trade := []model.TradeRoute{
		{From: "1", To: "3"},
		{From: "5", To: "1"},
		{From: "3", To: "4"},
		{From: "1", To: "99"},
	}
	diplomacy := []model.DiplomacyLine{
		{CivA: "A", CivB: "B", Relation: 0.4},
		{CivA: "C", CivB: "A", Relation: -0.5},
		{CivA: "B", CivB: "C", Relation: 0.1},
	}
	return settlements, trade, diplomacy
}

func TestBuild_NoSelection(t *testing.T) {
	s, tr, d := fixture()
	if Build("", s, tr, d) != nil {
		t.Fatalf("expected nil without selection")
	}
	if Build("42", s, tr, d) != nil {
		t.Fatalf("expected nil when selection is absent")
	}
}

func TestBuild_Relatedness(t *testing.T) {
	s, tr, d := fixture()
	c := Build("1", s, tr, d)
	if c == nil {
		t.Fatalf("expected context")
	}
	if c.SelectedCiv != "A" {
		t.Fatalf("selected civ=%q", c.SelectedCiv)
	}
	for _, id := range []string{"1", "2"} {
		if !c.SameGroup.has(id) {
			t.Fatalf("same group missing %s", id)
		}
	}
	for _, id := range []string{"1", "3", "5", "99"} {
		if !c.DirectNeighbors.has(id) {
			t.Fatalf("direct neighbors missing %s: %v", id, c.DirectNeighbors.sorted())
		}
	}
	if !c.IsDirectRoute("3", "1") || !c.IsDirectRoute("1", "5") {
		t.Fatalf("reciprocal direct keys missing")
	}
	if c.IsDirectRoute("3", "4") {
		t.Fatalf("3->4 does not touch the selection")
	}
	if !c.IsRelatedSettlement("1") {
		t.Fatalf("selection must be related to itself")
	}
	if c.IsRelatedSettlement("4") {
		t.Fatalf("4 is not related")
	}
	// 99 is a dangling endpoint: related, but contributes no civ.
	want := []string{"A", "B"}
	got := c.RelatedGroups.sorted()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("related groups=%v want=%v", got, want)
	}
}

func TestBuild_DiplomacySymmetry(t *testing.T) {
	s, tr, d := fixture()
	c := Build("2", s, tr, d)
	for _, l := range d {
		if !c.IncludesSelectedCiv(l.CivA, l.CivB) {
			if c.HasDiplomacyPair(l.CivA, l.CivB) {
				t.Fatalf("unexpected pair %s|%s", l.CivA, l.CivB)
			}
			continue
		}
		if !c.HasDiplomacyPair(l.CivA, l.CivB) || !c.HasDiplomacyPair(l.CivB, l.CivA) {
			t.Fatalf("pair %s|%s not symmetric", l.CivA, l.CivB)
		}
	}
	if len(c.DiplomacyPairKeys) != 4 {
		t.Fatalf("pair keys=%v", c.DiplomacyPairKeys.sorted())
	}
}

func TestBuild_WildSelection(t *testing.T) {
	s, tr, d := fixture()
	c := Build("5", s, tr, d)
	if len(c.SameGroup) != 0 || len(c.DiplomacyPairKeys) != 0 {
		t.Fatalf("wild settlement has no group: %+v", c.Lists())
	}
	if !c.RelatedGroups.has("A") || c.RelatedGroups.has("") {
		t.Fatalf("related groups=%v", c.RelatedGroups.sorted())
	}
	if c.IncludesSelectedCiv("A", "B") {
		t.Fatalf("wild selection includes no civ")
	}
}

func TestNilContextIsUnfocused(t *testing.T) {
	var c *Context
	if !c.IsRelatedSettlement("x") || !c.IsRelatedCiv("y") {
		t.Fatalf("nil context treats everything as related")
	}
	if c.IsDirectRoute("a", "b") || c.Lists() != nil {
		t.Fatalf("nil context has no direct routes")
	}
}
