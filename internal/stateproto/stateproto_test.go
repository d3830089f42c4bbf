package stateproto

import (
	"encoding/json"
	"testing"
)

const sampleBatch = `{
  "currentTick": 42,
  "latestTick": 41,
  "snapshots": [{
    "tick": 41,
    "world": {"width": 96, "height": 64},
    "settlements": [
      {"id": 7, "center": {"x": 3, "y": 4}, "population": 12, "civId": "c1", "members": [1, 2]},
      {"id": "8", "centerPosition": {"x": 9, "y": 1}, "population": 0, "civId": null, "stabilityScore": 0.4}
    ],
    "tradeRoutes": [{"from": 7, "to": "8", "tradeVolume": 31.5, "routeReliability": 0.5}],
    "diplomacyLines": [{"civA": "c1", "civB": "c2", "relation": -0.3}],
    "migrationStreams": [{"fromSettlementId": 7, "toSettlementId": 8, "intensity": 0.2}]
  }],
  "eraHistory": {
    "currentEraId": null,
    "eras": [{"id": "era-1", "startTick": 10, "endTick": null,
      "globalStateSnapshot": {"affectedSettlementIds": [7]}}]
  }
}`

func TestValidate_Sample(t *testing.T) {
	if err := Validate([]byte(sampleBatch)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	b, err := DecodeBatch([]byte(sampleBatch))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.LatestTick != 41 || len(b.Snapshots) != 1 {
		t.Fatalf("batch=%+v", b)
	}
	s := b.Snapshots[0]
	if s.Settlements[0].ID != "7" || s.Settlements[1].ID != "8" {
		t.Fatalf("ids=%q,%q", s.Settlements[0].ID, s.Settlements[1].ID)
	}
	if s.Settlements[1].CivID != "" || s.Settlements[1].Center != nil || s.Settlements[1].CenterPosition == nil {
		t.Fatalf("settlement 8=%+v", s.Settlements[1])
	}
	if s.Settlements[1].Members != nil || len(s.Settlements[0].Members) != 2 {
		t.Fatalf("members not decoded")
	}
	if b.EraHistory == nil || b.EraHistory.Eras[0].EndTick != nil {
		t.Fatalf("era end should stay unset")
	}
}

func TestValidate_Rejects(t *testing.T) {
	bad := []string{
		`{"latestTick": 1, "snapshots": []}`,
		`{"currentTick": 1, "latestTick": -1, "snapshots": []}`,
		`{"currentTick": 1, "latestTick": 1, "snapshots": [{"tick": 1}]}`,
		`{"currentTick": 1, "latestTick": 1, "snapshots": [{"tick": 1, "settlements": [{"id": true}]}]}`,
		`{"currentTick": 1, "latestTick": 1, "snapshots": [{"tick": 1, "settlements": [], "tradeRoutes": [{"from": 1}]}]}`,
		`not json`,
	}
	for _, doc := range bad {
		if err := Validate([]byte(doc)); err == nil {
			t.Fatalf("expected rejection: %s", doc)
		}
	}
}

func TestID_Unmarshal(t *testing.T) {
	var ids []ID
	if err := json.Unmarshal([]byte(`[1, "2", null, 30.5, "x y"]`), &ids); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []ID{"1", "2", "", "30.5", "x y"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids[%d]=%q want=%q", i, ids[i], want[i])
		}
	}
	var id ID
	if err := json.Unmarshal([]byte(`{}`), &id); err == nil {
		t.Fatalf("object id should fail")
	}
}
