package layout

import (
	"math"
	"sort"

	"civscope.ai/internal/explorer/model"
)

const (
	MaxKnowledgeLinks  = 18
	MinKnowledgeScore  = 0.035
	knowledgeGapWeight = 0.7
	innovationWeight   = 0.3
)

// DeriveKnowledge ranks trade routes by knowledge-diffusion pressure. Routes
// with a missing or inactive endpoint are ignored. The result holds at most
// MaxKnowledgeLinks links, highest score first, none below MinKnowledgeScore.
func DeriveKnowledge(routes []model.TradeRoute, byID map[model.SettlementID]*model.Settlement) []model.KnowledgeLink {
	ranked := make([]model.KnowledgeLink, 0, len(routes))
	for _, r := range routes {
		from, okA := byID[r.From]
		to, okB := byID[r.To]
		if !okA || !okB || !from.Active() || !to.Active() {
			continue
		}
		gap := math.Abs(from.KnowledgeLevel - to.KnowledgeLevel)
		innov := r.InnovationReliability
		if innov == 0 {
			innov = 1
		}
		score := gap*knowledgeGapWeight + math.Max(0, innov-1)*innovationWeight
		ranked = append(ranked, model.KnowledgeLink{
			From:    r.From,
			To:      r.To,
			FromPos: r.FromPos,
			ToPos:   r.ToPos,
			Gap:     gap,
			Score:   score,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > MaxKnowledgeLinks {
		ranked = ranked[:MaxKnowledgeLinks]
	}
	out := ranked[:0]
	for _, k := range ranked {
		if k.Score >= MinKnowledgeScore {
			out = append(out, k)
		}
	}
	return out
}
