package routing

import "github.com/dotsetgreg/dotpersona/pkg/energy"

func alignmentKey(level energy.Level, typ energy.Type) string {
	return level.String() + "/" + string(typ)
}

// EnergyAlignment looks up per-path alignment for the exact (level, type)
// pair. The table is intentionally sparse.
type EnergyAlignment struct {
	table PreferenceTable
}

func NewEnergyAlignment() *EnergyAlignment {
	return &EnergyAlignment{table: PreferenceTable{
		alignmentKey(energy.LevelHigh, energy.TypePlayful): {
			PlayfulTease: 90, RespondNormally: 70, MinimalResponse: 50, IgnoreSelfFocus: 60,
			EmotionalReaction: 75, RespondWithConfusion: 40, DeflectRedirect: 40, JealousPossessive: 70,
			VulnerableReassurance: 40, BoundaryFirm: 50,
		},
		alignmentKey(energy.LevelMedium, energy.TypeNeutral): {
			RespondNormally: 80, MinimalResponse: 70, IgnoreSelfFocus: 60, PlayfulTease: 70,
			EmotionalReaction: 50, RespondWithConfusion: 55, DeflectRedirect: 55, JealousPossessive: 50,
			VulnerableReassurance: 50, BoundaryFirm: 60,
		},
		alignmentKey(energy.LevelLow, energy.TypeCooperative): {
			RespondNormally: 85, EmotionalReaction: 70, VulnerableReassurance: 75, IgnoreSelfFocus: 55,
			PlayfulTease: 45, MinimalResponse: 40, RespondWithConfusion: 50, DeflectRedirect: 50,
			JealousPossessive: 45, BoundaryFirm: 60,
		},
		alignmentKey(energy.LevelHigh, energy.TypeIntimate): {
			RespondNormally: 80, EmotionalReaction: 85, VulnerableReassurance: 70, PlayfulTease: 75,
			IgnoreSelfFocus: 60, MinimalResponse: 50, RespondWithConfusion: 30, DeflectRedirect: 35,
			JealousPossessive: 80, BoundaryFirm: 50,
		},
		alignmentKey(energy.LevelHigh, energy.TypeCombative): {
			BoundaryFirm: 85, JealousPossessive: 80, PlayfulTease: 70, RespondNormally: 60,
			EmotionalReaction: 75, MinimalResponse: 65, RespondWithConfusion: 45, DeflectRedirect: 70,
			VulnerableReassurance: 40, IgnoreSelfFocus: 45,
		},
	}}
}

// Score returns NeutralScore when sig is nil or the pair is absent.
func (a *EnergyAlignment) Score(p Path, sig *energy.Signature) float64 {
	if sig == nil {
		return NeutralScore
	}
	return a.table.Lookup(alignmentKey(sig.Level, sig.Type), p)
}
