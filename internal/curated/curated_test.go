package curated

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/pubenrich/pkg/types"
)

func TestNormalizeSource(t *testing.T) {
	tests := map[string]string{
		"TRRUST v2":   "TRRUST",
		"SIGNOR 3.0":  "SIGNOR",
		" OmniPath ":  "OmniPath",
		"Non-UniProt": "Predicted",
		"UniProt":     "UniProt",
		"HTRIdb":      "HTRIdb",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSource(in), "input %q", in)
	}
}

func TestMapMechanism(t *testing.T) {
	tests := []struct {
		mechanism, effect, interaction string
		want                           string
	}{
		{"phosphorylation", "", "", "Autophosphorylation"},
		{"dephosphorylation", "", "", "Autodephosphorylation"},
		{"polyubiquitination", "", "", "Autoubiquitination"},
		{"acetylation", "", "", "Autoacetylation"},
		{"deacetylation", "", "", "Autoregulation"},
		{"demethylation", "", "", "Autodemethylation"},
		{"cleavage", "", "", "Autolysis"},
		{"catalytic activity", "", "", "Autocatalytic"},
		{"", "", "transcriptional", "Autoregulation"},
		{"binding", "", "", "Autoregulation"},
		{"post translational modification", "", "", "Autoregulation"},
		{"", "Repression", "", "Autoregulation"},
		{"", "inhibits", "", "Autoinhibition"},
		{"transcriptional inhibition", "", "", "Autoregulation"},
		{"", "", "", "Autoregulation"},
	}
	for _, tt := range tests {
		got := MapMechanism(tt.mechanism, tt.effect, tt.interaction)
		assert.Equal(t, tt.want, got, "mechanism=%q effect=%q type=%q", tt.mechanism, tt.effect, tt.interaction)
	}
}

func TestMapPolarity(t *testing.T) {
	assert.Equal(t, Positive, MapPolarity("", true, false))
	assert.Equal(t, Negative, MapPolarity("up-regulates", false, true))
	assert.Equal(t, Positive, MapPolarity("up-regulates activity", false, false))
	assert.Equal(t, Positive, MapPolarity("Activation", false, false))
	assert.Equal(t, Negative, MapPolarity("down-regulates", false, false))
	assert.Equal(t, Negative, MapPolarity("Repression", false, false))
	assert.Equal(t, Mixed, MapPolarity("unknown", false, false))
}

func TestPolarityForType(t *testing.T) {
	assert.Equal(t, Positive, PolarityForType("Autophosphorylation"))
	assert.Equal(t, Negative, PolarityForType("autolysis"))
	assert.Equal(t, Mixed, PolarityForType("Autoregulation"))
	assert.Equal(t, "", PolarityForType("Something else"))
}

func TestExtractPMIDs(t *testing.T) {
	assert.Equal(t, []string{"15964845", "18691976"}, ExtractPMIDs("KEA:15964845;KEA:18691976;SIGNOR:15964845"))
	assert.Equal(t, []string{}, ExtractPMIDs("KEA:123;nothing"))
	assert.Equal(t, []string{}, ExtractPMIDs(""))
}

func TestExpand(t *testing.T) {
	t.Run("reference row expands per PMID", func(t *testing.T) {
		rows := Expand(types.Prediction{
			Source:     "SIGNOR 3.0",
			Mechanism:  "phosphorylation",
			References: "SIGNOR:12345678;SIGNOR:87654321",
			GeneName:   "AKT1",
		})
		if assert.Len(t, rows, 2) {
			assert.Equal(t, "12345678", rows[0].PMID)
			assert.Equal(t, "87654321", rows[1].PMID)
			for _, r := range rows {
				assert.Equal(t, "SIGNOR", r.Source)
				assert.Equal(t, "Autophosphorylation", r.MechanismType)
				assert.Equal(t, Positive, r.Polarity)
				assert.Equal(t, "Yes", r.HasMechanism)
				assert.Equal(t, "AKT1", r.GeneName)
			}
		}
	})

	t.Run("reference row without PMIDs is dropped", func(t *testing.T) {
		assert.Empty(t, Expand(types.Prediction{Source: "OmniPath", References: "KEA:1"}))
	})

	t.Run("prediction keeps its values", func(t *testing.T) {
		rows := Expand(types.Prediction{PMID: " 111 ", Source: "Non-UniProt", MechanismType: "Autolysis", Polarity: "+"})
		assert.Equal(t, []types.Prediction{{PMID: "111", Source: "Predicted", MechanismType: "Autolysis", Polarity: "+"}}, rows)
	})

	t.Run("prediction polarity from type", func(t *testing.T) {
		rows := Expand(types.Prediction{PMID: "1", Source: "UniProt", MechanismType: "Autoinhibition"})
		assert.Equal(t, Negative, rows[0].Polarity)
	})
}
