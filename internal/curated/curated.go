// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package curated normalizes rows from curated interaction resources
// (OmniPath, SIGNOR, TRRUST, ...) into the dataset vocabulary: source
// labels, mechanism types, polarity symbols, and document IDs.
package curated

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/pubenrich/pkg/types"
)

// Polarity symbols.
const (
	Positive = "+"
	Negative = "–"
	Mixed    = "±"
)

var versionSuffix = regexp.MustCompile(`(?i)\s+v?\d+(\.\d+)*$`)

// NormalizeSource trims version suffixes ("TRRUST v2" → "TRRUST") and maps
// the legacy "Non-UniProt" label to "Predicted".
func NormalizeSource(s string) string {
	s = strings.TrimSpace(s)
	s = versionSuffix.ReplaceAllString(s, "")
	if strings.EqualFold(s, "Non-UniProt") {
		return "Predicted"
	}
	return s
}

// MapMechanism maps a resource's mechanism, effect, and interaction type to
// an autoregulatory type. Rules are checked in order; the first match wins.
func MapMechanism(mechanism, effect, interactionType string) string {
	m := strings.ToLower(mechanism)
	e := strings.ToLower(effect)
	it := strings.ToLower(interactionType)

	switch {
	case strings.Contains(m, "phosphorylation") && !strings.Contains(m, "dephosphorylation"):
		return "Autophosphorylation"
	case strings.Contains(m, "dephosphorylation"):
		return "Autodephosphorylation"
	case strings.Contains(m, "ubiquitination"):
		return "Autoubiquitination"
	case strings.Contains(m, "acetylation") && !strings.Contains(m, "deacetylation"):
		return "Autoacetylation"
	case strings.Contains(m, "demethylation"):
		return "Autodemethylation"
	case strings.Contains(m, "cleavage"), strings.Contains(m, "proteolysis"):
		return "Autolysis"
	case strings.Contains(m, "catalytic"), strings.Contains(m, "catalysis"):
		return "Autocatalytic"
	case strings.Contains(m, "transcriptional"), strings.Contains(it, "transcriptional"):
		return "Autoregulation"
	case strings.Contains(m, "binding"):
		return "Autoregulation"
	case strings.Contains(m, "post") && strings.Contains(m, "translational"):
		return "Autoregulation"
	case strings.Contains(e, "repression"), strings.Contains(e, "activation"):
		return "Autoregulation"
	case strings.Contains(m, "inhibition"), strings.Contains(e, "inhibit"):
		return "Autoinhibition"
	}
	return "Autoregulation"
}

// MapPolarity derives a polarity symbol from explicit stimulation flags or,
// failing those, the effect text.
func MapPolarity(effect string, stimulation, inhibition bool) string {
	if stimulation {
		return Positive
	}
	if inhibition {
		return Negative
	}
	e := strings.ToLower(effect)
	switch {
	case strings.Contains(e, "up-regulates"), strings.Contains(e, "activation"), strings.Contains(e, "stimulat"):
		return Positive
	case strings.Contains(e, "down-regulates"), strings.Contains(e, "repression"), strings.Contains(e, "inhibit"):
		return Negative
	}
	return Mixed
}

var typePolarity = map[string]string{
	"autocatalytic":         Positive,
	"autophosphorylation":   Positive,
	"autodephosphorylation": Negative,
	"autoacetylation":       Positive,
	"autodemethylation":     Mixed,
	"autoinducer":           Positive,
	"autoregulation":        Mixed,
	"autoinhibition":        Negative,
	"autoubiquitination":    Negative,
	"autolysis":             Negative,
}

// PolarityForType returns the default polarity of a mechanism type, or ""
// when the type is unknown.
func PolarityForType(mechanismType string) string {
	return typePolarity[strings.ToLower(strings.TrimSpace(mechanismType))]
}

var pmidRef = regexp.MustCompile(`:(\d{7,8})`)

// ExtractPMIDs pulls PubMed IDs out of reference strings such as
// "KEA:15964845;SIGNOR:18691976". The result is sorted and deduplicated.
func ExtractPMIDs(refs string) []string {
	seen := map[string]struct{}{}
	for _, m := range pmidRef.FindAllStringSubmatch(refs, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Expand normalizes a raw input row into dataset rows. Rows carrying a
// PMID, or no References to recover one from, pass through with their
// source normalized and missing mechanism type and polarity filled in.
// Other rows expand into one row per PMID found in References; none are
// produced when References holds no PMID.
func Expand(p types.Prediction) []types.Prediction {
	p.Source = NormalizeSource(p.Source)
	p.PMID = strings.TrimSpace(p.PMID)

	curatedRow := p.Mechanism != "" || p.Effect != "" || p.InteractionType != "" || p.References != ""
	if p.MechanismType == "" && curatedRow {
		p.MechanismType = MapMechanism(p.Mechanism, p.Effect, p.InteractionType)
	}
	if p.Polarity == "" {
		if p.Effect != "" || p.IsStimulation || p.IsInhibition {
			p.Polarity = MapPolarity(p.Effect, p.IsStimulation, p.IsInhibition)
		} else {
			p.Polarity = PolarityForType(p.MechanismType)
		}
	}
	if curatedRow && p.HasMechanism == "" {
		p.HasMechanism = "Yes"
		p.MechanismProbability = 1.0
		p.TypeConfidence = 1.0
	}

	if p.PMID != "" || p.References == "" {
		return []types.Prediction{p}
	}
	pmids := ExtractPMIDs(p.References)
	out := make([]types.Prediction, 0, len(pmids))
	for _, id := range pmids {
		row := p
		row.PMID = id
		out = append(out, row)
	}
	return out
}
