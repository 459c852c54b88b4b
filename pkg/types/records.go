// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AccessionDetail is the cached protein-database record for one accession.
// All fields are independently optional.
type AccessionDetail struct {
	// CanonicalID is the entry name, e.g. "P53_HUMAN".
	CanonicalID string `json:"uniprot_id" yaml:"uniprot_id"`

	// ProteinName is the recommended name, or the first submitted name.
	ProteinName string `json:"protein_name" yaml:"protein_name"`

	// GeneSymbol is the primary gene name.
	GeneSymbol string `json:"gene_name" yaml:"gene_name"`
}

// IsEmpty reports whether no field is populated, meaning the accession is
// known to have no usable detail.
func (d AccessionDetail) IsEmpty() bool {
	return d.CanonicalID == "" && d.ProteinName == "" && d.GeneSymbol == ""
}

// BiblioMetadata is the cached bibliographic record for one document.
type BiblioMetadata struct {
	// PublicationDate is the raw pubdate string, e.g. "2019 Mar 15".
	PublicationDate string `json:"publication_date" yaml:"publication_date"`

	// Year is zero when no four-digit year could be parsed.
	Year int `json:"year" yaml:"year"`

	// Month is a three-letter abbreviation ("Jan".."Dec") or empty.
	Month string `json:"month" yaml:"month"`

	Journal string `json:"journal" yaml:"journal"`

	// Authors is a "; "-joined author list.
	Authors string `json:"authors" yaml:"authors"`

	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Prediction is one row of prediction or curated-resource input for merge.
type Prediction struct {
	PMID                 string  `json:"pmid"`
	Source               string  `json:"source"`
	Title                string  `json:"title,omitempty"`
	Abstract             string  `json:"abstract,omitempty"`
	Journal              string  `json:"journal,omitempty"`
	Authors              string  `json:"authors,omitempty"`
	Year                 int     `json:"year,omitempty"`
	Month                string  `json:"month,omitempty"`
	HasMechanism         string  `json:"has_mechanism,omitempty"`
	MechanismProbability float64 `json:"mechanism_probability,omitempty"`
	MechanismType        string  `json:"mechanism_type,omitempty"`
	TypeConfidence       float64 `json:"type_confidence,omitempty"`
	Polarity             string  `json:"polarity,omitempty"`
	Accessions           string  `json:"uniprot_accessions,omitempty"`
	Organism             string  `json:"organism,omitempty"`
	ProteinID            string  `json:"protein_id,omitempty"`
	ProteinName          string  `json:"protein_name,omitempty"`
	GeneName             string  `json:"gene_name,omitempty"`

	// Mechanism, Effect, InteractionType, References and the stimulation
	// flags carry raw curated-resource fields. They are mapped into
	// MechanismType, Polarity and PMID during merge.
	Mechanism       string `json:"mechanism,omitempty"`
	Effect          string `json:"effect,omitempty"`
	InteractionType string `json:"interaction_type,omitempty"`
	References      string `json:"references,omitempty"`
	IsStimulation   bool   `json:"is_stimulation,omitempty"`
	IsInhibition    bool   `json:"is_inhibition,omitempty"`
}
