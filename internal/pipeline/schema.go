package pipeline

import (
	"strings"

	"targetprep/internal/table"
)

// Canonical column names shared across outputs.
const (
	ColEnsemblGeneID = "ensembl_gene_id"
	ColEntrezID      = "entrez_id"
	ColUniprotID     = "uniprot_id"
	ColSymbol        = "symbol"
	ColDiseaseID     = "disease_id"
	ColDiseaseLabel  = "disease_label"
	ColOverallScore  = "overall_score"
)

// GeneKeys are the join keys shared by the gene annotation tables.
var GeneKeys = []string{ColEnsemblGeneID, ColEntrezID, ColUniprotID}

// TissueRenames maps raw GTEx headers to canonical names.
var TissueRenames = map[string]string{
	"EntrezID":                ColEntrezID,
	"ENSEMBL_ID":              ColEnsemblGeneID,
	"Symbol":                  ColSymbol,
	"EFO":                     ColDiseaseID,
	"Label (OTv8_or_earlier)": ColDiseaseLabel,
	"Max Fold Change":         "max_fold_change",
}

// TissueColumn is the raw composite tissue field.
const TissueColumn = "Tissue"

// ScoreRenames maps raw score matrix headers to canonical names. Both
// datasource and datatype matrices share it.
var ScoreRenames = map[string]string{
	"EnsemblId":  ColEnsemblGeneID,
	"Symbol":     ColSymbol,
	"OntologyId": ColDiseaseID,
	"Label":      ColDiseaseLabel,
	"Is direct":  "direct_association",
	"overall":    ColOverallScore,
}

// Drug evidence channels removed from the nodrugs score variants.
const (
	DatasourceDrugColumn = "chembl"
	DatatypeDrugColumn   = "known_drug"
)

// PharmaprojectsRenames maps pipeline extract headers to canonical names.
var PharmaprojectsRenames = map[string]string{
	"Ensembl_ID":   ColEnsemblGeneID,
	"EntrezGeneID": ColEntrezID,
	"EFO_ID":       ColDiseaseID,
}

// PharmaprojectsDropped is removed from the extract.
const PharmaprojectsDropped = "Target_Indication"

// TissueExpression is one normalised GTEx row.
type TissueExpression struct {
	EntrezID      string
	EnsemblGeneID string
	Symbol        string
	DiseaseID     string
	DiseaseLabel  string
	TissueLabel   string
	Source        string
	MaxFoldChange string
}

// Header returns the fixed output column order.
func (TissueExpression) Header() []string {
	return []string{ColEntrezID, ColEnsemblGeneID, ColSymbol, ColDiseaseID, ColDiseaseLabel, "tissue_label", "source", "max_fold_change"}
}

// Row projects the record in Header order.
func (t TissueExpression) Row() []string {
	return []string{t.EntrezID, t.EnsemblGeneID, t.Symbol, t.DiseaseID, t.DiseaseLabel, t.TissueLabel, t.Source, t.MaxFoldChange}
}

// DiseaseLocation is one cleaned disease-to-anatomy mapping.
type DiseaseLocation struct {
	DiseaseID            string
	DiseaseLocationID    string
	DiseaseLocationLabel string
}

// Header returns the fixed output column order.
func (DiseaseLocation) Header() []string {
	return []string{ColDiseaseID, "disease_location_id", "disease_location_label"}
}

// Row projects the record in Header order.
func (d DiseaseLocation) Row() []string {
	return []string{d.DiseaseID, d.DiseaseLocationID, d.DiseaseLocationLabel}
}

type record interface {
	Header() []string
	Row() []string
}

func recordsTable[R record](name string, records []R) *table.Table {
	var zero R
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	return table.New(name, zero.Header(), rows)
}

// TissueLabel returns the part of a composite tissue value before its first
// underscore. ok is false when there is no underscore and the value is
// returned whole.
func TissueLabel(v string) (label string, ok bool) {
	head, _, found := strings.Cut(v, "_")
	return head, found
}

// LastSegment returns the final "/"-separated segment of an IRI. ok is false
// when the value has no "/" and is returned unchanged. A trailing "/" yields
// an empty segment.
func LastSegment(iri string) (segment string, ok bool) {
	i := strings.LastIndexByte(iri, '/')
	if i < 0 {
		return iri, false
	}
	return iri[i+1:], true
}
