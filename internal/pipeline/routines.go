package pipeline

import (
	"fmt"

	"targetprep/internal/config"
	"targetprep/internal/table"
)

// Routine names.
const (
	RoutineGeneAnnotations  = "gene_annotations"
	RoutineTissueExpression = "tissue_expression"
	RoutineDiseaseLocation  = "disease_location"
	RoutineScoringMatrices  = "scoring_matrices"
	RoutinePharmaprojects   = "pharmaprojects"
)

// Env carries run-wide settings into a transform.
type Env struct {
	TissueSource string
	Logger       Logger
}

// Result is what a transform hands back for writing. Tables is keyed by
// output dataset key; Degraded counts fallback values per derived column.
type Result struct {
	Tables   map[string]*table.Table
	Degraded map[string]int
}

// Routine is one independent transformation: it reads Inputs, produces every
// key in Outputs, and is written all-or-nothing.
type Routine struct {
	Name      string
	Inputs    []string
	Outputs   []string
	Transform func(in map[string]*table.Table, env Env) (Result, error)
}

// Routines returns the registered routines in declaration order.
func Routines() []Routine {
	return []Routine{
		{
			Name:      RoutineGeneAnnotations,
			Inputs:    []string{config.HGNCMappings, config.GOAnnotations, config.ProteinClasses},
			Outputs:   []string{config.OutputGeneInfo},
			Transform: geneAnnotations,
		},
		{
			Name:      RoutineTissueExpression,
			Inputs:    []string{config.GTEx},
			Outputs:   []string{config.OutputTissueExpression},
			Transform: tissueExpression,
		},
		{
			Name:      RoutineDiseaseLocation,
			Inputs:    []string{config.DiseaseLocation},
			Outputs:   []string{config.OutputDiseaseLocation},
			Transform: diseaseLocation,
		},
		{
			Name:   RoutineScoringMatrices,
			Inputs: []string{config.HGNCMappings, config.DatasourceScores, config.DatatypeScores},
			Outputs: []string{
				config.OutputDatasourceScores, config.OutputDatasourceScoresNoDrugs,
				config.OutputDatatypeScores, config.OutputDatatypeScoresNoDrugs,
			},
			Transform: scoringMatrices,
		},
		{
			Name:      RoutinePharmaprojects,
			Inputs:    []string{config.Pharmaprojects},
			Outputs:   []string{config.OutputPharmaprojects},
			Transform: pharmaprojects,
		},
	}
}

// RoutineNames lists every registered routine name in declaration order.
func RoutineNames() []string {
	rs := Routines()
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

// Lookup returns the routine called name.
func Lookup(name string) (Routine, error) {
	for _, r := range Routines() {
		if r.Name == name {
			return r, nil
		}
	}
	return Routine{}, ErrUnknownRoutine{Name: name}
}

// MergeGeneAnnotations left-joins the HGNC mapping with GO annotations and
// then protein classes, all on GeneKeys. The result has one row per mapping row.
func MergeGeneAnnotations(hgnc, goa, classes *table.Table) (*table.Table, error) {
	withGO, err := table.LeftJoin(hgnc, goa, GeneKeys...)
	if err != nil {
		return nil, fmt.Errorf("merge go annotations: %w", err)
	}
	merged, err := table.LeftJoin(withGO, classes, GeneKeys...)
	if err != nil {
		return nil, fmt.Errorf("merge protein classes: %w", err)
	}
	return merged, nil
}

func geneAnnotations(in map[string]*table.Table, env Env) (Result, error) {
	hgnc := in[config.HGNCMappings]
	for _, t := range []*table.Table{hgnc, in[config.GOAnnotations], in[config.ProteinClasses]} {
		if err := t.Require(GeneKeys...); err != nil {
			return Result{}, err
		}
	}
	merged, err := MergeGeneAnnotations(hgnc, in[config.GOAnnotations], in[config.ProteinClasses])
	if err != nil {
		return Result{}, err
	}
	env.Logger.Info("gene annotations merged", "mapping_rows", hgnc.Len(), "go_rows", in[config.GOAnnotations].Len(),
		"protein_class_rows", in[config.ProteinClasses].Len(), "rows", merged.Len())
	return Result{Tables: map[string]*table.Table{config.OutputGeneInfo: merged}}, nil
}

// NormalizeTissueExpression renames the raw GTEx headers, derives
// tissue_label from the Tissue field and stamps every row with source. It
// returns the number of Tissue values that had no underscore.
func NormalizeTissueExpression(gtex *table.Table, source string) ([]TissueExpression, int, error) {
	t := gtex.Rename(TissueRenames)
	cols := []string{ColEntrezID, ColEnsemblGeneID, ColSymbol, ColDiseaseID, ColDiseaseLabel, TissueColumn, "max_fold_change"}
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, err := t.Index(c)
		if err != nil {
			return nil, 0, err
		}
		idx[i] = j
	}
	out := make([]TissueExpression, len(t.Rows))
	degraded := 0
	for r, row := range t.Rows {
		tissue := row[idx[5]]
		label, ok := TissueLabel(tissue)
		if !ok && tissue != "" {
			degraded++
		}
		out[r] = TissueExpression{
			EntrezID:      row[idx[0]],
			EnsemblGeneID: row[idx[1]],
			Symbol:        row[idx[2]],
			DiseaseID:     row[idx[3]],
			DiseaseLabel:  row[idx[4]],
			TissueLabel:   label,
			Source:        source,
			MaxFoldChange: row[idx[6]],
		}
	}
	return out, degraded, nil
}

func tissueExpression(in map[string]*table.Table, env Env) (Result, error) {
	records, degraded, err := NormalizeTissueExpression(in[config.GTEx], env.TissueSource)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Tables:   map[string]*table.Table{config.OutputTissueExpression: recordsTable(config.OutputTissueExpression, records)},
		Degraded: map[string]int{"tissue_label": degraded},
	}, nil
}

// CleanDiseaseLocation shortens both IRI columns to their last path segment
// and keeps the location label. The map counts, per derived column, the
// non-empty IRIs that had no "/".
func CleanDiseaseLocation(t *table.Table) ([]DiseaseLocation, map[string]int, error) {
	diseaseIdx, err := t.Index("disease_iri")
	if err != nil {
		return nil, nil, err
	}
	locationIdx, err := t.Index("disease_location_iri")
	if err != nil {
		return nil, nil, err
	}
	labelIdx, err := t.Index("disease_location_label")
	if err != nil {
		return nil, nil, err
	}
	degraded := map[string]int{ColDiseaseID: 0, "disease_location_id": 0}
	segment := func(col, v string) string {
		s, ok := LastSegment(v)
		if !ok && v != "" {
			degraded[col]++
		}
		return s
	}
	out := make([]DiseaseLocation, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = DiseaseLocation{
			DiseaseID:            segment(ColDiseaseID, row[diseaseIdx]),
			DiseaseLocationID:    segment("disease_location_id", row[locationIdx]),
			DiseaseLocationLabel: row[labelIdx],
		}
	}
	return out, degraded, nil
}

func diseaseLocation(in map[string]*table.Table, _ Env) (Result, error) {
	records, degraded, err := CleanDiseaseLocation(in[config.DiseaseLocation])
	if err != nil {
		return Result{}, err
	}
	return Result{
		Tables:   map[string]*table.Table{config.OutputDiseaseLocation: recordsTable(config.OutputDiseaseLocation, records)},
		Degraded: degraded,
	}, nil
}

// ParseScores canonicalises a score matrix, backfills entrez_id from mapping
// on ensembl_gene_id and moves the joined column to the front. nodrugs is full
// without drugColumn and overall_score.
func ParseScores(scores, mapping *table.Table, drugColumn string) (full, nodrugs *table.Table, err error) {
	entrez, err := mapping.Select(ColEnsemblGeneID, ColEntrezID)
	if err != nil {
		return nil, nil, err
	}
	joined, err := table.LeftJoin(scores.Rename(ScoreRenames), entrez, ColEnsemblGeneID)
	if err != nil {
		return nil, nil, err
	}
	full, err = joined.MoveToFront(joined.Columns[len(joined.Columns)-1])
	if err != nil {
		return nil, nil, err
	}
	nodrugs, err = full.Drop(drugColumn, ColOverallScore)
	if err != nil {
		return nil, nil, err
	}
	return full, nodrugs, nil
}

func scoringMatrices(in map[string]*table.Table, env Env) (Result, error) {
	mapping := in[config.HGNCMappings]
	source, sourceNoDrugs, err := ParseScores(in[config.DatasourceScores], mapping, DatasourceDrugColumn)
	if err != nil {
		return Result{}, fmt.Errorf("datasource scores: %w", err)
	}
	datatype, datatypeNoDrugs, err := ParseScores(in[config.DatatypeScores], mapping, DatatypeDrugColumn)
	if err != nil {
		return Result{}, fmt.Errorf("datatype scores: %w", err)
	}
	env.Logger.Debug("score matrices parsed", "datasource_columns", source.Columns, "datatype_columns", datatype.Columns)
	return Result{Tables: map[string]*table.Table{
		config.OutputDatasourceScores:        source,
		config.OutputDatasourceScoresNoDrugs: sourceNoDrugs,
		config.OutputDatatypeScores:          datatype,
		config.OutputDatatypeScoresNoDrugs:   datatypeNoDrugs,
	}}, nil
}

// ExtractPipelineStages drops Target_Indication and canonicalises the id
// columns of a pharmaprojects extract.
func ExtractPipelineStages(t *table.Table) (*table.Table, error) {
	dropped, err := t.Drop(PharmaprojectsDropped)
	if err != nil {
		return nil, err
	}
	return dropped.Rename(PharmaprojectsRenames), nil
}

func pharmaprojects(in map[string]*table.Table, _ Env) (Result, error) {
	out, err := ExtractPipelineStages(in[config.Pharmaprojects])
	if err != nil {
		return Result{}, err
	}
	return Result{Tables: map[string]*table.Table{config.OutputPharmaprojects: out}}, nil
}
