// Package config resolves the run configuration: built-in defaults, then an
// optional YAML file, then TARGETPREP_* environment variables. Command-line
// flags are applied last by the command itself.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"targetprep/internal/blob"
	"targetprep/internal/journal"
)

// Dataset keys. Input keys name reference files, output keys name the CSV
// files the routines write.
const (
	HGNCMappings     = "hgnc_mappings"
	GOAnnotations    = "go_annotations"
	ProteinClasses   = "protein_classes"
	GTEx             = "gtex"
	DiseaseLocation  = "disease_location"
	DatasourceScores = "datasource_scores"
	DatatypeScores   = "datatype_scores"
	Pharmaprojects   = "pharmaprojects"

	OutputGeneInfo                = "output_gene_info"
	OutputTissueExpression        = "output_tissue_expression"
	OutputDiseaseLocation         = "output_disease_location"
	OutputDatasourceScores        = "output_datasource_scores"
	OutputDatasourceScoresNoDrugs = "output_datasource_scores_nodrugs"
	OutputDatatypeScores          = "output_datatype_scores"
	OutputDatatypeScoresNoDrugs   = "output_datatype_scores_nodrugs"
	OutputPharmaprojects          = "output_pharmaprojects"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TARGETPREP_"

// Config is the explicit configuration handed to the blob store, journal and
// every routine.
type Config struct {
	Routines     []string          `yaml:"routines"`
	Datasets     map[string]string `yaml:"datasets"`
	Delimiters   map[string]string `yaml:"delimiters"`
	TissueSource string            `yaml:"tissue_source"`
	HTTPTimeout  time.Duration     `yaml:"http_timeout"`
	MetricsFile  string            `yaml:"metrics_file"`
	Blob         BlobConfig        `yaml:"blob"`
	Journal      JournalConfig     `yaml:"journal"`
	Log          LogConfig         `yaml:"log"`
}

// BlobConfig selects where dataset keys are resolved.
type BlobConfig struct {
	Driver string        `yaml:"driver"`
	FSRoot string        `yaml:"fs_root"`
	S3     blob.S3Config `yaml:"s3"`
}

// JournalConfig selects the run journal backend.
type JournalConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatasetKeys lists every recognised dataset key, inputs first.
func DatasetKeys() []string {
	return []string{
		HGNCMappings, GOAnnotations, ProteinClasses, GTEx, DiseaseLocation,
		DatasourceScores, DatatypeScores, Pharmaprojects,
		OutputGeneInfo, OutputTissueExpression, OutputDiseaseLocation,
		OutputDatasourceScores, OutputDatasourceScoresNoDrugs,
		OutputDatatypeScores, OutputDatatypeScoresNoDrugs, OutputPharmaprojects,
	}
}

// Default returns the built-in configuration: reference files under data/,
// outputs under output/, filesystem blobs rooted at the working directory and
// a local sqlite journal. Only the pharmaprojects routine is selected.
func Default() Config {
	return Config{
		Routines: []string{"pharmaprojects"},
		Datasets: map[string]string{
			HGNCMappings:                  "data/hgnc_mappings.tsv",
			GOAnnotations:                 "data/go_annotations.tsv",
			ProteinClasses:                "data/protein_classes.tsv",
			GTEx:                          "data/gtex_tissue_expression.tsv",
			DiseaseLocation:               "data/disease_location.tsv",
			DatasourceScores:              "data/datasource_scores.csv",
			DatatypeScores:                "data/datatype_scores.csv",
			Pharmaprojects:                "data/pharmaprojects.csv",
			OutputGeneInfo:                "output/gene_info.csv",
			OutputTissueExpression:        "output/tissue_expression.csv",
			OutputDiseaseLocation:         "output/disease_location.csv",
			OutputDatasourceScores:        "output/datasource_scores.csv",
			OutputDatasourceScoresNoDrugs: "output/datasource_scores_nodrugs.csv",
			OutputDatatypeScores:          "output/datatype_scores.csv",
			OutputDatatypeScoresNoDrugs:   "output/datatype_scores_nodrugs.csv",
			OutputPharmaprojects:          "output/pharmaprojects.csv",
		},
		TissueSource: "GTExv6",
		HTTPTimeout:  5 * time.Minute,
		Blob:         BlobConfig{Driver: string(blob.DriverFilesystem), FSRoot: "."},
		Journal:      JournalConfig{Driver: string(journal.DriverSQLite), SQLitePath: "targetprep.db"},
		Log:          LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// TARGETPREP_CONFIG variable is consulted, and with neither only defaults and
// environment apply. getenv is normally os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays b onto cfg. Dataset maps are merged key by key so a file
// can override a single location and keep the other defaults.
func decodeYAML(b []byte, cfg *Config) error {
	defaults := cfg.Datasets
	cfg.Datasets = nil
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		cfg.Datasets = defaults
		return err
	}
	merged := make(map[string]string, len(defaults)+len(cfg.Datasets))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range cfg.Datasets {
		merged[k] = v
	}
	cfg.Datasets = merged
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	if v := getenv(EnvPrefix + "ROUTINES"); v != "" {
		cfg.Routines = SplitList(v)
	}
	str("BLOB_DRIVER", &cfg.Blob.Driver)
	str("BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	if v := getenv(EnvPrefix + "BLOB_S3_PATH_STYLE"); v != "" {
		ps, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err)
		}
		cfg.Blob.S3.PathStyle = ps
	}
	str("JOURNAL_DRIVER", &cfg.Journal.Driver)
	str("SQLITE_PATH", &cfg.Journal.SQLitePath)
	str("POSTGRES_DSN", &cfg.Journal.PostgresDSN)
	str("METRICS_FILE", &cfg.MetricsFile)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("TISSUE_SOURCE", &cfg.TissueSource)
	if v := getenv(EnvPrefix + "HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.HTTPTimeout = d
	}
	for _, key := range DatasetKeys() {
		if v := getenv(EnvPrefix + "DATASET_" + strings.ToUpper(key)); v != "" {
			cfg.Datasets[key] = v
		}
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{Driver: c.Blob.Driver, FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}

// JournalOptions converts the journal section for journal.Open.
func (c Config) JournalOptions() journal.Options {
	return journal.Options{Driver: c.Journal.Driver, SQLitePath: c.Journal.SQLitePath, PostgresDSN: c.Journal.PostgresDSN}
}

// DelimiterRunes parses the per-dataset delimiter overrides. "tab" and "\t"
// both mean a tab character.
func (c Config) DelimiterRunes() (map[string]rune, error) {
	out := make(map[string]rune, len(c.Delimiters))
	keys := make([]string, 0, len(c.Delimiters))
	for k := range c.Delimiters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.Delimiters[k]
		if v == "tab" || v == `\t` {
			v = "\t"
		}
		if utf8.RuneCountInString(v) != 1 {
			return nil, fmt.Errorf("delimiter for %s must be a single character, got %q", k, v)
		}
		r, _ := utf8.DecodeRuneInString(v)
		out[k] = r
	}
	return out, nil
}
