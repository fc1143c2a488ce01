package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// workspace lays out a filesystem blob root with the pharmaprojects input and
// a config pointing at it.
func workspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	writeTestFile(t, filepath.Join(dir, "data", "pharmaprojects.csv"),
		"Ensembl_ID,EntrezGeneID,EFO_ID,Target_Indication\nENSG1,100,EFO_1,X\nENSG2,200,EFO_2,Y\n")
	cfgPath = filepath.Join(dir, "targetprep.yaml")
	writeTestFile(t, cfgPath, "blob:\n  fs_root: "+dir+"\njournal:\n  driver: sqlite\n  sqlite_path: "+filepath.Join(dir, "journal.db")+"\nlog:\n  format: json\n")
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunDefaultRoutineAndHistory(t *testing.T) {
	dir, cfgPath := workspace(t)
	metricsPath := filepath.Join(dir, "targetprep.prom")

	code, stdout, stderr := run(t, "-config", cfgPath, "-metrics-file", metricsPath)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "pharmaprojects") || !strings.Contains(stdout, "2 rows") {
		t.Fatalf("unexpected summary %q", stdout)
	}
	out, err := os.ReadFile(filepath.Join(dir, "output", "pharmaprojects.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(out) != ",ensembl_gene_id,entrez_id,disease_id\n0,ENSG1,100,EFO_1\n1,ENSG2,200,EFO_2\n" {
		t.Fatalf("unexpected output %q", out)
	}
	prom, err := os.ReadFile(metricsPath)
	if err != nil || !strings.Contains(string(prom), "targetprep_rows_written_total") {
		t.Fatalf("metrics file missing or incomplete: %v", err)
	}
	if !strings.Contains(stderr, `"message":"routine finished"`) {
		t.Fatalf("expected json logs, got %q", stderr)
	}

	code, stdout, _ = run(t, "-config", cfgPath, "-history", "5")
	if code != 0 || !strings.Contains(stdout, "ROUTINE") || !strings.Contains(stdout, "succeeded") {
		t.Fatalf("unexpected history (%d): %q", code, stdout)
	}
}

func TestRunFailureExitCodes(t *testing.T) {
	dir, cfgPath := workspace(t)

	code, _, stderr := run(t, "-config", cfgPath, "-routines", "disease_location")
	if code != 1 || !strings.Contains(stderr, "error:") || !strings.Contains(stderr, "disease_location") {
		t.Fatalf("expected runtime failure, got %d: %q", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "output", "disease_location.csv")); !os.IsNotExist(err) {
		t.Fatalf("failed routine must not write output, stat err %v", err)
	}

	cases := [][]string{
		{"-config", cfgPath, "-routines", "nonsense"},
		{"-config", filepath.Join(dir, "missing.yaml")},
		{"-config", cfgPath, "-log-level", "shout"},
		{"-config", cfgPath, "extra"},
		{"-unknown-flag"},
	}
	for _, args := range cases {
		if code, _, _ := run(t, args...); code != 2 {
			t.Errorf("args %v: expected usage exit 2, got %d", args, code)
		}
	}
}

func TestListRoutines(t *testing.T) {
	_, cfgPath := workspace(t)
	code, stdout, _ := run(t, "-config", cfgPath, "-list")
	if code != 0 {
		t.Fatalf("list failed: %d", code)
	}
	for _, want := range []string{"pharmaprojects (selected)", "gene_annotations", "data/pharmaprojects.csv", "missing", "output/gene_info.csv"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("list output missing %q:\n%s", want, stdout)
		}
	}
}

func TestEnvironmentSelectsRoutines(t *testing.T) {
	dir, cfgPath := workspace(t)
	writeTestFile(t, filepath.Join(dir, "data", "disease_location.tsv"),
		"disease_iri\tdisease_location_iri\tdisease_location_label\nhttp://x/EFO_1\thttp://y/UBERON_1\tcolon\n")
	t.Setenv("TARGETPREP_ROUTINES", "disease_location")
	if code, _, stderr := run(t, "-config", cfgPath); code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "output", "disease_location.csv")); err != nil {
		t.Fatalf("expected disease location output: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output", "pharmaprojects.csv")); !os.IsNotExist(err) {
		t.Fatalf("env selection should replace the default routine")
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	_, cfgPath := workspace(t)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"targetprep", "-config", cfgPath, "-all"}
	main()
	os.Args = []string{"targetprep", "-config", cfgPath}
	main()
	if len(codes) != 2 || codes[0] != 1 || codes[1] != 0 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
