package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/klauspost/pgzip"

	"targetprep/internal/blob"
)

func putBlob(t *testing.T, store blob.Store, key string, data []byte) {
	t.Helper()
	if _, err := store.Put(context.Background(), key, bytes.NewReader(data), blob.PutOptions{}); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(data)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDelimiter(t *testing.T) {
	cases := map[string]rune{
		"data/scores.csv":                    ',',
		"data/scores.CSV.gz":                 ',',
		"data/hgnc.tsv":                      '\t',
		"data/goa.txt.gz":                    '\t',
		"https://example.org/a/b.csv?x=1":    ',',
		"https://example.org/a/gtex_tissues": '\t',
	}
	for loc, want := range cases {
		if got := Delimiter(loc); got != want {
			t.Errorf("Delimiter(%q) = %q, want %q", loc, got, want)
		}
	}
}

func TestLoadFromBlobStore(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	putBlob(t, store, "in/hgnc.tsv", []byte("\xef\xbb\xbfensembl_gene_id\tentrez_id\nENSG1\t100\n"))
	putBlob(t, store, "in/pharma.csv.gz", gzipped(t, "Ensembl_ID,EFO_ID\nENSG1,EFO_1\n"))
	putBlob(t, store, "in/semi.txt", []byte("a;b\n1;2\n"))

	l := NewLoader(store, nil, map[string]rune{"semi": ';'})
	hgnc, err := l.Load(ctx, "hgnc_mappings", "in/hgnc.tsv")
	if err != nil {
		t.Fatalf("load hgnc: %v", err)
	}
	if !reflect.DeepEqual(hgnc.Columns, []string{"ensembl_gene_id", "entrez_id"}) {
		t.Fatalf("BOM not stripped: %q", hgnc.Columns)
	}
	if hgnc.Name != "hgnc_mappings" {
		t.Fatalf("table should be named after dataset, got %q", hgnc.Name)
	}
	pharma, err := l.Load(ctx, "pharmaprojects", "in/pharma.csv.gz")
	if err != nil {
		t.Fatalf("load gz: %v", err)
	}
	if pharma.Len() != 1 || pharma.Rows[0][1] != "EFO_1" {
		t.Fatalf("unexpected gz table %v", pharma.Rows)
	}
	semi, err := l.Load(ctx, "semi", "in/semi.txt")
	if err != nil || len(semi.Columns) != 2 {
		t.Fatalf("delimiter override ignored: %v %v", err, semi)
	}
}

func TestLoadMissingBlob(t *testing.T) {
	l := NewLoader(blob.NewMemory(), nil, nil)
	_, err := l.Load(context.Background(), "gtex", "in/none.tsv")
	var ue ErrUnavailable
	if !errors.As(err, &ue) || ue.Dataset != "gtex" {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, blob.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
	if err := l.Check(context.Background(), "in/none.tsv"); err == nil {
		t.Fatalf("expected check failure")
	}
}

func TestLoadCorruptGzip(t *testing.T) {
	store := blob.NewMemory()
	putBlob(t, store, "in/bad.tsv.gz", []byte("not gzip"))
	l := NewLoader(store, nil, nil)
	if _, err := l.Load(context.Background(), "bad", "in/bad.tsv.gz"); !errors.As(err, new(ErrUnavailable)) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scores.csv":
			_, _ = w.Write([]byte("EnsemblId,overall\nENSG1,0.5\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLoader(blob.NewMemory(), srv.Client(), nil)
	ctx := context.Background()
	tbl, err := l.Load(ctx, "datasource_scores", srv.URL+"/scores.csv")
	if err != nil {
		t.Fatalf("load url: %v", err)
	}
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"ENSG1", "0.5"}}) {
		t.Fatalf("unexpected rows %v", tbl.Rows)
	}
	if err := l.Check(ctx, srv.URL+"/scores.csv"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if _, err := l.Load(ctx, "datatype_scores", srv.URL+"/missing.csv"); !errors.As(err, new(ErrUnavailable)) {
		t.Fatalf("expected ErrUnavailable for 404, got %v", err)
	}
	if err := l.Check(ctx, srv.URL+"/missing.csv"); err == nil {
		t.Fatalf("expected check failure for 404")
	}
}
