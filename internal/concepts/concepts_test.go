package concepts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestMatch_LongestTermFirst(t *testing.T) {
	g := New([]Concept{
		{ID: "c_cost", Name: "cost"},
		{ID: "c_mc", Name: "marginal cost", Aliases: []string{"MC"}},
		{ID: "c_gdp", Name: "GDP"},
	})

	links := g.Match("When marginal   cost equals price, output is efficient.")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %+v", links)
	}
	if links[0].ConceptID != "c_cost" || links[1].ConceptID != "c_mc" {
		t.Errorf("expected glossary order, got %q %q", links[0].ConceptID, links[1].ConceptID)
	}
	if links[1].MatchedText != "marginal cost" || links[1].Confidence != 0.9 {
		t.Errorf("unexpected match %+v", links[1])
	}

	alias := g.Match("Set MC to zero")
	if len(alias) != 1 || alias[0].ConceptID != "c_mc" || alias[0].Confidence != 0.7 {
		t.Errorf("expected alias match, got %+v", alias)
	}
	if got := g.Match("gross domestic product"); len(got) != 0 {
		t.Errorf("expected no match, got %+v", got)
	}
	if got := g.Match("costly"); len(got) != 0 {
		t.Errorf("expected whole-word matching, got %+v", got)
	}
}

func TestLoad_TSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "econ.tsv")
	data := "Concept ID\tConcept\tAliases\tLevel\tTags\tDefinition\n" +
		"c1\tOpportunity cost\topportunity costs\t2\tcore;choice\tValue of the next best alternative\n" +
		"\tScarcity\t\t\t\t\n" +
		"\t\t\t\t\t\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Concepts) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(g.Concepts))
	}
	c := g.Concepts[0]
	if c.ID != "c1" || c.Level == nil || *c.Level != 2 || len(c.Tags) != 2 || c.Rationale == nil {
		t.Errorf("unexpected concept %+v", c)
	}
	if g.Concepts[1].ID != "concept_scarcity" {
		t.Errorf("expected slug id, got %q", g.Concepts[1].ID)
	}
}

func TestLoad_XLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"concept_id", "concept_name", "level"},
		{"k1", "Elasticity", 1},
		{"k2", "Demand curve", 1},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	g, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	links := g.Match("The demand curve slopes down; elasticity varies along it.")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %+v", links)
	}
	if links[0].ConceptName == nil || *links[0].ConceptName != "Elasticity" {
		t.Errorf("unexpected first link %+v", links[0])
	}
}

func TestLoad_MissingNameColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	os.WriteFile(path, []byte("id,level\n1,2\n"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing name column")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_general.xlsx", "macro_econ.tsv", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	if got := ResolvePath("", dir, "Macro"); filepath.Base(got) != "macro_econ.tsv" {
		t.Errorf("expected macro_econ.tsv, got %q", got)
	}
	if got := ResolvePath("", dir, "physics"); filepath.Base(got) != "a_general.xlsx" {
		t.Errorf("expected first file fallback, got %q", got)
	}
	explicit := filepath.Join(dir, "notes.txt")
	if got := ResolvePath(explicit, dir, "macro"); got != explicit {
		t.Errorf("expected explicit path, got %q", got)
	}
	if got := ResolvePath("", "", "macro"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
