// Package concepts loads a per-book concept glossary (xlsx, tsv or csv) and
// finds concept mentions in segment text.
package concepts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Concept is one glossary row.
type Concept struct {
	ID        string
	Name      string
	Aliases   []string
	Level     *int
	Tags      []string
	Rationale *string
}

// Link is a concept mention attached to a QA segment.
type Link struct {
	ConceptID   string   `json:"concept_id"`
	ConceptName *string  `json:"concept_name"`
	Level       *int     `json:"level"`
	Tags        []string `json:"tags"`
	Rationale   *string  `json:"rationale"`
	Confidence  float64  `json:"confidence"`
	MatchedText string   `json:"matched_text,omitempty"`
}

// Glossary matches concept names and aliases as whole words.
type Glossary struct {
	Concepts []Concept

	matchers []matcher
}

type matcher struct {
	idx   int
	term  string
	re    *regexp.Regexp
	alias bool
}

// New indexes concepts for matching. Longer terms are tried first so
// "marginal cost" wins over "cost".
func New(concepts []Concept) *Glossary {
	g := &Glossary{Concepts: concepts}
	for i, c := range concepts {
		if c.Name != "" {
			g.matchers = append(g.matchers, newMatcher(i, c.Name, false))
		}
		for _, a := range c.Aliases {
			if a != "" {
				g.matchers = append(g.matchers, newMatcher(i, a, true))
			}
		}
	}
	sort.SliceStable(g.matchers, func(a, b int) bool {
		return len(g.matchers[a].term) > len(g.matchers[b].term)
	})
	return g
}

func newMatcher(idx int, term string, alias bool) matcher {
	words := strings.Fields(regexp.QuoteMeta(strings.ToLower(term)))
	return matcher{
		idx:   idx,
		term:  term,
		alias: alias,
		re:    regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`),
	}
}

// Match returns one link per concept mentioned in text, in glossary order.
func (g *Glossary) Match(text string) []Link {
	if g == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	found := make(map[int]matcher)
	for _, m := range g.matchers {
		if _, ok := found[m.idx]; ok {
			continue
		}
		if m.re.MatchString(text) {
			found[m.idx] = m
		}
	}
	if len(found) == 0 {
		return nil
	}
	idxs := make([]int, 0, len(found))
	for i := range found {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	out := make([]Link, 0, len(idxs))
	for _, i := range idxs {
		c := g.Concepts[i]
		m := found[i]
		l := Link{
			ConceptID:   c.ID,
			Level:       c.Level,
			Tags:        c.Tags,
			Rationale:   c.Rationale,
			Confidence:  0.9,
			MatchedText: m.term,
		}
		if l.Tags == nil {
			l.Tags = []string{}
		}
		if c.Name != "" {
			name := c.Name
			l.ConceptName = &name
		}
		if m.alias {
			l.Confidence = 0.7
		}
		out = append(out, l)
	}
	return out
}

// Load reads a glossary file by extension: .xlsx via excelize, .tsv and .csv
// as delimited text.
func Load(path string) (*Glossary, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".tsv":
		rows, err = readDelimited(path, '\t')
	case ".csv":
		rows, err = readDelimited(path, ',')
	default:
		return nil, fmt.Errorf("unsupported glossary format: %s", path)
	}
	if err != nil {
		return nil, err
	}
	concepts, err := parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return New(concepts), nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in XLSX")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

var headerAliases = map[string]string{
	"concept_id":   "id",
	"id":           "id",
	"concept":      "name",
	"concept_name": "name",
	"name":         "name",
	"term":         "name",
	"aliases":      "aliases",
	"synonyms":     "aliases",
	"level":        "level",
	"tags":         "tags",
	"rationale":    "rationale",
	"definition":   "rationale",
}

// parseRows reads a header row then one concept per row. A missing id
// column falls back to a slug of the name.
func parseRows(rows [][]string) ([]Concept, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty glossary")
	}
	cols := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, " ", "_")))
		if field, ok := headerAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("glossary has no concept name column")
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Concept
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		name := cell(row, "name")
		if name == "" {
			continue
		}
		c := Concept{ID: cell(row, "id"), Name: name}
		if c.ID == "" {
			c.ID = "concept_" + slugify(name)
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.Aliases = splitList(cell(row, "aliases"))
		c.Tags = splitList(cell(row, "tags"))
		if lv, err := strconv.Atoi(cell(row, "level")); err == nil {
			c.Level = &lv
		}
		if r := cell(row, "rationale"); r != "" {
			c.Rationale = &r
		}
		out = append(out, c)
	}
	return out, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' || r == ',' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	nonSlug  = regexp.MustCompile(`[^a-z0-9_]+`)
	dashRuns = regexp.MustCompile(`_+`)
)

func slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	s = strings.Trim(dashRuns.ReplaceAllString(s, "_"), "_")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// ResolvePath picks the glossary for docID: an explicit path when it
// exists, else the first *.xlsx or *.tsv in dir whose name contains docID,
// else the first such file. It returns "" when nothing is found.
func ResolvePath(explicit, dir, docID string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
	}
	if dir == "" {
		return ""
	}
	xlsx, _ := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	tsv, _ := filepath.Glob(filepath.Join(dir, "*.tsv"))
	files := append(xlsx, tsv...)
	if len(files) == 0 {
		return ""
	}
	sort.Strings(files)
	low := strings.ToLower(docID)
	if low != "" {
		for _, f := range files {
			stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
			if strings.Contains(strings.ToLower(stem), low) {
				return f
			}
		}
	}
	return files[0]
}
