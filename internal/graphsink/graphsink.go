// Package graphsink mirrors KG sidecars into Neo4j.
package graphsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dgallion1/docgraph/internal/qa"
)

// Options configures the Neo4j connection.
type Options struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

// Sink writes KG payloads to Neo4j.
type Sink struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// New connects to Neo4j. It returns nil, nil when no URI is configured.
func New(ctx context.Context, opts Options, log *slog.Logger) (*Sink, error) {
	if opts.URI == "" {
		return nil, nil
	}
	if opts.User == "" {
		opts.User = "neo4j"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxPoolSize <= 0 {
		opts.MaxPoolSize = 50
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.User, opts.Password, ""),
		func(cfg *neo4j.Config) {
			cfg.MaxConnectionPoolSize = opts.MaxPoolSize
			cfg.SocketConnectTimeout = opts.Timeout
		})
	if err != nil {
		return nil, fmt.Errorf("graphsink: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphsink: verify connectivity: %w", err)
	}
	return &Sink{driver: driver, database: opts.Database, log: log}, nil
}

func (s *Sink) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

var constraints = []string{
	`CREATE CONSTRAINT kg_document_id_unique IF NOT EXISTS FOR (d:KGDocument) REQUIRE d.id IS UNIQUE`,
	`CREATE CONSTRAINT kg_node_id_unique IF NOT EXISTS FOR (n:KGNode) REQUIRE n.id IS UNIQUE`,
}

// relTypes maps KG edge types to relationship types. Cypher cannot bind a
// relationship type as a parameter, so only these are ever interpolated.
var relTypes = map[string]string{
	qa.EdgeAnswerOf:        "ANSWER_OF",
	qa.EdgeReferences:      "REFERENCES",
	qa.EdgeUsesFormula:     "USES_FORMULA",
	qa.EdgeExplains:        "EXPLAINS",
	qa.EdgeDefines:         "DEFINES",
	qa.EdgeWorkedExampleOf: "WORKED_EXAMPLE_OF",
}

// Write replaces the document's subgraph with the payload's nodes and edges.
func (s *Sink) Write(ctx context.Context, kg *qa.KGPayload) error {
	if s == nil || s.driver == nil || kg == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes, err := nodeRows(kg, now)
	if err != nil {
		return err
	}
	groups, skipped := edgeGroups(kg, now)
	if skipped > 0 && s.log != nil {
		s.log.Warn("skipping edges with unknown type", "doc_id", kg.DocID, "count", skipped)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	for _, q := range constraints {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			if s.log != nil {
				s.log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
			continue
		}
		_, _ = res.Consume(ctx)
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(ctx, tx, `
MERGE (d:KGDocument {id: $doc_id})
SET d.version = $version, d.node_count = $node_count, d.edge_count = $edge_count, d.synced_at = $synced_at
WITH d
OPTIONAL MATCH (n:KGNode {doc_id: $doc_id})
DETACH DELETE n
`, map[string]any{
			"doc_id":     kg.DocID,
			"version":    kg.Version,
			"node_count": kg.Stats.NodeCount,
			"edge_count": kg.Stats.EdgeCount,
			"synced_at":  now,
		}); err != nil {
			return nil, err
		}

		if len(nodes) > 0 {
			if err := run(ctx, tx, `
UNWIND $nodes AS n
MERGE (k:KGNode {id: n.id})
SET k += n
WITH k, n
MATCH (d:KGDocument {id: n.doc_id})
MERGE (k)-[:IN_DOCUMENT]->(d)
`, map[string]any{"nodes": nodes}); err != nil {
				return nil, err
			}
		}

		for _, edgeType := range sortedKeys(groups) {
			q := fmt.Sprintf(`
UNWIND $rels AS r
MATCH (a:KGNode {id: r.source_id})
MATCH (b:KGNode {id: r.target_id})
MERGE (a)-[e:%s {id: r.id}]->(b)
SET e.strength = r.strength,
    e.link_method = r.link_method,
    e.method = r.method,
    e.page = r.page,
    e.synced_at = r.synced_at
`, relTypes[edgeType])
			if err := run(ctx, tx, q, map[string]any{"rels": groups[edgeType]}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graphsink: write %s: %w", kg.DocID, err)
	}
	return nil
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, q string, params map[string]any) error {
	res, err := tx.Run(ctx, q, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// nodeRows flattens nodes into property maps. Nested fields travel as
// props_json since Neo4j properties must be scalars or scalar lists.
func nodeRows(kg *qa.KGPayload, now string) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(kg.Nodes))
	for _, n := range kg.Nodes {
		raw, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("graphsink: encode node %s: %w", n.NodeID(), err)
		}
		row := map[string]any{
			"id":         n.NodeID(),
			"type":       n.NodeType(),
			"doc_id":     kg.DocID,
			"props_json": string(raw),
			"synced_at":  now,
		}
		switch v := n.(type) {
		case *qa.Segment:
			row["text"] = truncate(v.TextContent, 1600)
			row["chapter_number"] = v.ChapterNumber
			row["page_start"] = v.PageStart
			row["page_end"] = v.PageEnd
			row["heading_path"] = v.HeadingPath
			row["needs_review"] = v.NeedsReview
		case *qa.Concept:
			if v.ConceptName != nil {
				row["name"] = *v.ConceptName
			}
			row["tags"] = v.Tags
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// edgeGroups buckets edges by relationship type and counts unknown types.
func edgeGroups(kg *qa.KGPayload, now string) (map[string][]map[string]any, int) {
	groups := make(map[string][]map[string]any)
	skipped := 0
	for _, e := range kg.Edges {
		if _, ok := relTypes[e.EdgeType]; !ok {
			skipped++
			continue
		}
		id := e.EdgeID
		if id == "" {
			id = e.SourceID + "->" + e.TargetID
		}
		groups[e.EdgeType] = append(groups[e.EdgeType], map[string]any{
			"id":          id,
			"source_id":   e.SourceID,
			"target_id":   e.TargetID,
			"strength":    e.Strength,
			"link_method": e.LinkMethod,
			"method":      e.AnchorMetadata.Method,
			"page":        e.AnchorMetadata.Page,
			"synced_at":   now,
		})
	}
	return groups, skipped
}

func sortedKeys(m map[string][]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
