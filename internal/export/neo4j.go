// Package export publishes the results of a check outside the process: a
// Neo4j graph of the model and its violations, and a Prometheus textfile.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"go-modguard/internal/model"
	"go-modguard/internal/partition"
	"go-modguard/internal/report"
)

// batchSize caps the rows sent in one UNWIND statement.
const batchSize = 1000

// Neo4jExporter loads a model, its modules and the violations found into
// Neo4j using batch UNWIND queries. Every node and relationship written in
// one run carries the same run id.
type Neo4jExporter struct {
	driver neo4j.DriverWithContext
	logger *log.Logger
	runID  string
}

// NewNeo4jExporter creates a driver for uri and verifies connectivity.
func NewNeo4jExporter(ctx context.Context, uri, user, password string, logger *log.Logger) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j %s: %w", uri, err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Neo4jExporter{driver: driver, logger: logger, runID: uuid.New().String()}, nil
}

// RunID returns the id stamped on everything this exporter writes.
func (e *Neo4jExporter) RunID() string { return e.runID }

// Close releases the underlying driver.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

func (e *Neo4jExporter) runCypher(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, e.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// runBatches runs cypher once per chunk of rows, passed as $batch.
func (e *Neo4jExporter) runBatches(ctx context.Context, cypher string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		if err := e.runCypher(ctx, cypher, map[string]any{"batch": rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// Clean removes every node and relationship a previous export created.
func (e *Neo4jExporter) Clean(ctx context.Context) error {
	e.logger.Info("cleaning exported graph")
	queries := []string{
		"MATCH ()-[r:VIOLATES]->() DELETE r",
		"MATCH ()-[r:CALLS]->() DELETE r",
		"MATCH (n:Module) DETACH DELETE n",
		"MATCH (n:ModMember) DETACH DELETE n",
		"MATCH (n:ModType) DETACH DELETE n",
		"MATCH (n:ModPackage) DETACH DELETE n",
	}
	for _, q := range queries {
		if err := e.runCypher(ctx, q, nil); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}
	return nil
}

// CreateIndexes ensures the lookup indexes used by the MERGE queries exist.
func (e *Neo4jExporter) CreateIndexes(ctx context.Context) error {
	indexes := []string{
		"CREATE INDEX mod_pkg_path IF NOT EXISTS FOR (n:ModPackage) ON (n.path)",
		"CREATE INDEX mod_type_name IF NOT EXISTS FOR (n:ModType) ON (n.full_name)",
		"CREATE INDEX mod_member_name IF NOT EXISTS FOR (n:ModMember) ON (n.full_name)",
		"CREATE INDEX mod_module_id IF NOT EXISTS FOR (n:Module) ON (n.id)",
	}
	for _, q := range indexes {
		if err := e.runCypher(ctx, q, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Export writes the model, the modules of p and the violations of r.
func (e *Neo4jExporter) Export(ctx context.Context, m *model.Model, p *partition.Partition, r *report.Report) error {
	steps := []struct {
		name   string
		cypher string
		rows   []map[string]any
	}{
		{
			name: "packages",
			cypher: `UNWIND $batch AS row
			 MERGE (n:ModPackage {path: row.path})
			 SET n.parent = row.parent, n.run_id = row.run_id`,
			rows: packageRows(m, e.runID),
		},
		{
			name: "types",
			cypher: `UNWIND $batch AS row
			 MERGE (n:ModType {full_name: row.full_name})
			 SET n.name = row.name, n.kind = row.kind, n.exported = row.exported,
			     n.artifact = row.artifact, n.run_id = row.run_id
			 WITH n, row
			 MATCH (p:ModPackage {path: row.pkg})
			 MERGE (n)-[:IN_PACKAGE]->(p)`,
			rows: typeRows(m, e.runID),
		},
		{
			name: "members",
			cypher: `UNWIND $batch AS row
			 MERGE (n:ModMember {full_name: row.full_name})
			 SET n.name = row.name, n.exported = row.exported, n.file = row.file,
			     n.line = row.line, n.run_id = row.run_id
			 WITH n, row
			 MATCH (t:ModType {full_name: row.type})
			 MERGE (t)-[:HAS_MEMBER]->(n)`,
			rows: memberRows(m, e.runID),
		},
		{
			name: "calls",
			cypher: `UNWIND $batch AS row
			 MERGE (caller:ModMember {full_name: row.caller})
			 MERGE (callee:ModMember {full_name: row.callee})
			 MERGE (caller)-[r:CALLS]->(callee)
			 SET r.dynamic = row.dynamic, r.site = row.site, r.run_id = row.run_id`,
			rows: callRows(m, e.runID),
		},
		{
			name: "modules",
			cypher: `UNWIND $batch AS row
			 MERGE (n:Module {id: row.id})
			 SET n.status = row.status, n.members = row.members,
			     n.inbound = row.inbound, n.run_id = row.run_id
			 WITH n, row
			 UNWIND row.namespaces AS ns
			 MATCH (p:ModPackage {path: ns})
			 MERGE (n)-[:OWNS]->(p)`,
			rows: moduleRows(p, r, e.runID),
		},
		{
			name: "violations",
			cypher: `UNWIND $batch AS row
			 MATCH (caller:ModMember {full_name: row.caller}), (callee:ModMember {full_name: row.callee})
			 MERGE (caller)-[v:VIOLATES {module: row.module}]->(callee)
			 SET v.caller_module = row.caller_module, v.site = row.site, v.run_id = row.run_id`,
			rows: violationRows(r, e.runID),
		},
	}

	for _, s := range steps {
		e.logger.Debug("exporting", "step", s.name, "rows", len(s.rows))
		if err := e.runBatches(ctx, s.cypher, s.rows); err != nil {
			return fmt.Errorf("export %s: %w", s.name, err)
		}
	}
	e.logger.Info("graph exported", "run_id", e.runID, "members", len(m.Members()), "violations", r.Stats.Violations)
	return nil
}

func packageRows(m *model.Model, runID string) []map[string]any {
	rows := make([]map[string]any, 0, len(m.Namespaces()))
	for _, ns := range m.Namespaces() {
		parent := ""
		if ns.Parent != nil {
			parent = ns.Parent.Name
		}
		rows = append(rows, map[string]any{
			"path":   ns.Name,
			"parent": parent,
			"run_id": runID,
		})
	}
	return rows
}

func typeRows(m *model.Model, runID string) []map[string]any {
	rows := make([]map[string]any, 0, len(m.Types()))
	for _, t := range m.Types() {
		rows = append(rows, map[string]any{
			"full_name": t.FullName,
			"name":      t.Name,
			"kind":      string(t.Kind),
			"exported":  t.Exported,
			"artifact":  t.Artifact,
			"pkg":       t.Namespace.Name,
			"run_id":    runID,
		})
	}
	return rows
}

func memberRows(m *model.Model, runID string) []map[string]any {
	rows := make([]map[string]any, 0, len(m.Members()))
	for _, mem := range m.Members() {
		rows = append(rows, map[string]any{
			"full_name": mem.FullName,
			"name":      mem.Name,
			"exported":  mem.Exported,
			"file":      mem.File,
			"line":      int64(mem.Line),
			"type":      mem.Type.FullName,
			"run_id":    runID,
		})
	}
	return rows
}

func callRows(m *model.Model, runID string) []map[string]any {
	rows := make([]map[string]any, 0, len(m.Calls()))
	for _, c := range m.Calls() {
		rows = append(rows, map[string]any{
			"caller":  c.Caller,
			"callee":  c.Callee,
			"dynamic": c.Dynamic,
			"site":    c.Site,
			"run_id":  runID,
		})
	}
	return rows
}

func moduleRows(p *partition.Partition, r *report.Report, runID string) []map[string]any {
	status := make(map[partition.ModuleID]string, len(r.Modules))
	inbound := make(map[partition.ModuleID]int, len(r.Modules))
	for _, res := range r.Modules {
		status[res.Module] = string(res.Status)
		inbound[res.Module] = res.Inbound
	}

	rows := make([]map[string]any, 0, len(p.Modules()))
	for _, mod := range p.Modules() {
		rows = append(rows, map[string]any{
			"id":         string(mod.ID),
			"status":     status[mod.ID],
			"members":    int64(len(mod.Members)),
			"inbound":    int64(inbound[mod.ID]),
			"namespaces": mod.Namespaces,
			"run_id":     runID,
		})
	}
	return rows
}

func violationRows(r *report.Report, runID string) []map[string]any {
	vs := r.Violations()
	rows := make([]map[string]any, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, map[string]any{
			"module":        string(v.Module),
			"caller":        v.Caller,
			"callee":        v.Callee,
			"caller_module": report.CallerModule(v),
			"site":          v.Site,
			"run_id":        runID,
		})
	}
	return rows
}
