package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one schema migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// ParseMigrationFilename splits NNNN_name.sql into version and name.
func ParseMigrationFilename(filename string) (int, string, bool) {
	m := migrationPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// LoadMigrations reads the embedded migrations sorted by version, with the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders replaced.
func LoadMigrations(projectID, datasetID string) ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations", projectID, datasetID)
}

func loadMigrations(fsys fs.FS, dir, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := ParseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		// Checksum of the file content, before placeholder replacement.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the migrations whose version is not in applied.
func Pending(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}
	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrator applies migrations and records them in schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

// NewMigrator creates a migrator on client.
func NewMigrator(client *bigquery.Client, projectID, datasetID, appliedBy string) *Migrator {
	return &Migrator{client: client, projectID: projectID, datasetID: datasetID, appliedBy: appliedBy}
}

func (m *Migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

// EnsureTable creates schema_migrations if it does not exist.
func (m *Migrator) EnsureTable(ctx context.Context) error {
	q := m.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.table()))
	return runQuery(ctx, q)
}

// Applied lists the migrations already recorded.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.table()))

	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// Apply executes a migration and records it.
func (m *Migrator) Apply(ctx context.Context, migration Migration) error {
	if err := runQuery(ctx, m.client.Query(migration.SQL)); err != nil {
		return fmt.Errorf("executing %s: %w", migration.Filename, err)
	}

	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("recording %s: %w", migration.Filename, err)
	}
	return nil
}
