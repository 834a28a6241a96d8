// Package db adapts a read-only Postgres connection into a
// query-orchestrator provider: a single "query" tool that runs a SELECT and
// returns rows as tab-separated text.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Queryer is the subset of *sql.DB this provider calls. Narrowed to allow a
// test double (e.g. sqlmock) in place of a real connection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var _ Queryer = (*sql.DB)(nil)

const (
	maxQueryRows      = 500
	queryTimeout      = 30 * time.Second
	defaultMaxOpen    = 5
	defaultMaxIdle    = 2
	defaultConnMaxAge = 10 * time.Minute
)

var tools = []models.ToolDescriptor{
	{
		Name:        "query",
		Description: "Run a read-only SQL SELECT against the connected database",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"sql"},
			"properties": map[string]any{
				"sql": map[string]any{"type": "string"},
			},
		},
	},
}

// Connector is the Postgres ProviderConnector. newDB lets tests substitute a
// sqlmock-backed Queryer without a real DSN.
type Connector struct {
	newDB func(dsn string) (Queryer, func() error, error)
}

// New builds a Postgres connector using database/sql with the lib/pq driver.
func New() *Connector {
	return &Connector{newDB: openPostgres}
}

func openPostgres(dsn string) (Queryer, func() error, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpen)
	db.SetMaxIdleConns(defaultMaxIdle)
	db.SetConnMaxLifetime(defaultConnMaxAge)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return db, db.Close, nil
}

var _ gateway.ProviderConnector = (*Connector)(nil)

// ProviderID identifies this connector.
func (c *Connector) ProviderID() string { return "db" }

// Connect opens a connection using credentials["dsn"] and returns a session
// bound to it.
func (c *Connector) Connect(ctx context.Context, principalID string, credentials map[string]string) (gateway.Session, error) {
	dsn := credentials["dsn"]
	if dsn == "" {
		return nil, orcherrors.New(orcherrors.MissingCredentials, "db: missing dsn credential")
	}
	conn, closer, err := c.newDB(dsn)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ConnectorUnreachable, "db: connect failed", err)
	}
	return &session{conn: conn, closer: closer}, nil
}

type session struct {
	conn   Queryer
	closer func() error
}

func (s *session) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	return tools, nil
}

func (s *session) CallTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case "query":
		return s.query(ctx, args)
	default:
		return nil, orcherrors.New(orcherrors.ValidationError, "db: unknown tool "+tool)
	}
}

func isReadOnlySelect(query string) bool {
	trimmed := strings.TrimSpace(query)
	trimmed = strings.TrimPrefix(trimmed, "(")
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

func (s *session) query(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["sql"].(string)
	if query == "" {
		return nil, orcherrors.New(orcherrors.ValidationError, "db: query requires sql")
	}
	if !isReadOnlySelect(query) {
		return nil, orcherrors.New(orcherrors.ValidationError, "db: only SELECT/WITH statements are allowed")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.DatabaseError, "db: query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.DatabaseError, "db: reading columns failed", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))

	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if count >= maxQueryRows {
			b.WriteString("\n... truncated at ")
			b.WriteString(fmt.Sprintf("%d", maxQueryRows))
			b.WriteString(" rows")
			break
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, orcherrors.Wrap(orcherrors.DatabaseError, "db: scanning row failed", err)
		}
		b.WriteByte('\n')
		for i, v := range values {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(formatCell(v))
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, orcherrors.Wrap(orcherrors.DatabaseError, "db: iterating rows failed", err)
	}
	if count == 0 {
		return "query returned no rows", nil
	}
	return b.String(), nil
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func (s *session) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
