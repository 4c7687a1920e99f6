package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Source lists the columns and tables of the live database.
type Source interface {
	Columns(ctx context.Context, table string) ([]string, error)
	Tables(ctx context.Context) ([]string, error)
}

// InformationSchemaSource reads information_schema through database/sql.
type InformationSchemaSource struct {
	db     *sql.DB
	schema string
}

func NewInformationSchemaSource(db *sql.DB) *InformationSchemaSource {
	return &InformationSchemaSource{db: db, schema: "public"}
}

func (s *InformationSchemaSource) Columns(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	return s.names(ctx, query, s.schema, table)
}

func (s *InformationSchemaSource) Tables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return s.names(ctx, query, s.schema)
}

func (s *InformationSchemaSource) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan information_schema row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate information_schema rows: %w", err)
	}
	return names, nil
}
