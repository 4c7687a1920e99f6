package schema

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInformationSchemaSource_Columns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name FROM information_schema.columns")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("id").
			AddRow("email").
			AddRow("username"))

	cols, err := NewInformationSchemaSource(db).Columns(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email", "username"}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInformationSchemaSource_UnknownTableIsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

	cols, err := NewInformationSchemaSource(db).Columns(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, cols)
	assert.NotNil(t, cols)
}

func TestInformationSchemaSource_Tables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables")).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("countries").
			AddRow("users"))

	tables, err := NewInformationSchemaSource(db).Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"countries", "users"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInformationSchemaSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WillReturnError(errors.New("connection reset"))

	_, err = NewInformationSchemaSource(db).Tables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
