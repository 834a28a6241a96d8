package db

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestConnector(conn Queryer) *Connector {
	return &Connector{newDB: func(dsn string) (Queryer, func() error, error) { return conn, func() error { return nil }, nil }}
}

func TestConnect_MissingDSNIsMissingCredentials(t *testing.T) {
	c := New()
	_, err := c.Connect(context.Background(), "alice", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "dsn") {
		t.Fatalf("Connect error = %v, want a dsn complaint", err)
	}
}

func TestQuery_ReturnsRowsAsTabSeparatedText(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow("1", "alice").
		AddRow("2", "bob")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)

	c := newTestConnector(mockDB)
	sess, err := c.Connect(context.Background(), "alice", map[string]string{"dsn": "postgres://test"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	out, err := sess.CallTool(context.Background(), "query", map[string]any{"sql": "SELECT id, name FROM users"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	text := out.(string)
	if !strings.Contains(text, "alice") || !strings.Contains(text, "bob") {
		t.Errorf("result = %q, want both rows", text)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQuery_RejectsNonSelectStatements(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer mockDB.Close()

	c := newTestConnector(mockDB)
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"dsn": "postgres://test"})
	_, err = sess.CallTool(context.Background(), "query", map[string]any{"sql": "DELETE FROM users"})
	if err == nil || !strings.Contains(err.Error(), "SELECT") {
		t.Fatalf("err = %v, want a rejection of non-SELECT statements", err)
	}
}

func TestQuery_MissingSQLIsValidationError(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer mockDB.Close()

	c := newTestConnector(mockDB)
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"dsn": "postgres://test"})
	_, err = sess.CallTool(context.Background(), "query", map[string]any{})
	if err == nil {
		t.Fatal("expected a validation error for a missing sql argument")
	}
}

func TestQuery_WrapsDatabaseError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)

	c := newTestConnector(mockDB)
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"dsn": "postgres://test"})
	_, err = sess.CallTool(context.Background(), "query", map[string]any{"sql": "SELECT 1"})
	if err == nil || !strings.Contains(err.Error(), "query failed") {
		t.Fatalf("err = %v, want a wrapped query failure", err)
	}
}

func TestCallTool_UnknownToolIsValidationError(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer mockDB.Close()

	c := newTestConnector(mockDB)
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"dsn": "postgres://test"})
	_, err = sess.CallTool(context.Background(), "drop_database", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}
