package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCheckReportsMissingTablesAndColumns(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery("FROM information_schema.tables").WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("users", "email").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("email"))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("users", "role").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("projects").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	got, ok, err := Check(context.Background(), conn, []Expectation{
		{Table: "users", Columns: []string{"email", "role"}},
		{Table: "projects", Columns: []string{"name"}},
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatalf("expected gaps to be reported")
	}
	if len(got) != 2 || !got[0].Exists || len(got[0].MissingColumns) != 1 || got[0].MissingColumns[0] != "role" {
		t.Fatalf("unexpected users status: %+v", got)
	}
	if got[1].Exists || got[1].MissingColumns != nil {
		t.Fatalf("unexpected projects status: %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCheckAbortsOnQueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer conn.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM information_schema.tables").WillReturnError(boom)

	if _, _, err := Check(context.Background(), conn, []Expectation{{Table: "users"}}); !errors.Is(err, boom) {
		t.Fatalf("expected query error, got %v", err)
	}
}
