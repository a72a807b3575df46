package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCollectsChainAndPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23514",
		ConstraintName: "products_stock_check",
		TableName:      "products",
		Message:        "new row violates check constraint",
	}
	err := Wrap(CodeInternal, fmt.Errorf("decrement stock: %w", pgErr), "place order")

	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", dump.Code)
	}
	if !dump.Retryable {
		t.Fatalf("internal errors are retryable")
	}
	if dump.PGCode != "23514" || dump.PGConstraint != "products_stock_check" || dump.PGTable != "products" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(dump.Chain), dump.Chain)
	}
}

func TestDumpNil(t *testing.T) {
	if dump := Dump(nil); dump.TopMessage != "" || len(dump.Chain) != 0 {
		t.Fatalf("expected empty dump, got %+v", dump)
	}
}

func TestDumpPlainError(t *testing.T) {
	dump := Dump(stdErrors.New("redis down"))
	if dump.Code != "" || dump.TopMessage != "redis down" {
		t.Fatalf("unexpected dump %+v", dump)
	}
}
