package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump is the structured form of an error written to logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	SQLiteCode string `json:"sqlite_code,omitempty"`
}

// SQLSTATE classes the storefront reacts to.
const (
	sqlStateUniqueViolation = "23505"
	sqlStateCheckViolation  = "23514"
	sqlStateSerialization   = "40001"
	sqlStateDeadlock        = "40P01"
)

// checkMessages turns known CHECK constraints into customer-facing text.
var checkMessages = map[string]string{
	"chk_products_stock":      "insufficient stock",
	"chk_discounts_usage":     "discount usage limit reached",
	"chk_cart_items_quantity": "quantity must be at least 1",
}

// dbFailure is the driver-neutral view of a database error.
type dbFailure struct {
	state      string
	constraint string
	table      string
	column     string
	detail     string
	message    string
	sqlite     string
}

func inspectDB(err error) (dbFailure, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return dbFailure{
			state:      pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			detail:     pgxErr.Detail,
			message:    pgxErr.Message,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return dbFailure{
			state:      string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			column:     pqErr.Column,
			detail:     pqErr.Detail,
			message:    pqErr.Message,
		}, true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		f := dbFailure{
			sqlite:  fmt.Sprintf("%d/%d", int(liteErr.Code), int(liteErr.ExtendedCode)),
			message: liteErr.Error(),
		}
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			f.state = sqlStateUniqueViolation
		case sqlite3.ErrConstraintCheck:
			f.state = sqlStateCheckViolation
			// sqlite reports "CHECK constraint failed: <name>".
			if _, name, ok := strings.Cut(liteErr.Error(), "CHECK constraint failed: "); ok {
				f.constraint = strings.TrimSpace(name)
			}
		}
		return f, true
	}
	return dbFailure{}, false
}

func fromDB(err error) *Error {
	f, ok := inspectDB(err)
	if !ok {
		return nil
	}
	switch f.state {
	case sqlStateUniqueViolation:
		return Wrap(CodeConflict, err, "record already exists")
	case sqlStateCheckViolation:
		if msg, known := checkMessages[f.constraint]; known {
			return Wrap(CodeBusinessRule, err, msg)
		}
		return Wrap(CodeBusinessRule, err, "request violates a data constraint")
	case sqlStateSerialization, sqlStateDeadlock:
		return Wrap(CodeDependency, err, "concurrent update, please retry")
	}
	return nil
}

// Dump flattens err for structured logging.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if f, ok := inspectDB(err); ok {
		if f.sqlite != "" {
			d.SQLiteCode = f.sqlite
		} else {
			d.PGCode = f.state
			d.PGConstraint = f.constraint
			d.PGTable = f.table
			d.PGColumn = f.column
			d.PGDetail = f.detail
			d.PGMessage = f.message
		}
	}
	return d
}
