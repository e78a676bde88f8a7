// Package importer loads external files into prismdb tables.
//
// Data arrives through the same SQL path as user statements, so every
// imported row is WAL-logged and type-checked exactly like a manual
// INSERT. CSV columns get their types inferred from the data; a value
// that fits no narrower type stays VARCHAR.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/prismdb/prismdb/internal/engine"
	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// SQLRunner is the execution surface the importer needs.
// *prismdb.Connection satisfies it.
type SQLRunner interface {
	ExecuteContext(ctx context.Context, sql string) (*engine.ResultSet, error)
}

// Options configures an import. The zero value means: first row is a
// header, comma-delimited, create the table, treat "" and "null" as
// NULL.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// NoHeader treats the first row as data; columns are named
	// col_1, col_2, ...
	NoHeader bool

	// SkipCreate assumes the table already exists with compatible
	// columns.
	SkipCreate bool

	// NullLiterals are matched case-insensitively after trimming.
	// Empty means {"", "null"}.
	NullLiterals []string

	// TableName overrides the target table name.
	TableName string
}

// Result describes a finished import.
type Result struct {
	RowsInserted int
	ColumnNames  []string
	ColumnTypes  []storage.ColType
}

// ImportCSV reads delimited data from src into a table, inferring
// column types from the full data set before the first insert.
func ImportCSV(ctx context.Context, run SQLRunner, tableName string, src io.Reader, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.TableName != "" {
		tableName = opts.TableName
	}
	if tableName == "" {
		return nil, errs.New(errs.Value, "table name is required")
	}

	r := csv.NewReader(src)
	if opts.Comma != 0 {
		r.Comma = opts.Comma
	}
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read csv", err)
	}
	if len(records) == 0 {
		return nil, errs.New(errs.Value, "empty input")
	}

	var header []string
	if opts.NoHeader {
		header = make([]string, len(records[0]))
		for i := range header {
			header[i] = fmt.Sprintf("col_%d", i+1)
		}
	} else {
		header = append(header, records[0]...)
		header[0] = stripBOM(header[0])
		records = records[1:]
	}

	nulls := opts.NullLiterals
	if len(nulls) == 0 {
		nulls = []string{"", "null"}
	}

	types := inferTypes(records, len(header), nulls)

	res := &Result{ColumnNames: header, ColumnTypes: types}

	if !opts.SkipCreate {
		if _, err := run.ExecuteContext(ctx, createTableSQL(tableName, header, types)); err != nil {
			return nil, err
		}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(rec) != len(header) {
			return res, errs.Newf(errs.Value, "row %d has %d fields, expected %d", res.RowsInserted+1, len(rec), len(header))
		}
		sql, err := insertSQL(tableName, rec, types, nulls)
		if err != nil {
			return res, err
		}
		if _, err := run.ExecuteContext(ctx, sql); err != nil {
			return res, err
		}
		res.RowsInserted++
	}
	return res, nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

func isNullLiteral(s string, nulls []string) bool {
	t := strings.TrimSpace(s)
	for _, n := range nulls {
		if strings.EqualFold(t, n) {
			return true
		}
	}
	return false
}

// inferTypes picks the narrowest type every non-NULL value of a
// column fits: INTEGER, then DOUBLE, then VARCHAR. A column with only
// NULLs stays VARCHAR.
func inferTypes(records [][]string, ncols int, nulls []string) []storage.ColType {
	types := make([]storage.ColType, ncols)
	decided := make([]bool, ncols)
	for i := range types {
		types[i] = storage.IntegerType
	}
	for _, rec := range records {
		for i := 0; i < ncols && i < len(rec); i++ {
			v := strings.TrimSpace(rec[i])
			if isNullLiteral(v, nulls) {
				continue
			}
			decided[i] = true
			switch types[i] {
			case storage.IntegerType:
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					continue
				}
				if _, err := strconv.ParseFloat(v, 64); err == nil {
					types[i] = storage.DoubleType
					continue
				}
				types[i] = storage.VarcharType
			case storage.DoubleType:
				if _, err := strconv.ParseFloat(v, 64); err == nil {
					continue
				}
				types[i] = storage.VarcharType
			}
		}
	}
	for i := range types {
		if !decided[i] {
			types[i] = storage.VarcharType
		}
	}
	return types
}

func createTableSQL(table string, cols []string, types []storage.ColType) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		b.WriteByte(' ')
		b.WriteString(types[i].String())
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(table string, rec []string, types []storage.ColType, nulls []string) (string, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" VALUES (")
	for i, raw := range rec {
		if i > 0 {
			b.WriteString(", ")
		}
		v := strings.TrimSpace(raw)
		if isNullLiteral(v, nulls) {
			b.WriteString("NULL")
			continue
		}
		switch types[i] {
		case storage.IntegerType, storage.DoubleType:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return "", errs.Newf(errs.TypeMismatch, "value %q does not fit %s", v, types[i])
			}
			b.WriteString(v)
		default:
			b.WriteString(quoteSQL(raw))
		}
	}
	b.WriteString(")")
	return b.String(), nil
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
