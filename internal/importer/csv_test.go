package importer_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prismdb/prismdb"
	"github.com/prismdb/prismdb/internal/importer"
	"github.com/prismdb/prismdb/internal/storage"
)

func memConn(t *testing.T) *prismdb.Connection {
	t.Helper()
	conn, err := prismdb.Connect("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestImportCSVInfersTypes(t *testing.T) {
	conn := memConn(t)
	src := strings.NewReader("id,name,score\n1,Alice,9.5\n2,Bob,7.25\n3,null,8\n")

	res, err := importer.ImportCSV(context.Background(), conn, "players", src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsInserted != 3 {
		t.Fatalf("rows = %d", res.RowsInserted)
	}
	wantTypes := []storage.ColType{storage.IntegerType, storage.VarcharType, storage.DoubleType}
	if !reflect.DeepEqual(res.ColumnTypes, wantTypes) {
		t.Fatalf("types = %v, want %v", res.ColumnTypes, wantTypes)
	}

	d, err := conn.ToDict("SELECT * FROM players")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d["players.id"], []any{int64(1), int64(2), int64(3)}) {
		t.Fatalf("ids = %v", d["players.id"])
	}
	if d["players.name"][2] != nil {
		t.Fatalf("null literal not mapped: %v", d["players.name"])
	}
	if d["players.score"][0] != 9.5 {
		t.Fatalf("scores = %v", d["players.score"])
	}
}

func TestImportCSVNoHeader(t *testing.T) {
	conn := memConn(t)
	src := strings.NewReader("1,x\n2,y\n")

	res, err := importer.ImportCSV(context.Background(), conn, "raw", src, &importer.Options{NoHeader: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.ColumnNames, []string{"col_1", "col_2"}) {
		t.Fatalf("cols = %v", res.ColumnNames)
	}
	if res.RowsInserted != 2 {
		t.Fatalf("rows = %d", res.RowsInserted)
	}
}

func TestImportCSVQuoting(t *testing.T) {
	conn := memConn(t)
	src := strings.NewReader("id,note\n1,\"it's, quoted\"\n")

	if _, err := importer.ImportCSV(context.Background(), conn, "notes", src, nil); err != nil {
		t.Fatal(err)
	}
	d, err := conn.ToDict("SELECT note FROM notes")
	if err != nil {
		t.Fatal(err)
	}
	if d["notes.note"][0] != "it's, quoted" {
		t.Fatalf("note = %v", d["notes.note"])
	}
}

func TestImportCSVIntoExistingTable(t *testing.T) {
	conn := memConn(t)
	if _, err := conn.Execute("CREATE TABLE t (n INTEGER, s VARCHAR)"); err != nil {
		t.Fatal(err)
	}
	src := strings.NewReader("n,s\n5,five\n")
	res, err := importer.ImportCSV(context.Background(), conn, "t", src, &importer.Options{SkipCreate: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsInserted != 1 {
		t.Fatalf("rows = %d", res.RowsInserted)
	}
}

func TestImportCSVErrors(t *testing.T) {
	conn := memConn(t)
	if _, err := importer.ImportCSV(context.Background(), conn, "", strings.NewReader("a\n1\n"), nil); !errors.Is(err, prismdb.ErrValue) {
		t.Fatalf("missing table err = %v", err)
	}
	if _, err := importer.ImportCSV(context.Background(), conn, "t", strings.NewReader(""), nil); !errors.Is(err, prismdb.ErrValue) {
		t.Fatalf("empty input err = %v", err)
	}
}
