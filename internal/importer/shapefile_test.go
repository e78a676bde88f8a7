package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	shp "github.com/jonas-p/go-shp"

	"github.com/prismdb/prismdb"
	"github.com/prismdb/prismdb/internal/importer"
	"github.com/prismdb/prismdb/internal/storage"
)

// fixDBFName works around go-shp v0.1.1: its writer creates the DBF
// as base+"dbf" while its reader opens base+".dbf".
func fixDBFName(t *testing.T, shpPath string) {
	t.Helper()
	base := shpPath[:len(shpPath)-len(".shp")]
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		t.Fatal(err)
	}
}

func writeCityFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cities.shp")
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetFields([]shp.Field{
		shp.StringField("NAME", 10),
		shp.NumberField("POP", 10),
	}); err != nil {
		t.Fatal(err)
	}
	cities := []struct {
		x, y float64
		name string
		pop  int
	}{
		{13.4, 52.5, "Berlin", 3600000},
		{2.35, 48.85, "Paris", 2100000},
	}
	for i, c := range cities {
		w.Write(&shp.Point{X: c.x, Y: c.y})
		if err := w.WriteAttribute(i, 0, c.name); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteAttribute(i, 1, c.pop); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()
	fixDBFName(t, path)
	return path
}

func TestImportShapefilePoints(t *testing.T) {
	conn := memConn(t)
	path := writeCityFixture(t, t.TempDir())

	res, err := importer.ImportShapefile(context.Background(), conn, "cities", path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.RowsInserted != 2 {
		t.Fatalf("rows = %d", res.RowsInserted)
	}
	if !reflect.DeepEqual(res.ColumnNames, []string{"NAME", "POP", "geom"}) {
		t.Fatalf("cols = %v", res.ColumnNames)
	}
	wantTypes := []storage.ColType{storage.VarcharType, storage.IntegerType, storage.VarcharType}
	if !reflect.DeepEqual(res.ColumnTypes, wantTypes) {
		t.Fatalf("types = %v, want %v", res.ColumnTypes, wantTypes)
	}

	d, err := conn.ToDict("SELECT * FROM cities")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d["cities.NAME"], []any{"Berlin", "Paris"}) {
		t.Fatalf("names = %v", d["cities.NAME"])
	}
	if !reflect.DeepEqual(d["cities.POP"], []any{int64(3600000), int64(2100000)}) {
		t.Fatalf("pops = %v", d["cities.POP"])
	}
	wantGeom := []any{"POINT (13.4 52.5)", "POINT (2.35 48.85)"}
	if !reflect.DeepEqual(d["cities.geom"], wantGeom) {
		t.Fatalf("geom = %v, want %v", d["cities.geom"], wantGeom)
	}
}

func TestImportShapefilePolyline(t *testing.T) {
	conn := memConn(t)
	path := filepath.Join(t.TempDir(), "roads.shp")

	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetFields([]shp.Field{shp.StringField("ROAD", 8)}); err != nil {
		t.Fatal(err)
	}
	line := shp.NewPolyLine([][]shp.Point{{
		{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0},
	}})
	w.Write(line)
	if err := w.WriteAttribute(0, 0, "A1"); err != nil {
		t.Fatal(err)
	}
	w.Close()
	fixDBFName(t, path)

	if _, err := importer.ImportShapefile(context.Background(), conn, "roads", path, nil); err != nil {
		t.Fatal(err)
	}
	d, err := conn.ToDict("SELECT ROAD, geom FROM roads")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d["roads.ROAD"], []any{"A1"}) {
		t.Fatalf("road = %v", d["roads.ROAD"])
	}
	if !reflect.DeepEqual(d["roads.geom"], []any{"LINESTRING (0 0, 1 1, 2 0)"}) {
		t.Fatalf("geom = %v", d["roads.geom"])
	}
}

func TestImportShapefileEmpty(t *testing.T) {
	conn := memConn(t)
	path := filepath.Join(t.TempDir(), "empty.shp")

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetFields([]shp.Field{shp.StringField("NAME", 10)}); err != nil {
		t.Fatal(err)
	}
	w.Close()
	fixDBFName(t, path)

	if _, err := importer.ImportShapefile(context.Background(), conn, "empty", path, nil); !errors.Is(err, prismdb.ErrValue) {
		t.Fatalf("err = %v, want value error", err)
	}
}
