package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"github.com/prismdb/prismdb/internal/errs"
	"github.com/prismdb/prismdb/internal/storage"
)

// ImportShapefile loads a .shp file (and its DBF attributes) into a
// table. Each record becomes one row: the DBF fields with inferred
// types plus a geom VARCHAR column holding the geometry in WKT form.
func ImportShapefile(ctx context.Context, run SQLRunner, tableName, filePath string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.TableName != "" {
		tableName = opts.TableName
	}
	if tableName == "" {
		return nil, errs.New(errs.Value, "table name is required")
	}

	r, err := shp.Open(filePath)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open shapefile", err)
	}
	defer r.Close()

	fields := r.Fields()
	names := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		names = append(names, strings.TrimRight(f.String(), "\x00"))
	}
	names = append(names, "geom")

	var records [][]string
	var geoms []string
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx, shape := r.Shape()
		rec := make([]string, len(fields))
		for fi := range fields {
			// DBF slots are fixed width; writers pad with spaces or NULs
			rec[fi] = strings.TrimRight(r.ReadAttribute(idx, fi), "\x00 ")
		}
		records = append(records, rec)
		geoms = append(geoms, wkt(shape))
	}
	if len(records) == 0 {
		return nil, errs.Newf(errs.Value, "no records in shapefile %s", filePath)
	}

	nulls := opts.NullLiterals
	if len(nulls) == 0 {
		nulls = []string{"", "null"}
	}
	types := inferTypes(records, len(fields), nulls)
	types = append(types, storage.VarcharType)

	res := &Result{ColumnNames: names, ColumnTypes: types}

	if !opts.SkipCreate {
		if _, err := run.ExecuteContext(ctx, createTableSQL(tableName, names, types)); err != nil {
			return nil, err
		}
	}
	for i, rec := range records {
		row := append(append([]string{}, rec...), geoms[i])
		sql, err := insertSQL(tableName, row, types, nulls)
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

// wkt renders the shapes prismdb understands. Unknown shapes render
// as their bounding box polygon.
func wkt(shape shp.Shape) string {
	switch s := shape.(type) {
	case *shp.Point:
		return fmt.Sprintf("POINT (%s %s)", fnum(s.X), fnum(s.Y))
	case *shp.PolyLine:
		return "LINESTRING (" + joinPoints(s.Points) + ")"
	case *shp.Polygon:
		return "POLYGON ((" + joinPoints(s.Points) + "))"
	}
	box := shape.BBox()
	return fmt.Sprintf("POLYGON ((%s %s, %s %s, %s %s, %s %s, %s %s))",
		fnum(box.MinX), fnum(box.MinY),
		fnum(box.MaxX), fnum(box.MinY),
		fnum(box.MaxX), fnum(box.MaxY),
		fnum(box.MinX), fnum(box.MaxY),
		fnum(box.MinX), fnum(box.MinY))
}

func joinPoints(pts []shp.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fnum(p.X) + " " + fnum(p.Y)
	}
	return strings.Join(parts, ", ")
}

func fnum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
