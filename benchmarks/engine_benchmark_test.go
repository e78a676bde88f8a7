// Comparative benchmarks: prismdb (in-memory and file-backed)
// against SQLite via the pure-Go modernc driver, on the same
// insert/scan/aggregate workloads.
package benchmarks

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/prismdb/prismdb"

	_ "modernc.org/sqlite"
)

type engineOps struct {
	insert func(b *testing.B, n int)
	scan   func(b *testing.B) int
	sum    func(b *testing.B) float64
	close  func()
}

type engineEntry struct {
	name string
	open func(b *testing.B) engineOps
}

func engines() []engineEntry {
	return []engineEntry{
		{"prismdb-Memory", func(b *testing.B) engineOps { return openPrism(b, "") }},
		{"prismdb-File", func(b *testing.B) engineOps {
			return openPrism(b, filepath.Join(b.TempDir(), "bench.db"))
		}},
		{"SQLite-modernc", openSQLite},
	}
}

func openPrism(b *testing.B, path string) engineOps {
	b.Helper()
	cfg := prismdb.Config{Path: path}
	conn, err := prismdb.ConnectConfig(cfg)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := conn.Execute("CREATE TABLE bench (id INTEGER, name VARCHAR, score DOUBLE)"); err != nil {
		b.Fatal(err)
	}
	return engineOps{
		insert: func(b *testing.B, n int) {
			for i := 0; i < n; i++ {
				sql := fmt.Sprintf("INSERT INTO bench VALUES (%d, 'user_%d', %f)", i, i, float64(i)*1.1)
				if _, err := conn.Execute(sql); err != nil {
					b.Fatal(err)
				}
			}
		},
		scan: func(b *testing.B) int {
			rs, err := conn.Execute("SELECT * FROM bench")
			if err != nil {
				b.Fatal(err)
			}
			return rs.Len()
		},
		sum: func(b *testing.B) float64 {
			rs, err := conn.Execute("SELECT SUM(score) FROM bench")
			if err != nil {
				b.Fatal(err)
			}
			row, _ := rs.Next()
			f, _ := row[0].AsDouble()
			return f
		},
		close: func() { conn.Close() },
	}
}

func openSQLite(b *testing.B) engineOps {
	b.Helper()
	db, err := sql.Open("sqlite", filepath.Join(b.TempDir(), "bench.sqlite"))
	if err != nil {
		b.Fatal(err)
	}
	if _, err := db.Exec("CREATE TABLE bench (id INTEGER, name TEXT, score REAL)"); err != nil {
		b.Fatal(err)
	}
	return engineOps{
		insert: func(b *testing.B, n int) {
			for i := 0; i < n; i++ {
				if _, err := db.Exec("INSERT INTO bench VALUES (?, ?, ?)", i, fmt.Sprintf("user_%d", i), float64(i)*1.1); err != nil {
					b.Fatal(err)
				}
			}
		},
		scan: func(b *testing.B) int {
			rows, err := db.Query("SELECT * FROM bench")
			if err != nil {
				b.Fatal(err)
			}
			defer rows.Close()
			n := 0
			for rows.Next() {
				n++
			}
			return n
		},
		sum: func(b *testing.B) float64 {
			var f sql.NullFloat64
			if err := db.QueryRow("SELECT SUM(score) FROM bench").Scan(&f); err != nil {
				b.Fatal(err)
			}
			return f.Float64
		},
		close: func() { db.Close() },
	}
}

const benchRows = 1000

func BenchmarkInsert(b *testing.B) {
	for _, e := range engines() {
		b.Run(e.name, func(b *testing.B) {
			ops := e.open(b)
			defer ops.close()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ops.insert(b, benchRows)
			}
		})
	}
}

func BenchmarkScan(b *testing.B) {
	for _, e := range engines() {
		b.Run(e.name, func(b *testing.B) {
			ops := e.open(b)
			ops.insert(b, benchRows)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if n := ops.scan(b); n < benchRows {
					b.Fatalf("scan returned %d rows", n)
				}
			}
		})
	}
}

func BenchmarkAggregate(b *testing.B) {
	for _, e := range engines() {
		b.Run(e.name, func(b *testing.B) {
			ops := e.open(b)
			ops.insert(b, benchRows)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if s := ops.sum(b); s <= 0 {
					b.Fatalf("sum = %f", s)
				}
			}
		})
	}
}
