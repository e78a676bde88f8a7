// Command prismdb is a line-oriented shell for prismdb databases.
//
// Statements end with ';' and may span lines. Meta commands start
// with '.': .tables, .import (CSV), .importshp (shapefile),
// .checkpoint, .help, .quit.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/prismdb/prismdb"
	"github.com/prismdb/prismdb/internal/importer"
)

var (
	flagPath = flag.String("db", "", "database file (empty for in-memory)")
	flagEcho = flag.Bool("echo", false, "echo statements before execution")
)

func main() {
	flag.Parse()

	conn, err := prismdb.Connect(*flagPath)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer conn.Close()

	runREPL(conn, *flagEcho)
}

func runREPL(conn *prismdb.Connection, echo bool) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 4*1024*1024)

	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}
	if interactive {
		fmt.Println("prismdb shell. End statements with ';'. '.help' for help.")
	}

	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("sql> ")
			} else {
				fmt.Print(" ... ")
			}
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				fmt.Fprintln(os.Stderr, "read error:", err)
			}
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if handleMeta(conn, line) {
				continue
			}
			return
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		if !strings.HasSuffix(line, ";") {
			continue
		}
		q := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(buf.String()), ";"))
		buf.Reset()
		if q == "" {
			continue
		}
		if echo {
			fmt.Println("--", q)
		}

		rs, err := conn.Execute(q)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			continue
		}
		printResult(rs)
	}
}

// handleMeta runs a dot command. It returns false only for .quit.
func handleMeta(conn *prismdb.Connection, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return false
	case ".help":
		fmt.Println(".tables              list tables")
		fmt.Println(".import FILE TABLE   import a CSV file")
		fmt.Println(".importshp FILE TBL  import a shapefile")
		fmt.Println(".checkpoint          snapshot and reset the WAL")
		fmt.Println(".quit                exit")
	case ".checkpoint":
		if err := conn.Checkpoint(); err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
		}
	case ".import":
		if len(fields) != 3 {
			fmt.Fprintln(os.Stderr, "usage: .import FILE TABLE")
			break
		}
		f, err := os.Open(fields[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			break
		}
		res, err := importer.ImportCSV(context.Background(), conn, fields[2], f, nil)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			break
		}
		fmt.Printf("imported %d rows into %s\n", res.RowsInserted, fields[2])
	case ".importshp":
		if len(fields) != 3 {
			fmt.Fprintln(os.Stderr, "usage: .importshp FILE TABLE")
			break
		}
		res, err := importer.ImportShapefile(context.Background(), conn, fields[2], fields[1], nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			break
		}
		fmt.Printf("imported %d rows into %s\n", res.RowsInserted, fields[2])
	case ".tables":
		printTables(conn)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", fields[0])
	}
	return true
}

func printTables(conn *prismdb.Connection) {
	names, err := conn.Tables()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func printResult(rs *prismdb.ResultSet) {
	if len(rs.Cols) == 0 {
		fmt.Println("OK")
		return
	}
	fmt.Println(strings.Join(rs.Cols, " | "))
	n := 0
	for {
		row, ok := rs.Next()
		if !ok {
			break
		}
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = v.String()
		}
		fmt.Println(strings.Join(parts, " | "))
		n++
	}
	fmt.Printf("(%d rows)\n", n)
}
