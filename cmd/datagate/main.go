package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/shrek82/datagate"
	"github.com/shrek82/datagate/config"
	"github.com/shrek82/datagate/core"
	"github.com/shrek82/datagate/crypt"
)

var (
	configPath = flag.String("config", "datagate.yaml", "path to the YAML configuration")
	op         = flag.String("op", "select", "operation: select, insert or update")
	table      = flag.String("table", "", "table name")
	columns    = flag.String("columns", "", "comma separated select columns, empty for all")
	where      = flag.String("where", "", "predicate as k=v pairs separated by commas")
	set        = flag.String("set", "", "values to write as k=v pairs separated by commas")
	encrypt    = flag.String("encrypt", "", "comma separated encrypted columns")
	extra      = flag.String("extra", "", "clause appended to a select, e.g. \"ORDER BY id LIMIT 10\"")
	dryRun     = flag.Bool("dry-run", false, "print the statement with its arguments inlined instead of running it")
	timeout    = flag.Duration("timeout", 10*time.Second, "bound on waiting for a connection")
)

// openDB is swapped in tests.
var openDB = datagate.Open

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	flag.Parse()
	os.Exit(run(os.Stdout))
}

// run executes the request described by the flags and returns the exit code.
// The database is closed before it returns.
func run(w io.Writer) int {
	if *table == "" {
		fmt.Fprintln(w, "usage: datagate -config <file> -op select|insert|update -table <name> [options]")
		flag.PrintDefaults()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("loading config: %v", err)
		return 1
	}

	req, err := parseRequest(*op, *table, *columns, *where, *set, *encrypt, *extra)
	if err != nil {
		log.Printf("invalid arguments: %v", err)
		return 2
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Printf("opening database: %v", err)
		return 1
	}
	defer db.Close()

	if *dryRun {
		stmt, err := req.render(db.Builder())
		if err != nil {
			log.Printf("building statement: %v", err)
			return 1
		}
		fmt.Fprintln(w, stmt)
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res := req.run(ctx, db)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Printf("encoding result: %v", err)
		return 1
	}
	fmt.Fprintln(w, string(out))
	if !res.Success {
		return 1
	}
	return 0
}

func (r *request) run(ctx context.Context, db *core.DB) *core.Result {
	switch r.op {
	case "insert":
		return db.Insert(ctx, r.table, r.set, r.encrypted...)
	case "update":
		return db.Update(ctx, r.table, r.set, r.where, r.encrypted...)
	}
	return db.Select(ctx, r.table, r.columns, r.where, r.selectOptions())
}

func (r *request) render(b *core.Builder) (string, error) {
	var (
		sql  string
		args []any
		err  error
	)
	switch r.op {
	case "insert":
		sql, args, _, err = b.BuildInsert(r.table, r.set, crypt.Columns(r.encrypted...))
	case "update":
		sql, args, err = b.BuildUpdate(r.table, r.where, r.set, crypt.Columns(r.encrypted...))
	default:
		sql, args, err = b.BuildSelect(r.table, r.columns, r.where, r.selectOptions())
	}
	if err != nil {
		return "", err
	}
	return core.Interpolate(b.Dialect(), sql, args), nil
}
