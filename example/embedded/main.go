// Example: Using sqlrun as an Embedded Library
//
// This example demonstrates how to drive the statement runner directly in
// your application without starting an HTTP server. This is useful for unit
// tests and in-process scripting.
//
// Run this example:
//
//	go run ./example/embedded
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/sqlrun/sqlrun/pkg/command"
	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/delimiter"
	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/history"
	"github.com/sqlrun/sqlrun/pkg/runner"
	"github.com/sqlrun/sqlrun/pkg/script"
	"github.com/sqlrun/sqlrun/pkg/variables"
)

const demoScript = `
create table person (id integer, name varchar);
insert into person values (1, 'Arthur'), (2, 'Ford');
select * from person where id = ${id};
`

func main() {
	fmt.Println("=== sqlrun Embedded Example ===")

	// Create an in-memory DuckDB instance
	db, err := sql.Open("duckdb", "")
	if err != nil {
		log.Fatalf("Failed to open DuckDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	conn, err := connection.New(ctx, db, "example", dialect.ForVendor("duckdb"))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	// Seed the variable pool used for ${...} substitution
	pool := variables.NewPool()
	pool.Set("id", "1")

	hist := history.New(20)
	mapper, err := command.DefaultMapper(pool, hist)
	if err != nil {
		log.Fatalf("Failed to build command mapper: %v", err)
	}

	exec := runner.New(slog.New(slog.NewTextHandler(os.Stderr, nil)), mapper, pool, hist)
	exec.SetConnection(conn)

	statements := script.NewParser(delimiter.Parse(";")).Split(demoScript)
	for _, stmt := range statements {
		res, err := exec.Run(ctx, stmt)
		if err != nil {
			log.Fatalf("Failed to execute %q: %v", stmt, err)
		}
		if res.Err != nil {
			log.Fatalf("Statement failed: %v", res.Err)
		}
		for _, msg := range res.Messages {
			fmt.Println(msg)
		}
		for _, ds := range res.DataSets {
			fmt.Println(ds.Columns)
			for _, row := range ds.Rows {
				fmt.Println(row)
			}
		}
	}

	if err := exec.Finish(ctx); err != nil {
		log.Fatalf("Failed to finish: %v", err)
	}
	fmt.Println("Done.")
}
