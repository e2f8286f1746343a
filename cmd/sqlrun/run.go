package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sqlrun/sqlrun/pkg/command"
	"github.com/sqlrun/sqlrun/pkg/connection"
	"github.com/sqlrun/sqlrun/pkg/delimiter"
	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/pkg/history"
	"github.com/sqlrun/sqlrun/pkg/runner"
	"github.com/sqlrun/sqlrun/pkg/script"
	"github.com/sqlrun/sqlrun/pkg/variables"
)

const historyCapacity = 100

var (
	delimText   string
	scriptVars  []string
	maxRows     int
	readOnly    bool
	noConfirm   bool
	stopOnError bool
	verbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run [script file]",
	Short: "Execute a SQL script file ('-' reads from stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	runCmd.Flags().StringVarP(&delimText, "delimiter", "d", ";", "statement delimiter (e.g. ';', 'go', '/;nl')")
	runCmd.Flags().StringArrayVar(&scriptVars, "var", nil, "script variable as name=value (repeatable)")
	runCmd.Flags().IntVar(&maxRows, "max-rows", 0, "cap the number of rows fetched per query (0 = unlimited)")
	runCmd.Flags().BoolVar(&readOnly, "read-only", false, "skip statements that would modify data")
	runCmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "never prompt for confirmation or variable values")
	runCmd.Flags().BoolVar(&stopOnError, "stop-on-error", true, "abort the script on the first failed statement")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every executed statement with its timing")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	source, err := readScript(args[0])
	if err != nil {
		return err
	}

	statements := script.NewParser(delimiter.Parse(delimText)).Split(source)
	if len(statements) == 0 {
		return fmt.Errorf("script contains no statements")
	}

	driver := connectionSetting("driver")
	dsn := connectionSetting("dsn")
	if dsn == "" && driver == "duckdb" {
		dsn = ":memory:"
	}
	vendor := connectionSetting("vendor")
	if vendor == "" {
		vendor = driver
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	conn, err := connection.New(ctx, db, "cli", dialect.ForVendor(vendor))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()
	conn.SetMaxRows(maxRows)
	conn.SetReadOnly(readOnly)

	pool := variables.NewPool()
	for _, def := range scriptVars {
		name, value, ok := strings.Cut(def, "=")
		if !ok {
			return fmt.Errorf("invalid variable definition %q, want name=value", def)
		}
		pool.Set(name, value)
	}

	hist := history.New(historyCapacity)
	loadHistory(hist)

	mapper, err := command.DefaultMapper(pool, hist)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	exec := runner.New(logger, mapper, pool, hist)
	exec.SetConnection(conn)
	exec.SetMode(command.ModeInteractive)
	if verbose {
		exec.SetVerboseLogging(os.Stderr)
	}
	if !noConfirm {
		exec.SetController(&ptermController{})
		exec.EnableVariablePrompting(true)
	}

	failed := false
	for _, stmt := range statements {
		res, err := exec.Run(ctx, stmt)
		if err != nil {
			return err
		}
		printResult(res)
		if res.Cancelled {
			break
		}
		if res.Err != nil {
			failed = true
			if stopOnError {
				break
			}
		}
	}

	if err := exec.Finish(ctx); err != nil {
		pterm.Warning.Printfln("failed to end transaction: %v", err)
	}
	saveHistory(hist)

	if failed {
		return fmt.Errorf("script finished with errors")
	}
	return nil
}

func readScript(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

// ptermController answers confirmation and variable prompts interactively.
type ptermController struct{}

func (c *ptermController) ConfirmExecution(prompt string) bool {
	ok, err := pterm.DefaultInteractiveConfirm.WithDefaultText(prompt).Show()
	if err != nil {
		return false
	}
	return ok
}

func (c *ptermController) PromptVariable(name, current string) (string, bool) {
	value, err := pterm.DefaultInteractiveTextInput.
		WithDefaultValue(current).
		Show("Value for " + name)
	if err != nil {
		return "", false
	}
	return value, true
}

func printResult(res *command.Result) {
	for _, w := range res.Warnings {
		pterm.Warning.Println(w)
	}
	for _, ds := range res.DataSets {
		printDataSet(ds)
	}
	for _, msg := range res.Messages {
		pterm.Println(msg)
	}
	if res.Err != nil {
		pterm.Error.Println(res.Err.Error())
	}
	if res.Cancelled {
		pterm.Warning.Println("execution cancelled")
	}
	if res.Duration > 0 {
		pterm.Println(pterm.Gray(fmt.Sprintf("(%s)", res.Duration.Round(time.Millisecond))))
	}
}

func printDataSet(ds *command.DataSet) {
	data := pterm.TableData{ds.Columns}
	for _, row := range ds.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		data = append(data, cells)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Printfln("failed to render table: %v", err)
	}
	if ds.Truncated {
		pterm.Warning.Println("result truncated by the row cap")
	}
}
