// Example: Using the sqlrun REST API
//
// This example submits a script to a running sqlrun server and polls the run
// until it finishes.
//
// Start the server:
//
//	go run ./cmd/server
//
// Then run this example:
//
//	go run ./example/restapi
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

var baseURL = getBaseURL()

func getBaseURL() string {
	host := os.Getenv("SQLRUN_HOST")
	if host == "" {
		host = "localhost:8080"
	}
	return fmt.Sprintf("http://%s/v1", host)
}

// ScriptRequest mirrors the server's script submission payload.
type ScriptRequest struct {
	Script    string            `json:"script"`
	Variables map[string]string `json:"variables,omitempty"`
	MaxRows   int               `json:"maxRows,omitempty"`
}

// SubmitResponse is the acknowledgement returned on submission.
type SubmitResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RunResponse is the polled run state.
type RunResponse struct {
	RunID      string `json:"runId"`
	Status     string `json:"status"`
	Statements []struct {
		SQL      string   `json:"sql"`
		Success  bool     `json:"success"`
		Messages []string `json:"messages,omitempty"`
		DataSets []struct {
			Columns []string `json:"columns"`
			Rows    [][]any  `json:"rows"`
		} `json:"dataSets,omitempty"`
	} `json:"statements,omitempty"`
}

func main() {
	req := &ScriptRequest{
		Script: `
			create table person (id integer, name varchar);
			insert into person values (1, 'Arthur'), (2, 'Ford');
			select * from person where id = ${id};
		`,
		Variables: map[string]string{"id": "2"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}

	resp, err := http.Post(baseURL+"/scripts", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to submit script: %v", err)
	}
	var submitted SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		log.Fatalf("Failed to decode response: %v", err)
	}
	resp.Body.Close()
	fmt.Printf("Submitted run %s\n", submitted.RunID)

	for {
		time.Sleep(100 * time.Millisecond)
		resp, err := http.Get(baseURL + "/runs/" + submitted.RunID)
		if err != nil {
			log.Fatalf("Failed to poll run: %v", err)
		}
		var run RunResponse
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			log.Fatalf("Failed to decode run: %v", err)
		}
		resp.Body.Close()

		if run.Status == "pending" || run.Status == "running" {
			continue
		}

		fmt.Printf("Run finished: %s\n", run.Status)
		for _, stmt := range run.Statements {
			fmt.Printf("- %s (success=%t)\n", stmt.SQL, stmt.Success)
			for _, msg := range stmt.Messages {
				fmt.Printf("  %s\n", msg)
			}
			for _, ds := range stmt.DataSets {
				fmt.Printf("  %v\n", ds.Columns)
				for _, row := range ds.Rows {
					fmt.Printf("  %v\n", row)
				}
			}
		}
		return
	}
}
