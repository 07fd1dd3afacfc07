// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/anjanb/questdb/internal/httperrors"
	"github.com/anjanb/questdb/internal/terminal"
)

var (
	queryServer  string
	queryLimit   string
	queryCount   bool
	queryNoMeta  bool
	queryRaw     bool
	queryTimeout time.Duration
)

// queryCmd sends one statement to a running server and renders the
// response document.
var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a query against a jsonquery server",
	Long: `The query command sends a statement to /exec and renders the streamed JSON
document as a table. --raw prints the document as received.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		form := url.Values{"query": {args[0]}}
		if queryLimit != "" {
			form.Set("limit", queryLimit)
		}
		if queryCount {
			form.Set("count", "true")
		}
		if queryNoMeta {
			form.Set("nm", "true")
		}
		endpoint := strings.TrimRight(queryServer, "/") + "/exec?" + form.Encode()
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		interactive := terminal.IsTerminal() && !queryRaw
		var spinner *pterm.SpinnerPrinter
		if interactive {
			cursor.Hide()
			defer cursor.Show()
			spinner, _ = pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("running query")
		}
		stopSpinner := func() {
			if spinner != nil {
				_ = spinner.Stop()
				spinner = nil
			}
		}
		defer stopSpinner()

		client := &http.Client{Timeout: queryTimeout}
		resp, err := client.Do(req)
		if err != nil {
			stopSpinner()
			return httperrors.FormatNetworkError(err, "running the query", queryServer)
		}
		defer resp.Body.Close()

		if queryRaw {
			if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
				return httperrors.FormatNetworkError(err, "reading the response", queryServer)
			}
			fmt.Println()
			return nil
		}

		start := time.Now()
		doc, err := decodeDocument(resp.Body)
		stopSpinner()
		if err != nil {
			return httperrors.FormatNetworkError(err, "reading the response", queryServer)
		}
		return renderDocument(os.Stdout, doc, time.Since(start))
	},
}

// document is any response of /exec.
type document struct {
	Query    string           `json:"query"`
	Columns  []documentColumn `json:"columns"`
	Dataset  [][]any          `json:"dataset"`
	Count    int64            `json:"count"`
	DDL      string           `json:"ddl"`
	Error    string           `json:"error"`
	Position *int             `json:"position"`
}

type documentColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func decodeDocument(r io.Reader) (*document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func renderDocument(w io.Writer, doc *document, elapsed time.Duration) error {
	switch {
	case doc.Error != "":
		fmt.Fprintln(w, "❌ "+doc.Error)
		if doc.Position != nil {
			fmt.Fprintln(w, "   "+doc.Query)
			fmt.Fprintln(w, "   "+caret(doc.Query, *doc.Position))
		}
		return errors.New("query failed")
	case doc.DDL != "":
		fmt.Fprintln(w, "✅ "+doc.DDL)
		return nil
	}
	data := tableData(doc, terminal.Width())
	if len(data) > 0 {
		table := pterm.DefaultTable.WithHasHeader(len(doc.Columns) > 0).WithData(data).WithWriter(w)
		if err := table.Render(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%d rows (%s)\n", doc.Count, elapsed.Round(time.Millisecond))
	return nil
}

// caret points at byte offset pos of q, counted in runes for display.
func caret(q string, pos int) string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(q) {
		pos = len(q)
	}
	return strings.Repeat(" ", len([]rune(q[:pos]))) + "^"
}

// tableData lays the document out as rows of cells no wider than an even
// share of width.
func tableData(doc *document, width int) pterm.TableData {
	cols := len(doc.Columns)
	if cols == 0 && len(doc.Dataset) > 0 {
		cols = len(doc.Dataset[0])
	}
	if cols == 0 {
		return nil
	}
	cellWidth := width/cols - 3
	if cellWidth < 4 {
		cellWidth = 4
	}

	var data pterm.TableData
	if len(doc.Columns) > 0 {
		header := make([]string, cols)
		for i, c := range doc.Columns {
			header[i] = terminal.Truncate(c.Name, cellWidth)
		}
		data = append(data, header)
	}
	for _, row := range doc.Dataset {
		cells := make([]string, cols)
		for i := 0; i < cols && i < len(row); i++ {
			cells[i] = terminal.Truncate(cell(row[i]), cellWidth)
		}
		data = append(data, cells)
	}
	return data
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func init() {
	rootCmd.AddCommand(queryCmd)
	server := os.Getenv("JSONQUERY_SERVER")
	if server == "" {
		server = "http://localhost:9000"
	}
	f := queryCmd.Flags()
	f.StringVar(&queryServer, "server", server, "server base URL (JSONQUERY_SERVER)")
	f.StringVar(&queryLimit, "limit", "", `row limit: "n" or "lo,hi"`)
	f.BoolVar(&queryCount, "count", false, "report the total row count")
	f.BoolVar(&queryNoMeta, "nm", false, "omit the query and column metadata")
	f.BoolVar(&queryRaw, "raw", false, "print the JSON document as received")
	f.DurationVar(&queryTimeout, "timeout", 0, "request timeout; zero waits indefinitely")
}
