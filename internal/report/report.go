package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alexeyco/simpletable"
	"github.com/pkg/errors"

	"github.com/seqarc/tern/internal/core"
)

// header is the fixed column set of the aggregate report.
var header = []string{"file_name", "file_uuid", "file_path", "status", "attempts"}

// Report accumulates per-file upload results and renders them as a TSV file
// and as a console table. Rows keep manifest order regardless of which worker
// finished first.
type Report struct {
	results []core.UploadResult
}

func New() *Report {
	return &Report{}
}

// Add appends results to the report.
func (r *Report) Add(results ...core.UploadResult) {
	r.results = append(r.results, results...)
}

// Sort orders rows by file name so the report is stable across runs.
func (r *Report) Sort() {
	sort.SliceStable(r.results, func(i, j int) bool {
		return r.results[i].FileName < r.results[j].FileName
	})
}

// Results returns a copy of the accumulated rows.
func (r *Report) Results() []core.UploadResult {
	out := make([]core.UploadResult, len(r.results))
	copy(out, r.results)
	return out
}

// AllSucceeded reports whether every row finished with a success status.
// Skipped and failed rows both count against the batch.
func (r *Report) AllSucceeded() bool {
	for _, result := range r.results {
		if result.Status != core.StatusSuccess {
			return false
		}
	}
	return true
}

// ExitCode collapses the batch outcome to a process exit code: zero only when
// every upload succeeded.
func (r *Report) ExitCode() int {
	if r.AllSucceeded() {
		return 0
	}
	return 1
}

// WriteTSV writes the report as tab-separated values with a header row.
func (r *Report) WriteTSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create report file %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "failed to write report header")
	}
	for _, result := range r.results {
		row := []string{
			result.FileName,
			result.FileUUID,
			result.ResolvedPath,
			string(result.Status),
			fmt.Sprintf("%d", result.Attempts),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write report row for %s", result.FileName)
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "failed to flush report")
}

// Render returns the report as a console table.
func (r *Report) Render() string {
	table := simpletable.New()

	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "FILE"},
			{Align: simpletable.AlignCenter, Text: "STATUS"},
			{Align: simpletable.AlignCenter, Text: "ATTEMPTS"},
			{Align: simpletable.AlignCenter, Text: "DURATION"},
			{Align: simpletable.AlignCenter, Text: "DETAIL"},
		},
	}

	for _, result := range r.results {
		detail := ""
		if result.Error != nil {
			detail = result.Error.Error()
		}
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Text: result.FileName},
			{Align: simpletable.AlignCenter, Text: strings.ToUpper(string(result.Status))},
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d", result.Attempts)},
			{Align: simpletable.AlignRight, Text: result.Duration.Round(time.Millisecond).String()},
			{Text: detail},
		})
	}

	succeeded := 0
	for _, result := range r.results {
		if result.Status == core.StatusSuccess {
			succeeded++
		}
	}
	table.Footer = &simpletable.Footer{
		Cells: []*simpletable.Cell{
			{Span: 5, Text: fmt.Sprintf("%d/%d uploads succeeded", succeeded, len(r.results))},
		},
	}

	table.SetStyle(simpletable.StyleCompactLite)
	return table.String()
}
