// Package source produces the ordered recipient sequence consumed by
// the dispatch engine.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/mboxwell/bulkmailer/internal/app/dispatch"
)

var requiredColumns = []string{"email", "first_name"}

// LoadCSV parses a recipient CSV with a header row, validating that the
// required columns are present before any dispatching starts. Every
// column becomes part of the recipient's template context; row order is
// preserved.
func LoadCSV(r io.Reader) ([]dispatch.Recipient, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("recipient file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("recipient file must include %q column", required)
		}
	}

	var recipients []dispatch.Recipient
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read recipient row: %w", err)
		}

		recipient := make(dispatch.Recipient, len(header))
		for name, idx := range columns {
			if idx < len(row) {
				recipient[name] = row[idx]
			}
		}
		recipients = append(recipients, recipient)
	}

	return recipients, nil
}

// LoadCSVFile reads recipients from the file at path.
func LoadCSVFile(path string) ([]dispatch.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipient file: %w", err)
	}
	defer f.Close()

	return LoadCSV(f)
}
