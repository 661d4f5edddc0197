// Package csvconv converts CSV text into the record shapes the analysis
// tools consume. It is a convenience layer: validation errors come back as
// structured data naming the missing or malformed fields, never as Go
// errors, so the tool surface can hand them straight to a remote caller.
package csvconv

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Data formats accepted by Convert.
const (
	FormatPairwise      = "pairwise"
	FormatArmBinary     = "arm_binary"
	FormatArmContinuous = "arm_continuous"
)

// fieldKind tells the row converter how to parse a column.
type fieldKind int

const (
	fieldString fieldKind = iota
	fieldFloat
	fieldInt
)

type formatSpec struct {
	fields   map[string]fieldKind
	nextStep string
}

var formats = map[string]formatSpec{
	FormatPairwise: {
		fields: map[string]fieldKind{
			"study": fieldString, "treat1": fieldString, "treat2": fieldString,
			"TE": fieldFloat, "seTE": fieldFloat,
		},
		nextStep: "Use runnetmeta(data=result['data'], sm='OR') to run network meta-analysis",
	},
	FormatArmBinary: {
		fields: map[string]fieldKind{
			"study": fieldString, "treatment": fieldString,
			"events": fieldInt, "n": fieldInt,
		},
		nextStep: "Use pairwise_to_netmeta(data=result['data'], outcome_type='binary') to convert, then runnetmeta()",
	},
	FormatArmContinuous: {
		fields: map[string]fieldKind{
			"study": fieldString, "treatment": fieldString,
			"mean": fieldFloat, "sd": fieldFloat, "n": fieldInt,
		},
		nextStep: "Use pairwise_to_netmeta(data=result['data'], outcome_type='continuous') to convert, then runnetmeta()",
	},
}

// Convert parses CSV content (first row is the header) according to the
// named format. On success the result carries the parsed records plus
// metadata; on failure it carries an "error" key naming exactly what was
// missing or malformed. Column validation happens before any data row is
// parsed.
func Convert(csvContent, dataFormat string) map[string]any {
	spec, ok := formats[dataFormat]
	if !ok {
		return map[string]any{
			"error":         fmt.Sprintf("Unknown data_format: %s", dataFormat),
			"valid_formats": []string{FormatPairwise, FormatArmBinary, FormatArmContinuous},
		}
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(csvContent)))
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("Failed to parse CSV: %v", err)}
	}
	if len(rows) < 2 {
		return map[string]any{"error": "No data found in CSV"}
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	if missing := missingColumns(header, spec.fields); len(missing) > 0 {
		return map[string]any{
			"error": fmt.Sprintf("Missing required columns for %s format: %s",
				dataFormat, strings.Join(missing, ", ")),
			"found_columns":    header,
			"required_columns": requiredColumns(spec.fields),
		}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	data := make([]map[string]any, 0, len(rows)-1)
	for rowNum, row := range rows[1:] {
		record := make(map[string]any, len(spec.fields))
		for name, kind := range spec.fields {
			raw := strings.TrimSpace(row[index[name]])
			switch kind {
			case fieldString:
				record[name] = raw
			case fieldFloat:
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return map[string]any{
						"error": fmt.Sprintf(
							"Invalid numeric value %q for column %s in row %d", raw, name, rowNum+1),
					}
				}
				record[name] = v
			case fieldInt:
				v, err := strconv.Atoi(raw)
				if err != nil {
					return map[string]any{
						"error": fmt.Sprintf(
							"Invalid integer value %q for column %s in row %d", raw, name, rowNum+1),
					}
				}
				record[name] = v
			}
		}
		data = append(data, record)
	}

	return map[string]any{
		"data":      data,
		"n_records": len(data),
		"columns":   header,
		"format":    dataFormat,
		"next_step": spec.nextStep,
	}
}

func missingColumns(header []string, fields map[string]fieldKind) []string {
	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	var missing []string
	for name := range fields {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func requiredColumns(fields map[string]fieldKind) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
