// CLAUDE:SUMMARY Defines the tagged-variant document model: cells, outputs, and rendered blocks.
package nbpipe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CellKind identifies a notebook cell type.
type CellKind string

const (
	CellMarkdown CellKind = "markdown"
	CellCode     CellKind = "code"
)

// Output type tags as they appear in nbformat v4 documents.
const (
	OutputStream        = "stream"
	OutputExecuteResult = "execute_result"
	OutputDisplayData   = "display_data"
	OutputError         = "error"
)

// SourceText is nbformat's text value: either a single JSON string or an
// ordered array of fragments. Fragments concatenate in order with no
// separator; an absent or null value decodes to the empty string.
type SourceText string

func (s *SourceText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = SourceText(single)
		return nil
	}
	var fragments []string
	if err := json.Unmarshal(data, &fragments); err != nil {
		return fmt.Errorf("source: expected string or string array: %w", err)
	}
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString(f)
	}
	*s = SourceText(sb.String())
	return nil
}

func (s SourceText) String() string { return string(s) }

// Output is one captured result of executing a code cell. The variant is
// selected by Type; fields not belonging to the variant stay zero.
type Output struct {
	Type      string         `json:"output_type"`
	Name      string         `json:"name,omitempty"`      // stream: "stdout" or "stderr"
	Text      SourceText     `json:"text,omitempty"`      // stream
	Data      map[string]any `json:"data,omitempty"`      // execute_result, display_data (MIME bundle)
	Ename     string         `json:"ename,omitempty"`     // error
	Evalue    string         `json:"evalue,omitempty"`    // error
	Traceback []string       `json:"traceback,omitempty"` // error
}

// Cell is one unit of a notebook document. ExecutionCount and Outputs are
// populated for code cells only.
type Cell struct {
	Type           CellKind   `json:"cell_type"`
	Source         SourceText `json:"source"`
	ExecutionCount *int       `json:"execution_count,omitempty"`
	Outputs        []Output   `json:"outputs,omitempty"`
}

// Notebook is the in-memory document model: an ordered cell sequence plus
// the schema version it was read from.
type Notebook struct {
	Major int
	Minor int
	Cells []Cell
}

// Block is the flat text rendering of one cell. Index, Kind, and HasError
// are the structured header fields the filters operate on; Text carries the
// full rendered form including the header lines.
type Block struct {
	Index    int
	Kind     CellKind
	HasError bool
	Text     string
}
