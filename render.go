// CLAUDE:SUMMARY Renders notebook outputs and cells into the fixed [CELL ...] block grammar.
package nbpipe

import (
	"fmt"
	"strconv"
	"strings"
)

// noOutput is the placeholder for code cells with no renderable output.
const noOutput = "<NO OUTPUT>"

// renderOutputs flattens a code cell's outputs into one text blob and
// reports whether any output is an execution error.
//
// Stream text and text/plain values are trimmed; error tracebacks are kept
// verbatim. Unknown output types are skipped: forward compatibility with
// future nbformat variants, not a failure.
func (p *Pipeline) renderOutputs(outputs []Output) (string, bool) {
	var lines []string
	hasError := false

	for _, out := range outputs {
		switch out.Type {
		case OutputStream:
			if text := strings.TrimSpace(out.Text.String()); text != "" {
				lines = append(lines, text)
			}

		case OutputExecuteResult, OutputDisplayData:
			if v, ok := out.Data["text/plain"]; ok {
				lines = append(lines, strings.TrimSpace(mimeText(v)))
			} else if v, ok := out.Data["text/html"]; ok {
				// Rich outputs without a plain rendition: sanitize, then
				// convert to markdown. Dropped when nothing usable remains.
				if md := p.htmlToText(mimeText(v)); md != "" {
					lines = append(lines, md)
				}
			}

		case OutputError:
			hasError = true
			lines = append(lines, "ERROR:")
			lines = append(lines, fmt.Sprintf("%s: %s", out.Ename, out.Evalue))
			lines = append(lines, out.Traceback...)
		}
	}

	return strings.Join(lines, "\n"), hasError
}

// mimeText coerces a MIME-bundle value into text. nbformat stores multiline
// values as fragment arrays, concatenated with the same rule as cell sources.
func mimeText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var sb strings.Builder
		for _, frag := range t {
			if s, ok := frag.(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// htmlToText sanitizes an HTML output and converts it to markdown.
// Returns "" when the conversion fails or produces nothing usable.
func (p *Pipeline) htmlToText(html string) string {
	if html == "" {
		return ""
	}
	clean := p.sanitizer.Sanitize(html)
	md, err := p.mdConverter.ConvertString(clean)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

// renderCell produces the Block for one cell at its positional index.
// ok is false for cells the renderer drops: unknown kinds and markdown
// cells whose source trims to nothing.
//
// The block layout is a contract consumers depend on:
//
//	[CELL <n> | MARKDOWN]
//	<source>
//
// and
//
//	[CELL <n> | CODE]
//	[EXECUTION_COUNT] <int or null>
//	[HAS_ERROR] <True|False>
//
//	<source>
//
//	[OUTPUT]
//	<output text, or "<NO OUTPUT>">
//
// An absent execution count renders as the literal "null".
func (p *Pipeline) renderCell(cell Cell, index int) (Block, bool) {
	source := strings.TrimSpace(cell.Source.String())

	switch cell.Type {
	case CellMarkdown:
		if source == "" {
			return Block{}, false
		}
		return Block{
			Index: index,
			Kind:  CellMarkdown,
			Text:  fmt.Sprintf("[CELL %d | MARKDOWN]\n%s\n", index, source),
		}, true

	case CellCode:
		outputText, hasError := p.renderOutputs(cell.Outputs)
		if outputText == "" {
			outputText = noOutput
		}
		count := "null"
		if cell.ExecutionCount != nil {
			count = strconv.Itoa(*cell.ExecutionCount)
		}
		return Block{
			Index:    index,
			Kind:     CellCode,
			HasError: hasError,
			Text: fmt.Sprintf("[CELL %d | CODE]\n[EXECUTION_COUNT] %s\n[HAS_ERROR] %s\n\n%s\n\n[OUTPUT]\n%s\n",
				index, count, errorFlag(hasError), source, outputText),
		}, true

	default:
		return Block{}, false
	}
}

// errorFlag renders the capitalized boolean the [HAS_ERROR] tag carries.
func errorFlag(hasError bool) string {
	if hasError {
		return "True"
	}
	return "False"
}
