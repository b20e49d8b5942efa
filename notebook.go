// CLAUDE:SUMMARY Pipeline engine: loads .ipynb files, gates nbformat versions, renders cells to blocks.
// Package nbpipe converts Jupyter notebooks into flat text blocks suitable
// for a text-based analysis client.
//
// The pipeline is parse → render → filter:
//   - Load reads an .ipynb file into the document model and renders every
//     cell, in order, into a delimited text block.
//   - Filters narrow the block list by keyword, index range, or error
//     presence without reordering it.
//   - Read joins the surviving blocks into one response string and maps
//     every failure to an in-band error text.
//
// Usage:
//
//	pipe := nbpipe.New(nbpipe.Config{})
//	text := pipe.Read(ctx, nbpipe.ReadRequest{Path: "analysis.ipynb"})
package nbpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Pipeline is the notebook-to-text engine. Stateless across invocations;
// safe for concurrent use.
type Pipeline struct {
	cfg         Config
	logger      *slog.Logger
	sanitizer   *bluemonday.Policy
	mdConverter *converter.Converter
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:       cfg,
		logger:    cfg.Logger,
		sanitizer: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Load reads and parses a notebook file, returning one rendered block per
// cell in original order. Cells that render to nothing (blank markdown,
// unrecognized kinds) are excluded. Load errors propagate to the caller;
// only Read converts them to the in-band text contract.
func (p *Pipeline) Load(ctx context.Context, path string) ([]Block, error) {
	nb, err := p.load(ctx, path)
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(nb.Cells))
	for i, cell := range nb.Cells {
		if b, ok := p.renderCell(cell, i); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func (p *Pipeline) load(_ context.Context, path string) (*Notebook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), p.cfg.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	nb, err := parseNotebook(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p.logger.Debug("notebook loaded", "path", path, "nbformat", nb.Major, "cells", len(nb.Cells))
	return nb, nil
}

// parseNotebook decodes an nbformat document. Major version 4 is the native
// format; version 3 documents are upgraded in memory. Anything else is
// rejected.
func parseNotebook(data []byte) (*Notebook, error) {
	var probe struct {
		NBFormat      int `json:"nbformat"`
		NBFormatMinor int `json:"nbformat_minor"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid notebook JSON: %w", err)
	}

	switch probe.NBFormat {
	case 4:
		var doc struct {
			Cells []Cell `json:"cells"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("nbformat 4 cells: %w", err)
		}
		return &Notebook{Major: 4, Minor: probe.NBFormatMinor, Cells: doc.Cells}, nil
	case 3:
		return upgradeV3(data, probe.NBFormatMinor)
	default:
		return nil, fmt.Errorf("unsupported nbformat version: %d", probe.NBFormat)
	}
}

// upgradeV3 lifts a legacy v3 document into the v4 model: worksheets are
// flattened, "input" becomes source, "prompt_number" becomes the execution
// count, and pyout/pyerr become execute_result/error outputs. Heading cells
// (a v3-only kind) become markdown with an ATX prefix.
func upgradeV3(data []byte, minor int) (*Notebook, error) {
	var doc struct {
		Worksheets []struct {
			Cells []struct {
				CellType     string     `json:"cell_type"`
				Source       SourceText `json:"source"`
				Input        SourceText `json:"input"`
				Level        int        `json:"level"`
				PromptNumber *int       `json:"prompt_number"`
				Outputs      []struct {
					OutputType string     `json:"output_type"`
					Text       SourceText `json:"text"`
					Ename      string     `json:"ename"`
					Evalue     string     `json:"evalue"`
					Traceback  []string   `json:"traceback"`
				} `json:"outputs"`
			} `json:"cells"`
		} `json:"worksheets"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("nbformat 3 worksheets: %w", err)
	}

	var cells []Cell
	for _, ws := range doc.Worksheets {
		for _, c := range ws.Cells {
			switch c.CellType {
			case "markdown":
				cells = append(cells, Cell{Type: CellMarkdown, Source: c.Source})
			case "heading":
				level := c.Level
				if level < 1 {
					level = 1
				}
				src := strings.Repeat("#", level) + " " + c.Source.String()
				cells = append(cells, Cell{Type: CellMarkdown, Source: SourceText(src)})
			case "code":
				cell := Cell{Type: CellCode, Source: c.Input, ExecutionCount: c.PromptNumber}
				for _, o := range c.Outputs {
					switch o.OutputType {
					case "stream":
						cell.Outputs = append(cell.Outputs, Output{Type: OutputStream, Text: o.Text})
					case "pyout", "execute_result":
						cell.Outputs = append(cell.Outputs, Output{
							Type: OutputExecuteResult,
							Data: map[string]any{"text/plain": o.Text.String()},
						})
					case "display_data":
						cell.Outputs = append(cell.Outputs, Output{
							Type: OutputDisplayData,
							Data: map[string]any{"text/plain": o.Text.String()},
						})
					case "pyerr", "error":
						cell.Outputs = append(cell.Outputs, Output{
							Type:      OutputError,
							Ename:     o.Ename,
							Evalue:    o.Evalue,
							Traceback: o.Traceback,
						})
					}
				}
				cells = append(cells, cell)
			default:
				// Raw and other legacy kinds carry through and are dropped
				// at render time, same as unknown v4 kinds.
				cells = append(cells, Cell{Type: CellKind(c.CellType), Source: c.Source})
			}
		}
	}
	return &Notebook{Major: 3, Minor: minor, Cells: cells}, nil
}

// CellSummary is one row of a notebook outline.
type CellSummary struct {
	Index          int    `json:"index"`
	Kind           string `json:"kind"`
	ExecutionCount *int   `json:"execution_count,omitempty"`
	HasError       bool   `json:"has_error"`
	Preview        string `json:"preview"`
}

// Outline summarizes every cell that would render a block, without the full
// block text. Useful for a client to pick index ranges before reading.
func (p *Pipeline) Outline(ctx context.Context, path string) ([]CellSummary, error) {
	nb, err := p.load(ctx, path)
	if err != nil {
		return nil, err
	}
	summaries := []CellSummary{}
	for i, cell := range nb.Cells {
		source := strings.TrimSpace(cell.Source.String())
		switch cell.Type {
		case CellMarkdown:
			if source == "" {
				continue
			}
			summaries = append(summaries, CellSummary{
				Index:   i,
				Kind:    string(CellMarkdown),
				Preview: firstLine(source),
			})
		case CellCode:
			_, hasError := p.renderOutputs(cell.Outputs)
			summaries = append(summaries, CellSummary{
				Index:          i,
				Kind:           string(CellCode),
				ExecutionCount: cell.ExecutionCount,
				HasError:       hasError,
				Preview:        firstLine(source),
			})
		}
	}
	return summaries, nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}
