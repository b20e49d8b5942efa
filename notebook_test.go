package nbpipe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeNotebook marshals a document map to a temp .ipynb file.
func writeNotebook(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "test.ipynb")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func v4doc(cells ...map[string]any) map[string]any {
	return map[string]any{
		"nbformat":       4,
		"nbformat_minor": 5,
		"metadata":       map[string]any{},
		"cells":          cells,
	}
}

func markdownCell(source any) map[string]any {
	return map[string]any{"cell_type": "markdown", "metadata": map[string]any{}, "source": source}
}

func codeCell(source any, count any, outputs ...map[string]any) map[string]any {
	if outputs == nil {
		outputs = []map[string]any{}
	}
	return map[string]any{
		"cell_type":       "code",
		"metadata":        map[string]any{},
		"source":          source,
		"execution_count": count,
		"outputs":         outputs,
	}
}

func TestLoad_RendersCellsInOrder(t *testing.T) {
	path := writeNotebook(t, v4doc(
		markdownCell("# Intro"),
		codeCell("print('hi')", 1, map[string]any{
			"output_type": "stream", "name": "stdout", "text": "hi\n",
		}),
		markdownCell("## Results"),
	))

	pipe := New(Config{})
	blocks, err := pipe.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	wantFirstLines := []string{
		"[CELL 0 | MARKDOWN]",
		"[CELL 1 | CODE]",
		"[CELL 2 | MARKDOWN]",
	}
	for i, b := range blocks {
		first, _, _ := strings.Cut(b.Text, "\n")
		if first != wantFirstLines[i] {
			t.Errorf("block %d first line = %q, want %q", i, first, wantFirstLines[i])
		}
		if b.Index != i {
			t.Errorf("block %d index = %d", i, b.Index)
		}
	}
}

func TestLoad_SkipsBlankMarkdownAndUnknownKinds(t *testing.T) {
	path := writeNotebook(t, v4doc(
		markdownCell("   \n  "),
		map[string]any{"cell_type": "raw", "metadata": map[string]any{}, "source": "raw stuff"},
		markdownCell("kept"),
	))

	pipe := New(Config{})
	blocks, err := pipe.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	// The surviving block keeps its original positional index.
	if blocks[0].Index != 2 {
		t.Errorf("index = %d, want 2", blocks[0].Index)
	}
}

func TestLoad_FragmentSources(t *testing.T) {
	path := writeNotebook(t, v4doc(
		markdownCell([]string{"line one\n", "line two"}),
	))

	pipe := New(Config{})
	blocks, err := pipe.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[CELL 0 | MARKDOWN]\nline one\nline two\n"
	if blocks[0].Text != want {
		t.Errorf("got %q, want %q", blocks[0].Text, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	pipe := New(Config{})
	if _, err := pipe.Load(context.Background(), "/nonexistent/nope.ipynb"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.ipynb")
	os.WriteFile(path, []byte("{not json"), 0644)

	pipe := New(Config{})
	if _, err := pipe.Load(context.Background(), path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	path := writeNotebook(t, map[string]any{"nbformat": 2, "cells": []any{}})

	pipe := New(Config{})
	_, err := pipe.Load(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for nbformat 2")
	}
	if !strings.Contains(err.Error(), "unsupported nbformat") {
		t.Errorf("expected version error, got: %v", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeNotebook(t, v4doc(markdownCell("x")))

	pipe := New(Config{MaxFileSize: 10})
	_, err := pipe.Load(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for oversized file")
	}
	if !strings.Contains(err.Error(), "file too large") {
		t.Errorf("expected size error, got: %v", err)
	}
}

func TestLoad_V3Upgrade(t *testing.T) {
	doc := map[string]any{
		"nbformat":       3,
		"nbformat_minor": 0,
		"worksheets": []map[string]any{{
			"cells": []map[string]any{
				{"cell_type": "heading", "level": 2, "source": "Legacy Title"},
				{
					"cell_type":     "code",
					"input":         "1/0",
					"prompt_number": 7,
					"outputs": []map[string]any{{
						"output_type": "pyerr",
						"ename":       "ZeroDivisionError",
						"evalue":      "division by zero",
						"traceback":   []string{"tb1", "tb2"},
					}},
				},
				{
					"cell_type":     "code",
					"input":         "2+2",
					"prompt_number": 8,
					"outputs": []map[string]any{{
						"output_type": "pyout",
						"text":        "4",
					}},
				},
			},
		}},
	}
	path := writeNotebook(t, doc)

	pipe := New(Config{})
	blocks, err := pipe.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	if !strings.Contains(blocks[0].Text, "## Legacy Title") {
		t.Errorf("heading cell should render as ATX markdown, got %q", blocks[0].Text)
	}
	if !strings.Contains(blocks[1].Text, "[EXECUTION_COUNT] 7") {
		t.Errorf("prompt_number should map to execution count, got %q", blocks[1].Text)
	}
	if !blocks[1].HasError {
		t.Error("pyerr output should set the error flag")
	}
	if !strings.Contains(blocks[1].Text, "ZeroDivisionError: division by zero") {
		t.Errorf("missing upgraded error line: %q", blocks[1].Text)
	}
	if !strings.Contains(blocks[2].Text, "[OUTPUT]\n4\n") {
		t.Errorf("pyout text should map to text/plain, got %q", blocks[2].Text)
	}
}

func TestSourceText_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"hello"`, "hello"},
		{`["a","b","c"]`, "abc"},
		{`[]`, ""},
		{`null`, ""},
	}
	for _, tt := range tests {
		var s SourceText
		if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
			t.Errorf("unmarshal %s: %v", tt.in, err)
			continue
		}
		if s.String() != tt.want {
			t.Errorf("unmarshal %s = %q, want %q", tt.in, s.String(), tt.want)
		}
	}

	var s SourceText
	if err := json.Unmarshal([]byte(`42`), &s); err == nil {
		t.Error("expected error for numeric source")
	}
}

func TestOutline(t *testing.T) {
	path := writeNotebook(t, v4doc(
		markdownCell("# Title\nbody"),
		markdownCell(""),
		codeCell("model.fit(X, y)\nmore", 3, map[string]any{
			"output_type": "error", "ename": "ValueError", "evalue": "bad", "traceback": []string{},
		}),
	))

	pipe := New(Config{})
	summaries, err := pipe.Outline(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	if summaries[0].Index != 0 || summaries[0].Kind != "markdown" || summaries[0].Preview != "# Title" {
		t.Errorf("markdown summary = %+v", summaries[0])
	}
	code := summaries[1]
	if code.Index != 2 || code.Kind != "code" || !code.HasError {
		t.Errorf("code summary = %+v", code)
	}
	if code.ExecutionCount == nil || *code.ExecutionCount != 3 {
		t.Errorf("execution count = %v", code.ExecutionCount)
	}
	if code.Preview != "model.fit(X, y)" {
		t.Errorf("preview = %q", code.Preview)
	}
}

func TestOutline_EmptyNotebookMarshalsAsList(t *testing.T) {
	path := writeNotebook(t, v4doc())

	pipe := New(Config{})
	summaries, err := pipe.Outline(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(summaries)
	if string(data) != "[]" {
		t.Errorf("expected [], got %s", data)
	}
}
