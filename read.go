// CLAUDE:SUMMARY Tool entry point: load → filter → join, every failure mapped to in-band text.
package nbpipe

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hazyhaar/nbpipe/audit"
)

// NoMatchMessage is returned when the filters leave no blocks.
const NoMatchMessage = "No matching cells found with the specified filters."

// errPrefix starts every in-band failure response. Callers detect failure
// by matching this prefix; there is no separate error channel.
const errPrefix = "Error reading notebook: "

// ReadRequest holds the read_notebook tool arguments.
type ReadRequest struct {
	Path       string   `json:"path"`
	Keywords   []string `json:"keywords,omitempty"`
	StartCell  *int     `json:"start_cell,omitempty"`
	EndCell    *int     `json:"end_cell,omitempty"`
	OnlyErrors *bool    `json:"only_errors,omitempty"`
}

// Read renders a notebook to filtered text. It never returns an error: the
// caller of a text tool expects a string result, so load and parse failures
// come back in-band with the "Error reading notebook: " prefix, and an empty
// filter result comes back as NoMatchMessage. This is the single boundary
// where internal errors are converted to the text contract.
func (p *Pipeline) Read(ctx context.Context, req ReadRequest) string {
	start := time.Now()
	text, kept, err := p.read(ctx, req)
	p.record(req, kept, time.Since(start), err)
	if err != nil {
		p.logger.Debug("read failed", "path", req.Path, "error", err)
		return errPrefix + err.Error()
	}
	return text
}

func (p *Pipeline) read(ctx context.Context, req ReadRequest) (string, int, error) {
	blocks, err := p.Load(ctx, req.Path)
	if err != nil {
		return "", 0, err
	}

	blocks = Filters{
		Keywords:   req.Keywords,
		StartCell:  req.StartCell,
		EndCell:    req.EndCell,
		OnlyErrors: req.OnlyErrors,
	}.Apply(blocks)

	if len(blocks) == 0 {
		return NoMatchMessage, 0, nil
	}

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, "\n"), len(blocks), nil
}

func (p *Pipeline) record(req ReadRequest, blocks int, d time.Duration, err error) {
	if p.cfg.Audit == nil {
		return
	}
	params, _ := json.Marshal(req)
	e := &audit.Entry{
		Tool:       "read_notebook",
		Path:       req.Path,
		Params:     string(params),
		DurationUs: d.Microseconds(),
		Blocks:     blocks,
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.cfg.Audit.LogAsync(e)
}
