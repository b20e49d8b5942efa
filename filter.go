package nbpipe

import "strings"

// Filters narrows a rendered block list. The zero value keeps everything.
type Filters struct {
	Keywords   []string
	StartCell  *int // inclusive lower bound
	EndCell    *int // exclusive upper bound
	OnlyErrors *bool
}

// Apply runs the requested filters in fixed order: keyword, index range,
// error presence. Each filter returns a subsequence of its input, so the
// composition preserves cell order and never duplicates.
func (f Filters) Apply(blocks []Block) []Block {
	if len(f.Keywords) > 0 {
		blocks = FilterKeywords(blocks, f.Keywords)
	}
	if f.StartCell != nil || f.EndCell != nil {
		blocks = FilterIndexRange(blocks, f.StartCell, f.EndCell)
	}
	if f.OnlyErrors != nil {
		blocks = FilterErrors(blocks, *f.OnlyErrors)
	}
	return blocks
}

// FilterKeywords keeps blocks whose full rendered text contains at least one
// keyword, case-insensitively. The match spans the whole block — header,
// source, and output — not just the source.
func FilterKeywords(blocks []Block, keywords []string) []Block {
	result := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		text := strings.ToLower(b.Text)
		for _, k := range keywords {
			if strings.Contains(text, strings.ToLower(k)) {
				result = append(result, b)
				break
			}
		}
	}
	return result
}

// FilterIndexRange keeps blocks with start <= index < end, half-open.
// Either bound may be nil to leave that side unbounded.
func FilterIndexRange(blocks []Block, start, end *int) []Block {
	result := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if start != nil && b.Index < *start {
			continue
		}
		if end != nil && b.Index >= *end {
			continue
		}
		result = append(result, b)
	}
	return result
}

// FilterErrors keeps code blocks whose error flag equals target. Markdown
// blocks carry no flag and are never kept, under either target.
func FilterErrors(blocks []Block, target bool) []Block {
	result := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Kind == CellCode && b.HasError == target {
			result = append(result, b)
		}
	}
	return result
}
