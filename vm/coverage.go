package vm

import "sort"

// ---------------------------------------------------------------------------
// Coverage collection for chunks compiled with coverage instrumentation
// ---------------------------------------------------------------------------

// LineHits is the hit count for one source line.
type LineHits struct {
	Line int // 0-based source line
	Hits int
}

// FunctionCoverage is the coverage recorded for one function.
type FunctionCoverage struct {
	Source string
	Name   string
	Lines  []LineHits
}

func (g *Global) hit(p *Proto, pc int) {
	m := g.coverage[p]
	if m == nil {
		m = make(map[int]int)
		g.coverage[p] = m
	}
	m[pc]++
}

// Coverage returns per-function line hit counts, sorted by source and
// first line. Offsets without line information are attributed to line 0.
func (g *Global) Coverage() []FunctionCoverage {
	out := make([]FunctionCoverage, 0, len(g.coverage))
	for p, offsets := range g.coverage {
		lines := make(map[int]int)
		for pc, n := range offsets {
			line := p.lineAt(pc)
			if line < 0 {
				line = 0
			}
			lines[line] += n
		}
		fc := FunctionCoverage{Source: p.source, Name: p.name}
		for line, n := range lines {
			fc.Lines = append(fc.Lines, LineHits{Line: line, Hits: n})
		}
		sort.Slice(fc.Lines, func(i, j int) bool { return fc.Lines[i].Line < fc.Lines[j].Line })
		out = append(out, fc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if li, lj := out[i].Lines[0].Line, out[j].Lines[0].Line; li != lj {
			return li < lj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ResetCoverage discards recorded hits.
func (g *Global) ResetCoverage() {
	g.coverage = make(map[*Proto]map[int]int)
}
