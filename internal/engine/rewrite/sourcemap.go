package rewrite

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"
)

// SourceMap is a version 3 source map.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

func (m *SourceMap) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// DataURL returns the map as an inline sourceMappingURL comment target.
func (m *SourceMap) DataURL() (string, error) {
	data, err := m.JSON()
	if err != nil {
		return "", err
	}
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Segment is one decoded mapping entry. Columns count UTF-16 code units.
type Segment struct {
	GenLine, GenCol int
	SrcLine, SrcCol int
}

// SourceMap builds the map of the current buffer state. Original text maps
// segment-per-line; inserted and replaced text maps to the offset it was
// anchored at.
func (b *Buffer) SourceMap(file, source string) *SourceMap {
	g := newGenerator(b.original)
	g.inserted(b.intro, 0)
	for _, c := range b.chunks {
		g.inserted(c.intro, c.start)
		if c.edited {
			g.inserted(c.content, c.start)
		} else {
			g.copied(c.content, c.start)
		}
		g.inserted(c.outro, c.end)
	}
	g.inserted(b.outro, len(b.original))

	return &SourceMap{
		Version:        3,
		File:           file,
		Sources:        []string{source},
		SourcesContent: []string{b.original},
		Names:          []string{},
		Mappings:       g.encode(),
	}
}

type generator struct {
	lineStarts []int
	original   string
	lines      [][]Segment
	genCol     int
}

func newGenerator(original string) *generator {
	starts := []int{0}
	for i := 0; i < len(original); i++ {
		if original[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &generator{lineStarts: starts, original: original, lines: [][]Segment{nil}}
}

func (g *generator) locate(off int) (int, int) {
	line := sort.Search(len(g.lineStarts), func(i int) bool { return g.lineStarts[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	return line, utf16Len(g.original[g.lineStarts[line]:off])
}

func (g *generator) mark(off int) {
	line, col := g.locate(off)
	cur := len(g.lines) - 1
	segs := g.lines[cur]
	if n := len(segs); n > 0 && segs[n-1].GenCol == g.genCol {
		segs[n-1].SrcLine, segs[n-1].SrcCol = line, col
		return
	}
	g.lines[cur] = append(segs, Segment{GenLine: cur, GenCol: g.genCol, SrcLine: line, SrcCol: col})
}

func (g *generator) newline() {
	g.lines = append(g.lines, nil)
	g.genCol = 0
}

// copied emits text taken verbatim from offset start.
func (g *generator) copied(text string, start int) {
	if text == "" {
		return
	}
	g.mark(start)
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			g.genCol += utf16Len(text)
			return
		}
		start += i + 1
		text = text[i+1:]
		g.newline()
		if text == "" {
			return
		}
		g.mark(start)
	}
}

// inserted emits generated text attributed to anchor.
func (g *generator) inserted(text string, anchor int) {
	if text == "" {
		return
	}
	g.mark(anchor)
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			g.genCol += utf16Len(text)
			return
		}
		text = text[i+1:]
		g.newline()
		if text == "" {
			return
		}
		g.mark(anchor)
	}
}

func (g *generator) encode() string {
	var sb strings.Builder
	var prevSrcLine, prevSrcCol int
	for i, segs := range g.lines {
		if i > 0 {
			sb.WriteByte(';')
		}
		prevGenCol := 0
		for j, s := range segs {
			if j > 0 {
				sb.WriteByte(',')
			}
			writeVLQ(&sb, s.GenCol-prevGenCol)
			writeVLQ(&sb, 0)
			writeVLQ(&sb, s.SrcLine-prevSrcLine)
			writeVLQ(&sb, s.SrcCol-prevSrcCol)
			prevGenCol, prevSrcLine, prevSrcCol = s.GenCol, s.SrcLine, s.SrcCol
		}
	}
	return sb.String()
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 && r != utf8.RuneError {
			n += 2
		} else {
			n++
		}
	}
	return n
}
