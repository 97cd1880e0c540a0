// Package vtt reads WebVTT caption files into segment rows.
//
// Two layouts are understood. Provided captions are ordinary cues whose text
// lines belong together. Rolling auto-captions repeat the previous line in
// every cue and carry inline word timing tags; only the newest line of each
// cue is kept.
package vtt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/vidalign/internal/types"
)

// Cue is one caption with its raw boundary strings normalized to
// HH:MM:SS.fff form.
type Cue struct {
	Start string
	End   string
	Text  string
}

type Layout int

const (
	LayoutProvided Layout = iota
	LayoutRolling
)

// Source reads one caption file per video from Dir.
type Source struct {
	Dir string
	// VideoIDs restricts reading to these videos, in this order. Empty means
	// every .vtt file in Dir, with the id taken up to the first dot.
	VideoIDs []string
	// Rolling marks videos whose captions use the rolling layout; others use
	// DefaultLayout.
	Rolling       map[string]bool
	DefaultLayout Layout
	// Generated marks the files as speech-to-text output rather than
	// platform captions.
	Generated bool
}

func (s *Source) Segments(ctx context.Context) ([]types.SegmentRow, error) {
	ids := s.VideoIDs
	files := make(map[string]string)
	if len(ids) == 0 {
		matches, err := filepath.Glob(filepath.Join(s.Dir, "*.vtt"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			id, _, _ := strings.Cut(filepath.Base(m), ".")
			if _, seen := files[id]; seen {
				continue
			}
			files[id] = m
			ids = append(ids, id)
		}
	}

	var out []types.SegmentRow
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, ok := files[id]
		if !ok {
			p, err := findFile(s.Dir, id)
			if err != nil {
				return nil, err
			}
			if p == "" {
				continue
			}
			path = p
		}

		layout := s.DefaultLayout
		if rolling, ok := s.Rolling[id]; ok {
			layout = LayoutProvided
			if rolling {
				layout = LayoutRolling
			}
		}
		cues, err := ParseFile(path, layout)
		if err != nil {
			return nil, err
		}
		for _, c := range cues {
			out = append(out, types.SegmentRow{
				VideoID:     id,
				StartTime:   c.Start,
				EndTime:     c.End,
				Text:        c.Text,
				IsGenerated: s.Generated,
			})
		}
	}
	return out, nil
}

// findFile returns id.vtt, or else the first id.<lang>.vtt in dir, or "" when
// there is none. Files of other videos sharing the id as a prefix never match.
func findFile(dir, id string) (string, error) {
	exact := filepath.Join(dir, id+".vtt")
	if st, err := os.Stat(exact); err == nil && !st.IsDir() {
		return exact, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(id)+".*.vtt"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

func ParseFile(path string, layout Layout) ([]Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cues, err := Parse(f, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cues, nil
}

func Parse(r io.Reader, layout Layout) ([]Cue, error) {
	blocks, err := readBlocks(r)
	if err != nil {
		return nil, err
	}
	if layout == LayoutRolling {
		return rollingCues(blocks), nil
	}
	return providedCues(blocks), nil
}

type block struct {
	start, end string
	lines      []string
}

// readBlocks splits the file into timed cues. Header, NOTE and STYLE blocks
// have no timing line and are dropped.
func readBlocks(r io.Reader) ([]block, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		out []block
		cur *block
	)
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.Contains(line, "-->") {
			flush()
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, err
			}
			cur = &block{start: start, end: end}
			continue
		}
		if cur == nil {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		cur.lines = append(cur.lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

func parseTiming(line string) (string, string, error) {
	left, right, _ := strings.Cut(line, "-->")
	lf := strings.Fields(left)
	rf := strings.Fields(right)
	if len(lf) == 0 || len(rf) == 0 {
		return "", "", fmt.Errorf("bad cue timing %q", line)
	}
	return withHours(lf[0]), withHours(rf[0]), nil
}

// withHours adds the optional hour field WebVTT allows cue times to omit.
func withHours(ts string) string {
	if strings.Count(ts, ":") == 1 {
		return "00:" + ts
	}
	return ts
}

func providedCues(blocks []block) []Cue {
	out := make([]Cue, 0, len(blocks))
	for _, b := range blocks {
		parts := make([]string, 0, len(b.lines))
		for _, l := range b.lines {
			if t := cleanText(l); t != "" {
				parts = append(parts, t)
			}
		}
		out = append(out, Cue{Start: b.start, End: b.end, Text: strings.Join(parts, " ")})
	}
	return out
}

func rollingCues(blocks []block) []Cue {
	var (
		out  []Cue
		prev string
	)
	for _, b := range blocks {
		if len(b.lines) == 0 {
			continue
		}
		text := cleanText(b.lines[len(b.lines)-1])
		if text == "" || text == prev {
			continue
		}
		prev = text
		out = append(out, Cue{Start: b.start, End: b.end, Text: text})
	}
	return out
}

var entities = strings.NewReplacer(
	"[&nbsp;__&nbsp;]", "",
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// cleanText removes inline tags and the censor marker, decodes the common
// entities and collapses whitespace.
func cleanText(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	text := entities.Replace(b.String())
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}
