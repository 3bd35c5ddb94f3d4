// Package report renders analysis results as text, markdown or JSON.
//
// Both report kinds are first assembled into a small document model
// (sections of key/value lists, item lists and tables) and then written by a
// format-specific renderer.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects the renderer.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatMarkdown, FormatJSON:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "txt", "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, markdown or json)", s)
}

const ruleWidth = 50

type document struct {
	title    string
	subtitle string
	sections []section
}

type section struct {
	title  string
	blocks []block
}

type block interface{ isBlock() }

type kvBlock struct {
	pairs [][2]string
}

type listBlock struct {
	heading  string
	numbered bool
	items    []string
}

type tableBlock struct {
	header table.Row
	rows   []table.Row
}

type noteBlock struct {
	text string
}

func (kvBlock) isBlock()    {}
func (listBlock) isBlock()  {}
func (tableBlock) isBlock() {}
func (noteBlock) isBlock()  {}

func (s *section) kv(key, value string) {
	if n := len(s.blocks); n > 0 {
		if b, ok := s.blocks[n-1].(kvBlock); ok {
			b.pairs = append(b.pairs, [2]string{key, value})
			s.blocks[n-1] = b
			return
		}
	}
	s.blocks = append(s.blocks, kvBlock{pairs: [][2]string{{key, value}}})
}

// styles holds the lipgloss styles for TTY text output.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(enabled bool) styles {
	if !enabled {
		plain := lipgloss.NewStyle()
		return styles{title: plain, section: plain, heading: plain, muted: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		heading: lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(s string) {
	e.printf("%s\n", s)
}

func renderText(w io.Writer, d document, styled bool) error {
	st := newStyles(styled)
	out := &errWriter{w: w}

	out.println(st.title.Render(d.title))
	out.println(st.muted.Render(strings.Repeat("=", ruleWidth)))
	if d.subtitle != "" {
		out.println(d.subtitle)
	}

	for _, s := range d.sections {
		out.println("")
		out.println(st.section.Render(strings.ToUpper(s.title)))
		for _, b := range s.blocks {
			switch b := b.(type) {
			case kvBlock:
				for _, p := range b.pairs {
					out.printf("  %s: %s\n", p[0], p[1])
				}
			case listBlock:
				if b.heading != "" {
					out.println("")
					out.println(st.heading.Render(b.heading + ":"))
				}
				for i, item := range b.items {
					if b.numbered {
						out.printf("  %d. %s\n", i+1, item)
					} else {
						out.printf("  - %s\n", item)
					}
				}
			case tableBlock:
				tw := newTable(b)
				tw.SetStyle(table.StyleLight)
				for _, line := range strings.Split(tw.Render(), "\n") {
					out.println("  " + line)
				}
			case noteBlock:
				out.println(st.muted.Render("  " + b.text))
			}
		}
	}
	out.println(st.muted.Render(strings.Repeat("=", ruleWidth)))
	return out.err
}

func renderMarkdown(w io.Writer, d document) error {
	out := &errWriter{w: w}

	out.printf("# %s\n", d.title)
	if d.subtitle != "" {
		out.printf("\n_%s_\n", d.subtitle)
	}

	for _, s := range d.sections {
		out.printf("\n## %s\n\n", s.title)
		for i, b := range s.blocks {
			if i > 0 {
				out.println("")
			}
			switch b := b.(type) {
			case kvBlock:
				for _, p := range b.pairs {
					out.printf("- **%s:** %s\n", p[0], p[1])
				}
			case listBlock:
				if b.heading != "" {
					out.printf("### %s\n\n", b.heading)
				}
				if len(b.items) == 0 {
					out.println("_None_")
				}
				for j, item := range b.items {
					if b.numbered {
						out.printf("%d. %s\n", j+1, item)
					} else {
						out.printf("- %s\n", item)
					}
				}
			case tableBlock:
				out.println(newTable(b).RenderMarkdown())
			case noteBlock:
				out.printf("> %s\n", b.text)
			}
		}
	}
	return out.err
}

func newTable(b tableBlock) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(b.header)
	for _, r := range b.rows {
		tw.AppendRow(r)
	}
	return tw
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
