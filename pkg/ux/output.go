// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the axiomtrace CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Mode selects between styled and plain output.
type Mode int

const (
	// ModeRich renders colors, icons and boxes.
	ModeRich Mode = iota

	// ModePlain writes undecorated, line-oriented text for pipes and scripts.
	ModePlain
)

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

type styles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	errorS  lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		heading: r.NewStyle().Bold(true).Foreground(ColorTealPrimary),
		bold:    r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(ColorSlate),
		success: r.NewStyle().Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		errorS:  r.NewStyle().Foreground(ColorError),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Printer writes styled output to one writer.
//
// Thread Safety: not safe for concurrent use.
type Printer struct {
	w     io.Writer
	mode  Mode
	style styles
}

// NewPrinter creates a Printer for w in the given mode.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode, style: newStyles(lipgloss.NewRenderer(w))}
}

// DetectMode returns ModeRich when w is a terminal and NO_COLOR is unset.
func DetectMode(w io.Writer) Mode {
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// Title prints a top-level heading.
func (p *Printer) Title(text string) {
	if p.mode == ModePlain {
		p.println("== " + text + " ==")
		return
	}
	p.println(p.style.title.Render(text))
}

// Heading prints a section heading.
func (p *Printer) Heading(text string) {
	if p.mode == ModePlain {
		p.println(text)
		return
	}
	p.println(p.style.heading.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	p.status(IconSuccess, "OK", p.style.success, format, args...)
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	p.status(IconWarning, "WARN", p.style.warning, format, args...)
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	p.status(IconError, "ERROR", p.style.errorS, format, args...)
}

func (p *Printer) status(icon Icon, tag string, st lipgloss.Style, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.mode == ModePlain {
		p.println(tag + ": " + text)
		return
	}
	p.println(st.Render(string(icon)) + " " + st.Render(text))
}

// Info prints an indented informational line.
func (p *Printer) Info(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.mode == ModePlain {
		p.println(text)
		return
	}
	p.println(p.style.muted.Render("│") + " " + text)
}

// Field prints a "key: value" line.
func (p *Printer) Field(key string, value any) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "%s: %v\n", key, value)
		return
	}
	fmt.Fprintf(p.w, "  %s %v\n", p.style.muted.Render(key+":"), value)
}

// List prints items as bullets.
func (p *Printer) List(items []string) {
	for _, it := range items {
		if p.mode == ModePlain {
			p.println("  " + it)
			continue
		}
		p.println("  " + p.style.muted.Render(string(IconBullet)) + " " + it)
	}
}

// Box prints content in a rounded box under title.
func (p *Printer) Box(title, content string) {
	if p.mode == ModePlain {
		p.println(title)
		p.println(content)
		return
	}
	p.println(p.style.box.Render(p.style.title.Render(title) + "\n" + strings.TrimRight(content, "\n")))
}

// Counts prints a one-line tally such as "3 found  1 missing  4 total".
func (p *Printer) Counts(found, missing, total int) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "SUMMARY: found=%d missing=%d total=%d\n", found, missing, total)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s\n",
		p.style.success.Render(fmt.Sprint(found)), p.style.muted.Render("found"),
		p.style.warning.Render(fmt.Sprint(missing)), p.style.muted.Render("missing"),
		p.style.bold.Render(fmt.Sprint(total)), p.style.muted.Render("total"),
	)
}
