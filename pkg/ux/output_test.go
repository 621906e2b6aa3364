// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModePlain)

	p.Title("Reconstruction")
	p.Success("instantiation %d", 3)
	p.Warning("truncated")
	p.Error("failed: %s", "boom")
	p.Field("explored", 12)
	p.List([]string{"f(a)", "g(b)"})
	p.Counts(2, 1, 3)

	want := "== Reconstruction ==\n" +
		"OK: instantiation 3\n" +
		"WARN: truncated\n" +
		"ERROR: failed: boom\n" +
		"explored: 12\n" +
		"  f(a)\n" +
		"  g(b)\n" +
		"SUMMARY: found=2 missing=1 total=3\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_RichContainsText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, ModeRich)

	p.Success("done")
	p.Box("Path 0", "Length: 2\n")

	out := buf.String()
	assert.Contains(t, out, string(IconSuccess))
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "Path 0")
	assert.Contains(t, out, "Length: 2")
}

func TestDetectMode_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ModePlain, DetectMode(&buf))

	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, ModePlain, DetectMode(&buf))
}
