// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/store"
)

const chainFile = "testdata/chain.yaml"

// writeConfig writes a config with telemetry disabled and an on-disk
// result store under a temp directory.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "axiomtrace.yaml")
	data := "logging:\n  level: warn\n  format: text\n" +
		"telemetry:\n  service_name: axiomtrace-test\n  trace_exporter: none\n  metric_exporter: none\n" +
		"store:\n  path: " + filepath.Join(dir, "results") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReconstructCmd_Text(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "reconstruct", chainFile)
	require.NoError(t, err)

	assert.Contains(t, out, "== Scenario chain ==")
	assert.Contains(t, out, "OK: instantiation 1 of q: h(?x)")
	assert.Contains(t, out, "OK: instantiation 2 of q: h(?x)")
	assert.Contains(t, out, "Starting terms:")
	assert.Contains(t, out, "SUMMARY: found=2 missing=0 total=2")
}

func TestReconstructCmd_JSONSelected(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "reconstruct", chainFile, "--json", "--instantiation", "2", "--first-only")
	require.NoError(t, err)

	var rep engine.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "chain", rep.Scenario)
	require.Len(t, rep.Results, 1)
	assert.EqualValues(t, 2, rep.Results[0].InstantiationID)
	assert.True(t, rep.Results[0].Found)
}

func TestReconstructCmd_Errors(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "--config", cfg, "reconstruct", "testdata/missing.yaml")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "reconstruct", chainFile, "--instantiation", "9")
	assert.ErrorIs(t, err, engine.ErrUnknownInstantiation)

	_, err = execute(t, "--config", cfg, "--log-level", "loud", "reconstruct", chainFile)
	assert.Error(t, err)
}

func TestSaveThenHistory(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "reconstruct", chainFile, "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 2 result(s)")

	out, err = execute(t, "--config", cfg, "history", "chain", "--json")
	require.NoError(t, err)
	var recs []*store.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "chain", recs[0].Scenario)

	out, err = execute(t, "--config", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved results:")
	assert.Contains(t, out, "chain  #1  found")
}

func TestPathsCmd(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "paths", chainFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Path 0  (length 2, cost 2.00)")
	assert.Contains(t, out, "Path explanation:")
	assert.Contains(t, out, "h-step")

	out, err = execute(t, "--config", cfg, "paths", chainFile, "--json")
	require.NoError(t, err)
	var reports []engine.PathReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Length)
}

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "axiomtrace.yaml")
	t.Setenv("AXIOMTRACE_CONFIG", path)

	out, err := execute(t, "init-config")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)
}
