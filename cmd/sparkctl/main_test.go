package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobsCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"jobs"})

	require.NoError(t, root.Execute())
	assert.Equal(t, jobNames, strings.Fields(out.String()))
}

func TestRunRejectsUnknownJob(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "reindex"})

	assert.Error(t, root.Execute())
}

func TestRunAgainstMemoryStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spark.yaml")
	conf := "STORE_BACKEND: memory\nPUSH_PROVIDER: mock\nAUTH_PROVIDER: jwt\nJWT_SECRET: sparkctl-test-secret\nLOG_LEVEL: error\n"
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "run", "expire-rooms"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"scanned": 0`)
}
