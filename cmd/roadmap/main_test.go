package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetEnvValueReplacesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROADMAP_JWT_SECRET=s\nROADMAP_PROJECT=old"), 0o644))

	require.NoError(t, setEnvValue(path, "ROADMAP_PROJECT", "new"))
	require.NoError(t, setEnvValue(path, "ROADMAP_DEV_AUTH", "true"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "ROADMAP_JWT_SECRET=s\nROADMAP_PROJECT=new\nROADMAP_DEV_AUTH=true\n", string(data))
}

func TestObjectiveListStartsIncomplete(t *testing.T) {
	objs := objectiveList([]string{"write", "ship"})
	require.Len(t, objs, 2)
	require.Equal(t, "ship", objs[1].Title)
	require.False(t, objs[0].Completed)
	require.Empty(t, objectiveList(nil))
}
