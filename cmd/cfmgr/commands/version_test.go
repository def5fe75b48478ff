package commands

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/cmd/cfmgr/cmdutil"
)

func runVersion(t *testing.T, format string, short bool) string {
	t.Helper()
	prevFormat, prevShort := cmdutil.Flags.Output, versionShort
	t.Cleanup(func() {
		cmdutil.Flags.Output, versionShort = prevFormat, prevShort
		versionCmd.SetOut(nil)
	})
	cmdutil.Flags.Output, versionShort = format, short

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	return buf.String()
}

func TestVersionShort(t *testing.T) {
	assert.Equal(t, Version+"\n", runVersion(t, "table", true))
}

func TestVersionJSON(t *testing.T) {
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(runVersion(t, "json", false)), &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestVersionTable(t *testing.T) {
	out := runVersion(t, "table", false)
	assert.Contains(t, out, "cfmgr "+Version)
	assert.Contains(t, out, runtime.Version())
}
