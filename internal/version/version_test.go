package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestFull_ContainsAllFields verifies the formatted version string carries every build field.
func TestFull_ContainsAllFields(t *testing.T) {
	t.Parallel()

	full := Full()
	require.Contains(t, full, Version)
	require.Contains(t, full, Commit)
	require.Contains(t, full, BuildTime)
}

// TestFull_KeepsUpdaterParseableLead pins the "version: <semver>," lead that
// smartmeter-updater splits on when detecting the installed version.
func TestFull_KeepsUpdaterParseableLead(t *testing.T) {
	t.Parallel()

	require.True(t, strings.HasPrefix(Full(), "version: "+Version+","))
}

// TestAttachCobraVersionCommand runs the attached subcommand and checks its output.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "smartmeter-test"}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	require.True(t, strings.HasPrefix(out.String(), "version: "))
}
