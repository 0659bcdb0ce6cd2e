package maincmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"

	"github.com/thistlelang/thistle/internal/maincmd"
)

func writeScript(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.thst")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func runMain(args []string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main(append([]string{"thistle"}, args...), mainer.Stdio{Stdout: &stdout, Stderr: &stderr})
	return int(code), stdout.String(), stderr.String()
}

func TestRunSuccessExitsZero(t *testing.T) {
	path := writeScript(t, `echo 1 + 1;`)
	code, stdout, _ := runMain([]string{"run", path})
	require.Equal(t, 0, code)
	require.Equal(t, "2\n", stdout)
}

func TestRunCompileErrorExits65(t *testing.T) {
	path := writeScript(t, `echo 1 +;`)
	code, _, stderr := runMain([]string{"run", path})
	require.Equal(t, 65, code)
	require.NotEmpty(t, stderr)
}

func TestRunRuntimeErrorExits70(t *testing.T) {
	path := writeScript(t, `var x = 1; x();`)
	code, _, stderr := runMain([]string{"run", path})
	require.Equal(t, 70, code)
	require.NotEmpty(t, stderr)
}

func TestRunMissingFileExits74(t *testing.T) {
	code, _, stderr := runMain([]string{"run", filepath.Join(t.TempDir(), "missing.thst")})
	require.Equal(t, 74, code)
	require.NotEmpty(t, stderr)
}

func TestNoCommandExits64(t *testing.T) {
	code, _, _ := runMain(nil)
	require.Equal(t, 64, code)
}

func TestHelpExitsZero(t *testing.T) {
	code, stdout, _ := runMain([]string{"--help"})
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "usage:")
}

func TestDumpPrintsDisassembly(t *testing.T) {
	path := writeScript(t, `echo 1 + 2;`)
	code, stdout, _ := runMain([]string{"dump", path})
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "== <script> ==")
	require.Contains(t, stdout, "ADD")
}

func TestTokenizePrintsTokens(t *testing.T) {
	path := writeScript(t, `var a = 1;`)
	code, stdout, _ := runMain([]string{"tokenize", path})
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "var")
	require.Contains(t, stdout, "identifier")
}
