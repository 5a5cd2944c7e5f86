package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/stretchr/testify/require"
)

const fakeEnvman = `#!/bin/sh
key=""
value=""
flags=""
while [ $# -gt 0 ]; do
  case "$1" in
    --key) key="$2"; shift ;;
    --value) value="$2"; shift ;;
    --no-expand) flags=" (no-expand)" ;;
  esac
  shift
done
echo "- $key: $value$flags" >> "$ENVMAN_ENVSTORE_PATH"
`

func TestExportOutput(t *testing.T) {
	envmanStorePath := setupEnvman(t, fakeEnvman)

	e := NewExporter(command.NewFactory(env.NewRepository()))
	require.NoError(t, e.ExportOutput("my_key", "my value"))

	requireEnvmanContainsValueForKey(t, "my_key", "my value", envmanStorePath)
}

func TestExportResult(t *testing.T) {
	envmanStorePath := setupEnvman(t, fakeEnvman)
	result := &chunkuploader.UploadResult{
		SessionID:  chunkuploader.SessionID("0b7d8f3e-52f4-4c8e-9d55-3f4e2a1c6b90"),
		FileName:   "$HOME.bin",
		TotalBytes: 30,
		Percentage: 66,
		Chunks: []chunkuploader.ChunkResult{
			{Index: 0, Status: chunkuploader.StatusSucceeded, Sent: 10},
			{Index: 1, Status: chunkuploader.StatusFailed},
			{Index: 2, Status: chunkuploader.StatusSucceeded, Sent: 10},
		},
	}

	e := NewExporter(command.NewFactory(env.NewRepository()))
	require.NoError(t, e.ExportResult(result))

	requireEnvmanContainsValueForKey(t, SessionIDKey, "0b7d8f3e-52f4-4c8e-9d55-3f4e2a1c6b90", envmanStorePath)
	requireEnvmanContainsValueForKey(t, FileNameKey, "$HOME.bin (no-expand)", envmanStorePath)
	requireEnvmanContainsValueForKey(t, PercentageKey, "66", envmanStorePath)
	requireEnvmanContainsValueForKey(t, FailedChunksKey, "1", envmanStorePath)
}

func TestExportResult_Nil(t *testing.T) {
	e := NewExporter(command.NewFactory(env.NewRepository()))
	require.Error(t, e.ExportResult(nil))
}

func TestExportOutput_EnvmanFails(t *testing.T) {
	setupEnvman(t, "#!/bin/sh\necho 'envstore is locked'\nexit 1\n")

	e := NewExporter(command.NewFactory(env.NewRepository()))
	err := e.ExportOutput("my_key", "my value")

	require.Error(t, err)
	require.Contains(t, err.Error(), "envstore is locked")
}

func requireEnvmanContainsValueForKey(t *testing.T, key, value string, envmanStorePath string) {
	b, err := os.ReadFile(envmanStorePath)
	require.NoError(t, err)
	envstoreContent := string(b)

	t.Logf("envstoreContent: %s\n", envstoreContent)
	require.Equal(t, true, strings.Contains(envstoreContent, "- "+key+": "+value+"\n"), envstoreContent)
}

// setupEnvman puts an envman script on the PATH that appends every added key to a temporary envstore.
func setupEnvman(t *testing.T, script string) string {
	tmpDir := t.TempDir()

	binDir := filepath.Join(tmpDir, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "envman"), []byte(script), 0755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	tmpEnvStorePth := filepath.Join(tmpDir, ".envstore.yml")
	require.NoError(t, os.WriteFile(tmpEnvStorePth, []byte(""), 0777))

	t.Setenv("ENVMAN_ENVSTORE_PATH", tmpEnvStorePth)

	return tmpEnvStorePth
}
