// Package export exposes the outcome of an upload session to subsequent steps through envman.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/command"
)

// Output keys set after an upload session settles.
const (
	SessionIDKey    = "CHUNK_UPLOAD_SESSION_ID"
	FileNameKey     = "CHUNK_UPLOAD_FILE_NAME"
	PercentageKey   = "CHUNK_UPLOAD_PERCENTAGE"
	FailedChunksKey = "CHUNK_UPLOAD_FAILED_CHUNKS"
)

// Exporter ...
type Exporter struct {
	cmdFactory command.Factory
}

// NewExporter ...
func NewExporter(cmdFactory command.Factory) Exporter {
	return Exporter{cmdFactory: cmdFactory}
}

// ExportOutput is used for exposing values for other steps.
// Regular env vars are isolated between steps, so instead of calling `os.Setenv()`, use this to explicitly expose
// a value for subsequent steps.
func (e *Exporter) ExportOutput(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value}, nil)
	return runExport(cmd)
}

// ExportOutputNoExpand works like ExportOutput but does not expand environment variables in the value.
func (e *Exporter) ExportOutputNoExpand(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value, "--no-expand"}, nil)
	return runExport(cmd)
}

// ExportResult exports the session ID, the file name, the reached percentage
// and the comma separated indexes of failed chunks.
func (e *Exporter) ExportResult(result *chunkuploader.UploadResult) error {
	if result == nil {
		return fmt.Errorf("no upload result to export")
	}

	var failed []string
	for _, index := range result.Failed() {
		failed = append(failed, strconv.Itoa(index))
	}

	if err := e.ExportOutput(SessionIDKey, result.SessionID.String()); err != nil {
		return err
	}
	// the file name comes from the file system, it is not expanded
	if err := e.ExportOutputNoExpand(FileNameKey, result.FileName); err != nil {
		return err
	}
	if err := e.ExportOutput(PercentageKey, strconv.Itoa(result.Percentage)); err != nil {
		return err
	}
	return e.ExportOutput(FailedChunksKey, strings.Join(failed, ","))
}

func runExport(cmd command.Command) error {
	out, err := cmd.RunAndReturnTrimmedCombinedOutput()
	if err != nil {
		return fmt.Errorf("exporting output with envman failed: %s, output: %s", err, out)
	}
	return nil
}
