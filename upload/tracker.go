package upload

import (
	"time"

	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

// TrackerFactory creates the analytics tracker of a step run.
type TrackerFactory func(logger log.Logger, properties ...analytics.Properties) analytics.Tracker

type stepTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newStepTracker(stepId string, envRepo env.Repository, logger log.Logger, factory TrackerFactory) stepTracker {
	if factory == nil {
		factory = analytics.NewDefaultTracker
	}

	p := analytics.Properties{
		"step_id":           stepId,
		"step_execution_id": envRepo.Get("BITRISE_STEP_EXECUTION_ID"),
		"build_slug":        envRepo.Get("BITRISE_BUILD_SLUG"),
		"app_slug":          envRepo.Get("BITRISE_APP_SLUG"),
		"workflow":          envRepo.Get("BITRISE_TRIGGERED_WORKFLOW_ID"),
	}
	return stepTracker{
		tracker: factory(logger, p),
		logger:  logger,
	}
}

func (t *stepTracker) logFileUploaded(uploadTime time.Duration, result *chunkuploader.UploadResult, storage string) {
	properties := analytics.Properties{
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": result.TotalBytes,
		"chunk_count":       len(result.Chunks),
		"storage":           storage,
	}
	t.tracker.Enqueue("step_chunk_upload_file_uploaded", properties)
}

func (t *stepTracker) logFileUploadFailed(uploadTime time.Duration, result *chunkuploader.UploadResult, storage string) {
	properties := analytics.Properties{
		"upload_time_s": uploadTime.Truncate(time.Second).Seconds(),
		"storage":       storage,
	}
	if result != nil {
		properties["upload_size_bytes"] = result.TotalBytes
		properties["chunk_count"] = len(result.Chunks)
		properties["failed_chunk_count"] = len(result.Failed())
		properties["progress_percent"] = result.Percentage
	}
	t.tracker.Enqueue("step_chunk_upload_file_failed", properties)
}

func (t *stepTracker) wait() {
	t.tracker.Wait()
}
