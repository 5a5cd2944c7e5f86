package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bitrise-io/go-chunkupload/export"
	"github.com/bitrise-io/go-chunkupload/metrics"
	"github.com/bitrise-io/go-chunkupload/upload"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.NewLogger()
	envRepo := env.NewRepository()

	input, err := parseInput(envRepo)
	if err != nil {
		logger.Errorf("Invalid inputs: %s", err)
		return 1
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if addr := envRepo.Get("metrics_addr"); addr != "" {
		server := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warnf("Metrics server stopped: %s", err)
			}
		}()
		defer server.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader := upload.NewFileUploader(
		envRepo,
		logger,
		pathutil.NewPathModifier(),
		pathutil.NewPathChecker(),
		nil,
		collector,
	)
	result, uploadErr := uploader.Upload(ctx, input)
	if result != nil {
		exporter := export.NewExporter(command.NewFactory(envRepo))
		if err := exporter.ExportResult(result); err != nil {
			logger.Warnf("Failed to export outputs: %s", err)
		}
	}
	if uploadErr != nil {
		logger.Errorf("%s", uploadErr)
		return 1
	}

	return 0
}

func parseInput(envRepo env.Repository) (upload.UploadFileInput, error) {
	input := upload.UploadFileInput{
		StepId:     "chunk-upload",
		Path:       envRepo.Get("file_path"),
		Storage:    envRepo.Get("storage"),
		URL:        envRepo.Get("upload_url"),
		ChunkSize:  envRepo.Get("chunk_size"),
		S3Bucket:   envRepo.Get("s3_bucket"),
		S3Region:   envRepo.Get("s3_region"),
		S3Prefix:   envRepo.Get("s3_prefix"),
		S3Endpoint: envRepo.Get("s3_endpoint"),
	}

	var err error
	if input.Verbose, err = parseBool(envRepo, "verbose"); err != nil {
		return upload.UploadFileInput{}, err
	}
	if input.FailFast, err = parseBool(envRepo, "fail_fast"); err != nil {
		return upload.UploadFileInput{}, err
	}
	if v := envRepo.Get("concurrency"); v != "" {
		if input.Concurrency, err = strconv.Atoi(v); err != nil {
			return upload.UploadFileInput{}, fmt.Errorf("concurrency: %w", err)
		}
	}

	return input, nil
}

func parseBool(envRepo env.Repository, key string) (bool, error) {
	v := envRepo.Get(key)
	if v == "" {
		return false, nil
	}
	switch v {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid value %q, expected yes or no", key, v)
}
