package upload

// Storage backends a file can be uploaded to.
const (
	StorageHTTP = "http"
	StorageS3   = "s3"
)

const (
	uploadURLEnvVar          = "CHUNK_UPLOAD_URL"
	awsAccessKeyIDEnvVar     = "CHUNK_UPLOAD_AWS_ACCESS_KEY_ID"
	awsSecretAccessKeyEnvVar = "CHUNK_UPLOAD_AWS_SECRET_ACCESS_KEY"
)

// progressLogStep is the percentage difference between two progress log lines.
const progressLogStep = 10
