package storage

import (
	"fmt"
	"strings"
)

// StagedKey builds the deterministic object key for one split message:
// {yyyy}/{MM}/{dd}/{HH}/{headerDigits}_{index}.hl7. headerDigits is the
// message's own timestamp header line, at least yyyyMMddHH digits long.
func StagedKey(headerDigits string, index int) (string, error) {
	if len(headerDigits) < 10 {
		return "", fmt.Errorf("timestamp header %q too short for a staged key", headerDigits)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s_%d.hl7",
		headerDigits[0:4], headerDigits[4:6], headerDigits[6:8], headerDigits[8:10],
		headerDigits, index,
	), nil
}

// FallbackPath is the identity used for a message that could not be staged
// because no timestamp header was extractable: {log_path}_{message_number}.
func FallbackPath(logPath string, messageNumber int) string {
	return fmt.Sprintf("%s_%d", logPath, messageNumber)
}

// URL joins a bucket, optional prefix, and key into an s3:// URL.
func URL(bucket, prefix, key string) string {
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// SplitURL parses an s3:// object URL into bucket and key.
func SplitURL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", url)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 url: %s", url)
	}
	return bucket, key, nil
}

// ParseLocation parses an s3:// location URL into bucket and optional key
// prefix, for job-level output path overrides like s3://archive/bronze.
func ParseLocation(url string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", url)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("malformed s3 url: %s", url)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
