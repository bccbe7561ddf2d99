package errors

import (
	"errors"
)

var (
	// General Errors
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")

	// Workflow Document Errors
	ErrInvalidJSON         = errors.New("document is not valid JSON")
	ErrMalformedDocument   = errors.New("malformed workflow document")
	ErrInvalidConnections  = errors.New("invalid connections encoding")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrValidationFailed    = errors.New("workflow validation failed")
	ErrNoWorkflowsFound    = errors.New("no workflow documents found")
	ErrUnsupportedEncoding = errors.New("unsupported output encoding")

	// Compression Errors
	ErrCompressionFailed      = errors.New("compression failed")
	ErrDecompressionFailed    = errors.New("decompression failed")
	ErrUnsupportedCompression = errors.New("unsupported compression format")
	ErrInvalidArchive         = errors.New("archive file is corrupted or unsupported")

	// File & Directory Errors
	ErrFileNotFound    = errors.New("file not found")
	ErrFileReadError   = errors.New("error reading file")
	ErrFileWriteError  = errors.New("error writing to file")
	ErrFileDeleteError = errors.New("error deleting file")
	ErrDirNotFound     = errors.New("directory not found")
	ErrDirCreateError  = errors.New("error creating directory")

	// Hash Errors
	ErrUnsupportedDigest = errors.New("unsupported digest algorithm")

	// Storage Errors
	ErrStoreNotFound     = errors.New("record not found")
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
	ErrStoreUnavailable  = errors.New("storage backend unavailable")
	ErrBackupFailed      = errors.New("backup failed")
	ErrRestoreFailed     = errors.New("restore failed")

	// VirusTotal API Errors
	ErrAPIKeyMissing         = errors.New("API key is required")
	ErrAPICommunicationError = errors.New("error communicating with VirusTotal API")
	ErrInvalidURL            = errors.New("invalid URL")

	// Configuration Errors
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrConfigParseError = errors.New("error parsing configuration")
)
