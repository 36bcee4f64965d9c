package config

import "errors"

var (
	// ErrEmptyDatabasePath is returned when the ledger database path is empty
	ErrEmptyDatabasePath = errors.New("retention database_path cannot be empty")
	// ErrInvalidMaxVersions is returned when max versions is not greater than 0
	ErrInvalidMaxVersions = errors.New("retention max_versions must be greater than 0")
	// ErrInvalidRetentionPolicy is returned when retention or recrawl days are not greater than 0
	ErrInvalidRetentionPolicy = errors.New("retention and recrawl periods must be greater than 0")
	// ErrInvalidBatchSize is returned when the classifier batch size is not greater than 0
	ErrInvalidBatchSize = errors.New("classifier batch_size must be greater than 0")
	// ErrInvalidRelevanceThreshold is returned when the merge relevance threshold is out of range
	ErrInvalidRelevanceThreshold = errors.New("merger min_relevance_score must be between 0 and 1")
	// ErrEmptyOutputDir is returned when an output directory is empty
	ErrEmptyOutputDir = errors.New("pipeline output and storage directories cannot be empty")
)
