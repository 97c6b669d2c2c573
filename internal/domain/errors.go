package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no participant session exists for an ID.
	ErrSessionNotFound = errors.New("study session not found")
	// ErrExportUnavailable is returned when manual export is requested while remote reporting works.
	ErrExportUnavailable = errors.New("manual export only available when remote reporting is offline")
	// ErrNoEndpoint marks a report attempted with no remote endpoint configured.
	ErrNoEndpoint = errors.New("no remote endpoint configured")
	// ErrNotAcknowledged indicates the remote endpoint answered without a truthy acknowledgment.
	ErrNotAcknowledged = errors.New("report not acknowledged")
)
