// Package provider holds normalization helpers shared by the provider
// adapter implementations (providerhttp, providerstub).
package provider

import (
	"strings"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// statusVocabulary maps every raw status string the upstream provider is
// observed to emit onto this system's normalized ProviderStatus enum.
var statusVocabulary = map[string]domain.ProviderStatus{
	"pending":    domain.ProviderStatusQueued,
	"queued":     domain.ProviderStatusQueued,
	"processing": domain.ProviderStatusRendering,
	"rendering":  domain.ProviderStatusRendering,
	"done":       domain.ProviderStatusCompleted,
	"completed":  domain.ProviderStatusCompleted,
	"success":    domain.ProviderStatusCompleted,
	"failed":     domain.ProviderStatusFailed,
	"error":      domain.ProviderStatusFailed,
}

// NormalizeStatus maps a raw upstream status string onto the system's
// ProviderStatus enum. Unrecognized values fall back to "submitted" rather
// than erroring, since the poll worker treats unknown-but-non-terminal
// states as still in flight.
func NormalizeStatus(raw string) domain.ProviderStatus {
	if s, ok := statusVocabulary[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return domain.ProviderStatusSubmitted
}

// FormatAspectRatio translates this system's "9:16" style aspect ratio into
// the provider's "9x16" wire format.
func FormatAspectRatio(ar domain.AspectRatio) string {
	return strings.ReplaceAll(string(ar), ":", "x")
}
