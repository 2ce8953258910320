package redis

import "strings"

const (
	// KeyPrefix namespaces every key the service writes
	KeyPrefix = "snip:"
	// KeyMergedSnippets holds the merged snippet set as one JSON document
	KeyMergedSnippets = KeyPrefix + "snippets:merged"
	// KeySources holds the source registry as one JSON document
	KeySources = KeyPrefix + "sources"
	// KeyUsage is the hash of expansion counters, field = trigger
	KeyUsage = KeyPrefix + "usage"
	// KeyUsageLastUsed is the hash of last expansion times, field = trigger
	KeyUsageLastUsed = KeyPrefix + "usage:last"
)

// MergedSnippetsKey returns the key of the merged snippet document
func MergedSnippetsKey() string {
	return KeyMergedSnippets
}

// SourcesKey returns the key of the source registry document
func SourcesKey() string {
	return KeySources
}

// UsageKey returns the key of the usage counter hash
func UsageKey() string {
	return KeyUsage
}

// UsageField normalizes a trigger into a hash field
func UsageField(trigger string) string {
	return strings.TrimSpace(trigger)
}
