// Package cohort maps cohort keys (academic years) to their source folders
// and public resource links. The registry is built once at startup and read
// concurrently without locking.
package cohort

import (
	"sort"

	"github.com/campusbrain/backend/pkg/config"
)

type Info struct {
	Key          string
	FolderID     string
	ResourceLink string
}

type Registry struct {
	cohorts    map[string]Info
	defaultKey string
}

func NewRegistry(cohorts map[string]config.CohortConfig, defaultKey string) *Registry {
	infos := make(map[string]Info, len(cohorts))
	for key, c := range cohorts {
		infos[key] = Info{
			Key:          key,
			FolderID:     c.FolderID,
			ResourceLink: c.ResourceLink,
		}
	}
	return &Registry{
		cohorts:    infos,
		defaultKey: defaultKey,
	}
}

// Known reports whether key is a configured cohort.
func (r *Registry) Known(key string) bool {
	_, ok := r.cohorts[key]
	return ok
}

// Normalize returns key if it is a known cohort, otherwise the default
// cohort. The same unknown key always resolves to the same default.
func (r *Registry) Normalize(key string) string {
	if r.Known(key) {
		return key
	}
	return r.defaultKey
}

// ResourceLink returns the cohort's public folder link, falling back to the
// default cohort's link for unknown keys.
func (r *Registry) ResourceLink(key string) string {
	return r.cohorts[r.Normalize(key)].ResourceLink
}

// FolderMap returns cohort key -> source folder id for the ingestion run.
func (r *Registry) FolderMap() map[string]string {
	m := make(map[string]string, len(r.cohorts))
	for key, info := range r.cohorts {
		m[key] = info.FolderID
	}
	return m
}

// Keys returns the configured cohort keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.cohorts))
	for key := range r.cohorts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
