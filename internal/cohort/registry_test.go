package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusbrain/backend/pkg/config"
)

func testRegistry() *Registry {
	return NewRegistry(map[string]config.CohortConfig{
		"1": {FolderID: "folder-one", ResourceLink: "https://example.com/one"},
		"2": {FolderID: "folder-two", ResourceLink: "https://example.com/two"},
		"3": {FolderID: "folder-three", ResourceLink: "https://example.com/three"},
	}, "1")
}

func TestNormalizeKnownCohort(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, "2", r.Normalize("2"))
	assert.Equal(t, "3", r.Normalize("3"))
}

func TestNormalizeUnknownCohortFallsBack(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, "1", r.Normalize("9"))
	assert.Equal(t, "1", r.Normalize(""))
	assert.Equal(t, "1", r.Normalize("fourth year"))

	// Deterministic: the same unknown key always lands on the same default.
	assert.Equal(t, r.Normalize("9"), r.Normalize("9"))
}

func TestResourceLinkFallsBackForUnknown(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, "https://example.com/two", r.ResourceLink("2"))
	assert.Equal(t, "https://example.com/one", r.ResourceLink("unknown"))
}

func TestFolderMap(t *testing.T) {
	r := testRegistry()

	m := r.FolderMap()
	assert.Equal(t, map[string]string{
		"1": "folder-one",
		"2": "folder-two",
		"3": "folder-three",
	}, m)
}

func TestKeysSorted(t *testing.T) {
	r := testRegistry()

	assert.Equal(t, []string{"1", "2", "3"}, r.Keys())
}
