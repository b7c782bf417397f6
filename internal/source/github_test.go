package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoRef(t *testing.T) {
	cases := []struct {
		in    string
		owner string
		repo  string
	}{
		{"https://github.com/acme/demo", "acme", "demo"},
		{"https://github.com/acme/demo.git", "acme", "demo"},
		{"https://github.com/acme/demo/", "acme", "demo"},
		{"github.com/acme/demo", "acme", "demo"},
		{"acme/demo", "acme", "demo"},
	}
	for _, tc := range cases {
		owner, repo, err := ParseRepoRef(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.owner, owner, tc.in)
		assert.Equal(t, tc.repo, repo, tc.in)
	}
}

func TestParseRepoRefRejectsBareName(t *testing.T) {
	_, _, err := ParseRepoRef("demo")
	assert.Error(t, err)
}

func TestPermalink(t *testing.T) {
	link := Permalink("https://github.com/acme/demo.git", "abc123", "src/main.go", 10, 12)
	assert.Equal(t, "https://github.com/acme/demo/blob/abc123/src/main.go#L10-L12", link)
}

func TestPermalinkNonGitHubRefIsEmpty(t *testing.T) {
	assert.Empty(t, Permalink("https://gitlab.com/acme/demo", "abc", "main.go", 1, 2))
	assert.Empty(t, Permalink("acme/demo", "abc", "main.go", 1, 2))
}

func TestPermalinkTrimsLeadingSlash(t *testing.T) {
	link := Permalink("https://github.com/acme/demo", "main", "/cmd/run.go", 5, 5)
	assert.Equal(t, "https://github.com/acme/demo/blob/main/cmd/run.go#L5-L5", link)
}
