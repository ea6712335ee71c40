package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain username", "octocat", false},
		{"repo path", "wekraft/gitpilot", false},
		{"empty string", "", false},
		{"too long", strings.Repeat("a", 201), true},
		{"null byte", "octo\x00cat", true},
		{"script tag", "<script>alert(1)</script>", true},
		{"sql comment", "octocat--", true},
		{"sql keywords", "x union select y", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateInput(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	valid := []string{"octocat", "a", "dev-o", "a.b_c", "A1"}
	for _, username := range valid {
		assert.NoError(t, sm.ValidateUsername(username), "username %q should be valid", username)
	}

	invalid := []string{"", "-octocat", "octocat-", "octo..cat", ".hidden", "has space", "has/slash"}
	for _, username := range invalid {
		assert.Error(t, sm.ValidateUsername(username), "username %q should be rejected", username)
	}
}

func TestValidateRepoPath(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	owner, repo, err := sm.ValidateRepoPath("wekraft/gitpilot")
	require.NoError(t, err)
	assert.Equal(t, "wekraft", owner)
	assert.Equal(t, "gitpilot", repo)

	invalid := []string{"gitpilot", "wekraft/", "/gitpilot", "a/b/c", "we..kraft/repo", "wekraft/re po"}
	for _, path := range invalid {
		_, _, err := sm.ValidateRepoPath(path)
		assert.Error(t, err, "path %q should be rejected", path)
	}
}

func TestSanitizeInput(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	assert.Equal(t, "octocat", sm.SanitizeInput("  octocat  "))
	assert.Equal(t, "hello", sm.SanitizeInput("<b>hello</b>"))
	assert.Equal(t, "a b", sm.SanitizeInput("a\n\t  b"))
	assert.Equal(t, "", sm.SanitizeInput(`<script>alert("x")</script>`))
}
