package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

func TestFindInAncestors(t *testing.T) {
	// root/
	//   replace_rules.json
	//   show/
	//     episode1/
	root := t.TempDir()
	show := filepath.Join(root, "show")
	episode := filepath.Join(show, "episode1")
	require.NoError(t, os.MkdirAll(episode, 0755))

	rulesPath := filepath.Join(root, Filename)
	require.NoError(t, os.WriteFile(rulesPath, []byte(`[]`), 0644))

	assert.Equal(t, rulesPath, FindInAncestors(episode))
	assert.Equal(t, rulesPath, FindInAncestors(show))
}

func TestFindInAncestors_NotFound(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	// the walk continues above root, so only assert nothing inside root matched
	found := FindInAncestors(sub)
	if found != "" {
		assert.NotContains(t, found, root)
	}
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	want := []caption.ReplacementRule{
		{Find: "damn", Replace: "darn"},
		{Find: "gonna", Replace: "going to"},
	}

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []caption.ReplacementRule
		wantErr bool
	}{
		{
			name:  "empty find is allowed",
			input: `[{"find": "", "replace": "x"}]`,
			want:  []caption.ReplacementRule{{Find: "", Replace: "x"}},
		},
		{
			name:  "empty list",
			input: `[]`,
			want:  []caption.ReplacementRule{},
		},
		{
			name:    "missing replace",
			input:   `[{"find": "a"}]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			input:   `{"find": "a", "replace": "b"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMerge_OverridesWin(t *testing.T) {
	base := []caption.ReplacementRule{{Find: "damn", Replace: "darn"}}
	overrides := []caption.ReplacementRule{{Find: "darn", Replace: "[bleep]"}}

	merged := Merge(base, overrides)
	require.Len(t, merged, 2)
	assert.Equal(t, "[bleep]", caption.Normalize("damnit", merged, false))
	assert.Equal(t, "darn", caption.Normalize("damnit", Merge(overrides, base), false))

	assert.Equal(t, overrides, Merge(nil, overrides))
	assert.Equal(t, base, Merge(base, nil))
}
