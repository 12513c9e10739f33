package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/video-captioner/internal/caption"
)

// Filename is the rule file picked up next to a video by FindInAncestors.
const Filename = "replace_rules.json"

// FindInAncestors walks up from startDir looking for a rule file.
// Returns the first found path or empty string.
func FindInAncestors(startDir string) string {
	currentDir := startDir

	for {
		candidate := filepath.Join(currentDir, Filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Load reads a JSON array of {find, replace} objects. Both keys must be
// present; an empty find is allowed and matches every word.
func Load(path string) ([]caption.ReplacementRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) ([]caption.ReplacementRule, error) {
	var raw []map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse replacement rules: %w", err)
	}

	ret := make([]caption.ReplacementRule, 0, len(raw))
	for i, r := range raw {
		find, replace := r["find"], r["replace"]
		if find == nil || replace == nil {
			return nil, fmt.Errorf("replacement rule %d: find and replace are required", i)
		}
		ret = append(ret, caption.ReplacementRule{Find: *find, Replace: *replace})
	}
	return ret, nil
}

// Save writes rules to a JSON file with indentation.
func Save(path string, rules []caption.ReplacementRule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Merge returns base followed by overrides. Rules are applied in order and
// a later match replaces an earlier one, so overrides take precedence.
func Merge(base, overrides []caption.ReplacementRule) []caption.ReplacementRule {
	if len(base) == 0 {
		return overrides
	}
	ret := make([]caption.ReplacementRule, 0, len(base)+len(overrides))
	ret = append(ret, base...)
	return append(ret, overrides...)
}
