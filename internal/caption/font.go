package caption

import (
	"os"
	"path/filepath"
	"strings"
)

var fontExtensions = map[string]bool{
	".ttf": true,
	".otf": true,
	".ttc": true,
}

var fontNameReplacer = strings.NewReplacer(" ", "", "-", "")

// FontResolver maps font family names to files in Dir, falling back to Default.
type FontResolver struct {
	Dir     string
	Default string
}

func (r FontResolver) Resolve(family string) string {
	return ResolveFont(family, r.Dir, r.Default)
}

// ResolveFont finds the font file in fontDir that best matches family.
// It first looks for a file whose normalized name contains the whole
// normalized family, then for one containing any word of the family.
// It returns defaultPath when nothing matches or fontDir cannot be read.
func ResolveFont(family, fontDir, defaultPath string) string {
	target := normalizeFontName(family)
	if target == "" {
		// an empty family would be contained in every name.
		return defaultPath
	}

	candidates := listFontFiles(fontDir)
	if len(candidates) == 0 {
		return defaultPath
	}

	for _, c := range candidates {
		if strings.Contains(c.name, target) {
			return c.path
		}
	}

	tokens := make([]string, 0)
	for _, field := range strings.Fields(family) {
		if tok := normalizeFontName(field); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	for _, c := range candidates {
		for _, tok := range tokens {
			if strings.Contains(c.name, tok) {
				return c.path
			}
		}
	}

	return defaultPath
}

type fontCandidate struct {
	path string
	name string
}

// listFontFiles returns font files in directory order (lexical by name).
func listFontFiles(dir string) []fontCandidate {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	ret := make([]fontCandidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !fontExtensions[strings.ToLower(ext)] {
			continue
		}
		ret = append(ret, fontCandidate{
			path: filepath.Join(dir, entry.Name()),
			name: normalizeFontName(strings.TrimSuffix(entry.Name(), ext)),
		})
	}
	return ret
}

func normalizeFontName(name string) string {
	return fontNameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
