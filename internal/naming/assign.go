package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Assign returns the output path for each source, index for index. Sources
// are taken in order: the first to want a path gets it, and each later one
// gets "<stem> - dupN<ext>" with the lowest N not yet handed out. The result
// depends only on the order of sources.
func Assign(sources []string, outputDir, suffix, container string) []string {
	taken := make(map[string]bool, len(sources))
	outputs := make([]string, len(sources))
	for i, src := range sources {
		want := OutputPath(src, outputDir, suffix, container)
		outputs[i] = claim(taken, want)
	}
	return outputs
}

func claim(taken map[string]bool, want string) string {
	if !taken[want] {
		taken[want] = true
		return want
	}
	ext := filepath.Ext(want)
	stem := strings.TrimSuffix(want, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s - dup%d%s", stem, n, ext)
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
}
