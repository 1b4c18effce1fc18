package naming

import (
	"path/filepath"
	"strings"
)

// OutputPath builds the output file path for source.
// container is the file extension without dot (e.g. "mp4").
//
//	/media/in/sub/clip.MOV -> <outputDir>/clip_optimized.mp4
func OutputPath(source, outputDir, suffix, container string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+suffix+"."+container)
}
