package display

import (
	"fmt"
	"io"

	"github.com/backmassage/vidoptimizer/internal/term"
)

const banner = `       _     _             _   _           _
__   _(_) __| | ___  _ __ | |_(_)_ __ ___ (_)_______ _ __
\ \ / / |/ _` + "`" + ` |/ _ \| '_ \| __| | '_ ` + "`" + ` _ \| |_  / _ \ '__|
 \ V /| | (_| | (_) | |_) | |_| | | | | | | |/ /  __/ |
  \_/ |_|\__,_|\___/| .__/ \__|_|_| |_| |_|_/___\___|_|
                    |_|
`

// PrintBanner writes the ASCII art banner, in magenta when colors are on,
// followed by version if non-empty.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Paint(term.Magenta, banner))
	if version != "" {
		fmt.Fprintf(w, "  %s\n", version)
	}
	fmt.Fprintln(w)
}
