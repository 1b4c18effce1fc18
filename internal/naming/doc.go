// Package naming maps source files to output paths.
//
// Outputs are written flat into the output directory as
// <stem><suffix>.<container>, so sources with the same stem in different
// subdirectories (or with different extensions) would want the same path.
// [Assign] settles those clashes in source order before any encode starts.
package naming
