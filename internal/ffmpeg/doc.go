// Package ffmpeg builds and runs encoder commands and interprets the
// encoder's diagnostic stream.
//
//   - [Build] turns one file's encode request into an argument slice. No
//     shell is involved; arguments are passed to the process verbatim.
//   - [Execute] launches the process and delivers each stderr line to a
//     callback while it runs. Progress updates end in '\r' and are split
//     like ordinary lines.
//   - [StreamMapParser] recovers the input/output codec pair from the
//     "Stream mapping:" block.
//   - [ProgressParser] turns "frame=" counters into a completion percentage.
package ffmpeg
