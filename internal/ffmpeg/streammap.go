package ffmpeg

import "strings"

const streamMappingMarker = "Stream mapping:"

// StreamMapParser recovers the video codec mapping from encoder diagnostics.
// It accepts both the compact single-line form
//
//	Stream mapping: #0:0 (h264) -> #0:0 (hevc)
//
// and ffmpeg's block form, where the marker stands alone and the mapping
// follows on the next lines:
//
//	Stream mapping:
//	  Stream #0:0 -> #0:0 (h264 (native) -> hevc (libx265))
//
// The first successful match wins; later lines are ignored. A zero value is
// ready to use. Not safe for concurrent use.
type StreamMapParser struct {
	armed  bool
	done   bool
	input  string
	output string
}

// Feed offers one diagnostic line. It reports true for the line that
// produced the mapping.
func (p *StreamMapParser) Feed(line string) bool {
	if p.done {
		return false
	}

	if i := strings.Index(line, streamMappingMarker); i >= 0 {
		rest := line[i+len(streamMappingMarker):]
		if trimmed := strings.TrimSpace(rest); strings.HasPrefix(trimmed, "Stream #") {
			return p.set(parseBlockLine(trimmed))
		}
		if strings.Contains(rest, "->") {
			return p.set(parseInline(rest))
		}
		p.armed = strings.TrimSpace(rest) == ""
		return false
	}

	if !p.armed {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "Stream #") {
		// End of the mapping block without a transcoded stream.
		p.armed = false
		return false
	}
	return p.set(parseBlockLine(trimmed))
}

// Result returns the parsed codec pair. ok is false until a mapping line
// has been seen.
func (p *StreamMapParser) Result() (input, output string, ok bool) {
	return p.input, p.output, p.done
}

func (p *StreamMapParser) set(in, out string) bool {
	if in == "" || out == "" {
		return false
	}
	p.input, p.output, p.done = in, out, true
	p.armed = false
	return true
}

// parseInline handles "#0:0 (h264) -> #0:0 (hevc)": the input codec is the
// last token before the arrow, the output codec the first parenthesised
// token after it (the last token when none is parenthesised).
func parseInline(rest string) (string, string) {
	parts := strings.Split(rest, "->")
	before := strings.Fields(parts[0])
	after := strings.Fields(parts[1])
	if len(before) == 0 || len(after) == 0 {
		return "", ""
	}

	out := after[len(after)-1]
	for _, tok := range after {
		if strings.HasPrefix(tok, "(") {
			out = tok
			break
		}
	}
	return trimBrackets(before[len(before)-1]), trimBrackets(out)
}

// parseBlockLine handles "Stream #0:0 -> #0:0 (h264 (native) -> hevc (libx265))".
// Stream-copy lines ("(copy)") carry no codec pair and yield nothing.
func parseBlockLine(line string) (string, string) {
	arrow := strings.Index(line, "->")
	if arrow < 0 {
		return "", ""
	}
	open := strings.Index(line[arrow:], "(")
	if open < 0 {
		return "", ""
	}
	inner := line[arrow+open+1:]
	if end := strings.LastIndex(inner, ")"); end >= 0 {
		inner = inner[:end]
	}

	sides := strings.SplitN(inner, "->", 2)
	if len(sides) != 2 {
		return "", ""
	}
	in := strings.Fields(sides[0])
	out := strings.Fields(sides[1])
	if len(in) == 0 || len(out) == 0 {
		return "", ""
	}
	return trimBrackets(in[0]), trimBrackets(out[0])
}

func trimBrackets(s string) string {
	return strings.Trim(s, "()[]")
}
