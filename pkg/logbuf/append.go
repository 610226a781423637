package logbuf

import (
	"fmt"
	"strings"
)

// AppendText merges chunk c onto buffer b. An empty buffer becomes c; when
// either side already supplies the line break the two are concatenated;
// otherwise exactly one "\n" is inserted.
func AppendText(b, c string) string {
	if b == "" {
		return c
	}
	if needsSeparator(b[len(b)-1], c) {
		return b + "\n" + c
	}
	return b + c
}

func needsSeparator(last byte, c string) bool {
	return last != '\n' && !strings.HasPrefix(c, "\n")
}

// IterationHeader is the structural marker written in front of each hydrated
// iteration.
func IterationHeader(n int) string {
	return fmt.Sprintf("[Iteration %d]", n)
}

// RenderHistory joins per-iteration output into the hydrated buffer.
func RenderHistory(details []IterationOutput) string {
	blocks := make([]string, 0, len(details))
	for _, d := range details {
		blocks = append(blocks, IterationHeader(d.Number)+"\n"+d.Output)
	}
	return strings.Join(blocks, "\n\n")
}

type IterationOutput struct {
	Number int
	Output string
}
