package workflow

import (
	"strings"

	"github.com/Jeffail/gabs/v2"
)

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// lookupPath walks a dot-delimited path through nested maps and lists. Only
// non-negative numeric segments index into lists. Any miss (absent key, index out of
// range, non-numeric segment against a list, scalar in the middle of the path) yields nil.
func lookupPath(data any, path string) any {
	path = strings.TrimSpace(path)
	if path == "" {
		return data
	}
	return walkPath(data, strings.Split(path, "."))
}

// walkPath goes through a JSON pointer so gabs never expands "*" into a list fan-out.
func walkPath(data any, segments []string) any {
	if len(segments) == 0 {
		return data
	}
	if data == nil {
		return nil
	}

	var pointer strings.Builder
	for _, seg := range segments {
		pointer.WriteByte('/')
		pointer.WriteString(pointerEscaper.Replace(seg))
	}

	found, err := gabs.Wrap(data).JSONPointer(pointer.String())
	if err != nil || found == nil {
		return nil
	}
	return found.Data()
}
