// Package clipboard copies finalized transcript text to the system
// clipboard.
package clipboard

import (
	"github.com/atotto/clipboard"
)

// Copy places text on the system clipboard.
func Copy(text string) error {
	return clipboard.WriteAll(text)
}

// Available reports whether this platform has a clipboard backend.
func Available() bool {
	return !clipboard.Unsupported
}
