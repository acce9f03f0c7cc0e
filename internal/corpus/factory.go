package corpus

import (
	"chanwatch/internal/models"
)

// Open creates a file-backed store for one channel, creating the directory
// layout if needed.
func Open(dataDir string, source models.Source, channel string) (Store, error) {
	return newFileStore(dataDir, source, channel)
}
