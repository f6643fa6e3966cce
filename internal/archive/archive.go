// Package archive keeps a copy of every uploaded file. It never influences
// retrieval; the returned location is reported back to the client.
package archive

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive stores an uploaded file and returns where it can be found.
// Implementations must be safe for concurrent use.
type Archive interface {
	Put(ctx context.Context, name string, data []byte) (location string, err error)
	// Delete removes the file previously stored at location. Deleting a
	// location that no longer exists is not an error.
	Delete(ctx context.Context, location string) error
}

// Backend enumerates the archive implementations.
type Backend string

const (
	BackendNone  Backend = "none"
	BackendLocal Backend = "local"
	BackendMinio Backend = "minio"
)

// None discards uploads. Put always returns an empty location.
type None struct{}

// Put implements Archive.
func (None) Put(context.Context, string, []byte) (string, error) { return "", nil }

// Delete implements Archive.
func (None) Delete(context.Context, string) error { return nil }

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectName builds a collision-free key of the form
// 2006/01/02/<uuid>-<sanitised base name>.
func objectName(name string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%s/%s-%s", now.UTC().Format("2006/01/02"), uuid.NewString(), base)
}
