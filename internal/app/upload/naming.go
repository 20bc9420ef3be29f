package upload

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extension returns the lowercased extension of ref without any query string,
// "jpg" when there is none, and with heic mapped to jpg.
func Extension(ref string) string {
	ref, _, _ = strings.Cut(ref, "?")
	base := path.Base(strings.ReplaceAll(ref, "\\", "/"))

	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return "jpg"
	}
	return normalizeExt(base[i+1:])
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	switch ext {
	case "":
		return "jpg"
	case "heic":
		return "jpg"
	}
	return ext
}

// ContentType maps an extension to the image MIME type sent to storage.
func ContentType(ext string) string {
	if ext == "jpg" {
		return "image/jpeg"
	}
	return "image/" + ext
}

// ObjectName derives a time-based, collision-resistant key for ext.
func ObjectName(now time.Time, ext string) (key, contentType string) {
	ext = normalizeExt(ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), suffix, ext), ContentType(ext)
}
