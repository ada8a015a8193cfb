// Package naming turns remote titles and filenames into safe local paths.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNameLength is the maximum length of a sanitized name, in runes
	MaxNameLength = 200
	// MaxNameBytes caps the UTF-8 size of a sanitized name below the usual
	// 255 byte file name limit, leaving room for a suffix and an extension
	MaxNameBytes = 240
	// Placeholder replaces names that sanitize to nothing
	Placeholder = "unnamed"
)

// Mode selects how attachment file names are resolved
type Mode string

const (
	// ModeStable derives names from the listing contents and the files
	// already on disk so that reruns resolve every attachment to the same
	// path.
	ModeStable Mode = "stable"
	// ModeUnique picks the first free name on disk at download time.
	// Reruns download already present attachments again under a new suffix.
	ModeUnique Mode = "unique"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeStable || m == ModeUnique
}

const reserved = `<>:"/\|?*`

// Sanitize makes raw safe to use as a single path element.
// The result is never empty, at most MaxNameLength runes and at most
// MaxNameBytes bytes long.
func Sanitize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	for _, r := range raw {
		switch {
		case r == utf8.RuneError:
			sb.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			sb.WriteRune('_')
		case strings.ContainsRune(reserved, r):
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	name := strings.Trim(sb.String(), ". ")
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimRight(string([]rune(name)[:MaxNameLength]), ". ")
	}
	if len(name) > MaxNameBytes {
		name = strings.TrimRight(truncateBytes(name, MaxNameBytes), ". ")
	}
	if name == "" {
		return Placeholder
	}

	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// normalizeExt returns ext with a leading dot, or "" for no extension
func normalizeExt(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// suffixedName returns base with the numeric collision suffix n (n > 0)
func suffixedName(base string, n int) string {
	if n <= 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

// UniquePath returns dir/base+ext, or the first dir/base_N+ext that does not
// exist at call time. The result is advisory: another writer may create the
// same path before it is used, so writers must still create it exclusively.
func UniquePath(dir, base, ext string) string {
	ext = normalizeExt(ext)

	for n := 0; ; n++ {
		path := filepath.Join(dir, suffixedName(base, n)+ext)
		if !exists(path) {
			return path
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}

// Planner assigns stable file paths within one listing directory.
//
// Candidates for an attachment are tried in order: the sanitized name,
// then name_1, name_2, ... A candidate is used when nothing exists at its
// path, or when the existing file is a regular file of the attachment's
// declared size, which is how an earlier run's download is recognized.
// A file of a different size belongs to another attachment and the next
// candidate is tried. Within one listing every path is handed out once.
// When the declared size is unknown (0), any existing regular file counts
// as a match.
//
// A Planner is not safe for concurrent use.
type Planner struct {
	dir        string
	byRemoteID map[int64]string
	taken      map[string]int64
}

// NewPlanner creates an empty Planner for the listing directory dir
func NewPlanner(dir string) *Planner {
	return &Planner{
		dir:        dir,
		byRemoteID: make(map[int64]string),
		taken:      make(map[string]int64),
	}
}

// Path returns the planned path for an attachment. Names are compared
// case-insensitively so the plan holds on case-insensitive filesystems.
func (p *Planner) Path(remoteID int64, declared, ext string, size int64) string {
	if path, ok := p.byRemoteID[remoteID]; ok {
		return path
	}

	base := Sanitize(declared)
	ext = normalizeExt(ext)

	for n := 0; ; n++ {
		name := suffixedName(base, n) + ext
		key := strings.ToLower(name)
		if _, used := p.taken[key]; used {
			continue
		}

		path := filepath.Join(p.dir, name)
		if !p.available(path, size) {
			continue
		}

		p.taken[key] = remoteID
		p.byRemoteID[remoteID] = path
		return path
	}
}

// available reports whether path is free or holds a previous download of
// an attachment with the given size
func (p *Planner) available(path string, size int64) bool {
	info, err := os.Lstat(path)
	if err != nil {
		// Unreadable paths are left to the downloader to report
		return true
	}
	if !info.Mode().IsRegular() {
		return false
	}
	return size <= 0 || info.Size() == size
}
