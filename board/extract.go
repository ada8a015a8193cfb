package board

import (
	"strings"
)

// DefaultExtension is the attachment container accepted when none is configured
const DefaultExtension = ".webm"

// ExtensionSet is a set of accepted attachment extensions.
// Keys are lower case with a leading dot.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds an ExtensionSet. "webm", ".webm" and ".WEBM" are equivalent.
func NewExtensionSet(exts ...string) ExtensionSet {
	set := make(ExtensionSet, len(exts))
	for _, ext := range exts {
		if ext = normalizeExt(ext); ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// Contains reports whether ext is accepted
func (s ExtensionSet) Contains(ext string) bool {
	_, ok := s[normalizeExt(ext)]
	return ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Extract returns the downloadable attachments of a thread in post order.
// Posts without an accepted extension or without a remote id are skipped.
func Extract(payload *ThreadPayload, accepted ExtensionSet, listingTitle string) []AttachmentTask {
	if payload == nil {
		return nil
	}

	var tasks []AttachmentTask
	for _, post := range payload.Posts {
		if post.Ext == nil || *post.Ext == "" || !accepted.Contains(*post.Ext) {
			continue
		}
		if post.Tim == nil {
			continue
		}

		name := "unnamed"
		if post.Filename != nil && *post.Filename != "" {
			name = *post.Filename
		}

		tasks = append(tasks, AttachmentTask{
			RemoteID:           *post.Tim,
			DeclaredFilename:   name,
			Extension:          *post.Ext,
			SourceListingTitle: listingTitle,
			SizeHint:           post.FileSize,
		})
	}

	return tasks
}
