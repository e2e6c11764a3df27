package model

import (
	"strings"
)

const (
	MaxOriginalNameLen = 255
	MaxFolderLen       = 500
	MaxDescriptionLen  = 500
	MaxTagLen          = 50
	MaxTagCount        = 20
	MaxPlaintextBytes  = 150 << 20 // 150 MiB, spec §3/§6
	MaxBatchFiles      = 10
	MaxBulkDeleteIDs   = 100
)

// pathHostileChars mirrors spec §4.5 Update: path separators and
// `<>:"/\|?*` are replaced with "_" on rename.
const pathHostileChars = `<>:"/\|?*`

// SanitizeOriginalName enforces spec §4.5 Update rules for the mutable
// original-name field: strip path separators and shell-hostile characters,
// truncate to MaxOriginalNameLen.
func SanitizeOriginalName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(pathHostileChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > MaxOriginalNameLen {
		out = out[:MaxOriginalNameLen]
	}
	return out
}

// NormalizeFolder prefixes folder with "/" if missing and truncates to
// MaxFolderLen (spec §4.5 Update).
func NormalizeFolder(folder string) string {
	if folder == "" {
		return "/"
	}
	if !strings.HasPrefix(folder, "/") {
		folder = "/" + folder
	}
	if len(folder) > MaxFolderLen {
		folder = folder[:MaxFolderLen]
	}
	return folder
}

// NormalizeTags truncates to MaxTagCount tags of at most MaxTagLen
// characters each (spec §4.5 Update: "tags (array or comma-string,
// truncated to 20 × 50)").
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > MaxTagLen {
			t = t[:MaxTagLen]
		}
		out = append(out, t)
		if len(out) == MaxTagCount {
			break
		}
	}
	return out
}

// ParseTagsInput accepts either a comma-separated string or a slice and
// normalizes either shape into a tag list (spec §4.5: "tags (array or
// comma-string")).
func ParseTagsInput(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return NormalizeTags(v)
	case string:
		return NormalizeTags(strings.Split(v, ","))
	default:
		return nil
	}
}

// NormalizeDescription truncates to MaxDescriptionLen.
func NormalizeDescription(desc string) string {
	if len(desc) > MaxDescriptionLen {
		return desc[:MaxDescriptionLen]
	}
	return desc
}
