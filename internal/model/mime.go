package model

import "regexp"

// The MIME allow-list and category regex families from spec §4.5 and §6.
// Both the upload allow-list check and the List/Stats category
// classification read from these shared tables so they can never drift
// apart (spec: "categorization uses the same MIME regex families as list
// filter").

var (
	imageMimes    = []*regexp.Regexp{regexp.MustCompile(`^image/`)}
	videoMimes    = []*regexp.Regexp{regexp.MustCompile(`^video/`)}
	audioMimes    = []*regexp.Regexp{regexp.MustCompile(`^audio/`)}
	archiveMimes  = []*regexp.Regexp{regexp.MustCompile(`^application/(zip|x-7z-compressed|x-tar|gzip|x-rar-compressed|x-bzip2)$`)}
	documentMimes = []*regexp.Regexp{
		regexp.MustCompile(`^application/pdf$`),
		regexp.MustCompile(`^application/msword$`),
		regexp.MustCompile(`^application/vnd\.openxmlformats-officedocument\.`),
		regexp.MustCompile(`^application/vnd\.ms-excel$`),
		regexp.MustCompile(`^application/vnd\.ms-powerpoint$`),
		regexp.MustCompile(`^text/plain$`),
		regexp.MustCompile(`^text/csv$`),
		regexp.MustCompile(`^application/json$`),
		regexp.MustCompile(`^application/xml$`),
		regexp.MustCompile(`^text/xml$`),
	}
)

// AllowedUploadMimes is the full allow-list for upload (spec §4.5: "images,
// common documents, archives, common video/audio, text, JSON/XML,
// octet-stream").
var allowedUploadExtra = []*regexp.Regexp{
	regexp.MustCompile(`^application/octet-stream$`),
}

func matchAny(mimeType string, families []*regexp.Regexp) bool {
	for _, re := range families {
		if re.MatchString(mimeType) {
			return true
		}
	}
	return false
}

// IsAllowedUploadMime reports whether mimeType is in the upload allow-list.
func IsAllowedUploadMime(mimeType string) bool {
	if matchAny(mimeType, imageMimes) ||
		matchAny(mimeType, videoMimes) ||
		matchAny(mimeType, audioMimes) ||
		matchAny(mimeType, archiveMimes) ||
		matchAny(mimeType, documentMimes) ||
		matchAny(mimeType, allowedUploadExtra) {
		return true
	}
	return false
}
