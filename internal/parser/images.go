package parser

import (
	"regexp"
	"strings"
)

const (
	imageBaseURL         = "https://source.unsplash.com/300x200/?"
	fallbackImageKeyword = "abstract"
)

var nonKeywordRe = regexp.MustCompile(`[^a-z0-9\s]+`)

// ImageKeyword derives a deterministic search keyword from an option's
// text: lowercased, non-alphanumerics stripped, whitespace collapsed to
// hyphens. An option that reduces to nothing gets a fixed fallback so the
// outcome stays renderable.
func ImageKeyword(option string) string {
	kw := strings.ToLower(option)
	kw = nonKeywordRe.ReplaceAllString(kw, "")
	kw = strings.Join(strings.Fields(kw), "-")
	if kw == "" {
		return fallbackImageKeyword
	}
	return kw
}

// GenerateImages returns one placeholder image URL per option.
func GenerateImages(options []string) []string {
	images := make([]string, len(options))
	for i, opt := range options {
		images[i] = imageBaseURL + ImageKeyword(opt)
	}
	return images
}
