package browser

import "strings"

// RequestFilter decides which sub-resource requests are aborted.
type RequestFilter struct {
	ResourceTypes []string // e.g. image, stylesheet, font
	URLFragments  []string // substrings of tracking and ad hosts
}

// DefaultRequestFilter blocks heavy assets and third-party tracking.
func DefaultRequestFilter() *RequestFilter {
	return &RequestFilter{
		ResourceTypes: []string{"image", "stylesheet", "font"},
		URLFragments: []string{
			"google-analytics",
			"googletagmanager",
			"doubleclick",
			"googlesyndication",
			"adservice.google",
		},
	}
}

// Block reports whether a request should be aborted and a short reason for metrics.
func (f *RequestFilter) Block(resourceType, url string) (bool, string) {
	if f == nil {
		return false, ""
	}
	for _, t := range f.ResourceTypes {
		if resourceType == t {
			return true, t
		}
	}
	for _, frag := range f.URLFragments {
		if strings.Contains(url, frag) {
			return true, "tracking"
		}
	}
	return false, ""
}
