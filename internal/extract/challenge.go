package extract

import "strings"

// Anti-bot interstitial markers.
var (
	ChallengeTitles    = []string{"Just a moment", "Checking your browser"}
	ChallengeSelectors = []string{"#cf-spinner", "form#challenge-form"}
)

// IsChallengeTitle reports whether a page title belongs to a bot check.
// Interstitial titles start with the marker; content titles that merely
// contain it do not count.
func IsChallengeTitle(title string) bool {
	title = strings.TrimSpace(title)
	for _, marker := range ChallengeTitles {
		if strings.HasPrefix(title, marker) {
			return true
		}
	}
	return false
}

// IsChallengePage reports whether fetched HTML is a bot check rather than content.
func IsChallengePage(page string) bool {
	doc, err := parseDocument(page)
	if err != nil {
		return false
	}
	if IsChallengeTitle(doc.Find("title").First().Text()) {
		return true
	}
	for _, sel := range ChallengeSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
