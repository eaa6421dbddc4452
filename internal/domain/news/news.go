package news

import "strings"

// Locale identifies the language requested by a client.
type Locale string

const (
	// LocaleEnglish is the only locale with its own content.
	LocaleEnglish Locale = "en"
	// LocalePolish is accepted and served the English feed.
	LocalePolish Locale = "pl"
	// LocalePortuguese is accepted and served the English feed.
	LocalePortuguese Locale = "pt"

	// DefaultLocale is used for empty or unknown locale strings.
	DefaultLocale = LocaleEnglish

	// BannerImage is the picture shown between the text entries, relative to the feed address.
	BannerImage = "news.png"
)

// Item is a single entry of the feed. Image-only entries carry no title or text.
type Item struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// ParseLocale maps s to a known locale.
// The second result is false when s is unknown and DefaultLocale was returned.
func ParseLocale(s string) (Locale, bool) {
	switch l := Locale(strings.ToLower(strings.TrimSpace(s))); l {
	case LocaleEnglish, LocalePolish, LocalePortuguese:
		return l, true
	default:
		return DefaultLocale, false
	}
}

// Feed returns the news items for the locale.
func Feed(locale Locale) []Item {
	items := []Item{
		{
			Title: "How to update",
			Text:  "The client compares its files with the manifest published at /updater\nand downloads the ones that changed.",
		},
		{
			Image: BannerImage,
		},
		{
			Title: "Release notes",
			Text:  "Files are checksummed with MD5 and listed relative to the published folder.",
		},
	}

	if locale != LocaleEnglish {
		items = append(items, Item{
			Title: "Translations",
			Text:  "Request was for language '" + string(locale) + "', however, there is only an English version of the news.",
		})
	}

	return items
}
