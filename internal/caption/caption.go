// Package caption builds per-platform post text from a headline and summary.
package caption

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxInstagramLength is the caption length ceiling applied before posting
	MaxInstagramLength = 500

	// MaxSummaryLength is the cut-off applied to the summary before it is
	// embedded in a caption
	MaxSummaryLength = 150

	// MaxYouTubeTitleLength is the YouTube title limit
	MaxYouTubeTitleLength = 100

	// MaxYouTubeDescriptionLength is the YouTube description limit
	MaxYouTubeDescriptionLength = 5000

	// shortsTag marks an upload as a YouTube Short
	shortsTag = "#Shorts"
)

// Builder assembles captions with a fixed brand footer.
type Builder struct {
	siteURL  string
	siteName string
}

func NewBuilder(siteURL, siteName string) *Builder {
	return &Builder{siteURL: siteURL, siteName: siteName}
}

// Instagram builds a feed/reel caption: headline, summary, category
// hashtags, then the brand footer, clamped to the platform limit.
func (b *Builder) Instagram(headline, summary, category string) string {
	var sb strings.Builder

	sb.WriteString("📰 " + headline + "\n\n")

	if summary != "" {
		if utf8.RuneCountInString(summary) > MaxSummaryLength {
			summary = clampRunes(summary, MaxSummaryLength) + "..."
		}
		sb.WriteString(summary + "\n\n")
	}

	sb.WriteString(categoryHashtag(category) + " #News #BreakingNews #Trending\n\n")

	if b.siteURL != "" {
		sb.WriteString("🔗 Read more: " + b.siteURL + "\n")
	}
	sb.WriteString("📱 Follow us for daily news updates!")

	caption := sb.String()
	if utf8.RuneCountInString(caption) > MaxInstagramLength {
		caption = clampRunes(caption, MaxInstagramLength-20) + "... #News"
	}
	return caption
}

// YouTubeTitle clamps the headline to the YouTube title limit, keeping a
// trailing ellipsis when it had to cut.
func (b *Builder) YouTubeTitle(headline string) string {
	if utf8.RuneCountInString(headline) <= MaxYouTubeTitleLength {
		return headline
	}
	return clampRunes(headline, MaxYouTubeTitleLength-3) + "..."
}

// YouTubeDescription builds a Shorts description: summary, brand footer,
// hashtags. The #Shorts tag is always present so YouTube files the upload
// as a Short.
func (b *Builder) YouTubeDescription(summary, category string) string {
	var sb strings.Builder

	if summary != "" {
		if utf8.RuneCountInString(summary) > MaxSummaryLength {
			summary = clampRunes(summary, MaxSummaryLength) + "..."
		}
		sb.WriteString(summary + "\n\n")
	}

	if b.siteName != "" {
		sb.WriteString("🌐 " + b.siteName + " - Your Daily News Source\n\n")
	}

	sb.WriteString(shortsTag + " #News #BreakingNews " + categoryHashtag(category))

	desc := sb.String()
	if utf8.RuneCountInString(desc) > MaxYouTubeDescriptionLength {
		desc = clampRunes(desc, MaxYouTubeDescriptionLength)
	}
	return desc
}

// EnsureShortsTag appends #Shorts to a description that lacks it.
func EnsureShortsTag(description string) string {
	lower := strings.ToLower(description)
	if strings.Contains(lower, strings.ToLower(shortsTag)) {
		return description
	}
	return description + "\n\n" + shortsTag
}

// clampRunes cuts s to at most n runes, never splitting a multibyte rune.
func clampRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// categoryHashtag turns "real estate" or "us-politics" into "#realestate" style tags
func categoryHashtag(category string) string {
	if category == "" {
		category = "news"
	}
	tag := strings.ReplaceAll(category, " ", "")
	tag = strings.ReplaceAll(tag, "-", "")
	return "#" + strings.ToLower(tag)
}
