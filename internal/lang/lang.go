// Package lang provides language detection and localization for user
// queries. Detection is script-based: Arabic code points are counted
// against Latin letters, so mixed-script queries resolve to whichever
// script dominates.
package lang

import "unicode"

// Language identifies a supported query language.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// Detect returns the dominant language of text. Text with more Arabic
// letters than Latin letters is Arabic; everything else is English.
func Detect(text string) Language {
	var arabic, latin int
	for _, r := range text {
		switch {
		case isArabic(r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if arabic > latin {
		return Arabic
	}
	return English
}

// isArabic reports whether r falls in the Arabic or Arabic Supplement
// Unicode blocks.
func isArabic(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) || (r >= 0x0750 && r <= 0x077F)
}

// Direction returns the text direction for lang.
func Direction(l Language) string {
	if l == Arabic {
		return "rtl"
	}
	return "ltr"
}

// FormatNumber converts ASCII digits in s to Eastern Arabic numerals
// when l is Arabic. Other characters pass through unchanged.
func FormatNumber(s string, l Language) string {
	if l != Arabic {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, rune(0x0660+(r-'0')))
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
