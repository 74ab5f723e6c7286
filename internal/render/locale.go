package render

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// dateLayouts pairs a timestamp layout with a date-only layout.
type dateLayouts struct {
	dateTime string
	date     string
}

var supportedLocales = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Japanese,
	language.Swedish,
}

// localeLayouts is indexed like supportedLocales.
var localeLayouts = []dateLayouts{
	{dateTime: "1/2/2006, 3:04:05 PM", date: "1/2/2006"},
	{dateTime: "02/01/2006, 15:04:05", date: "02/01/2006"},
	{dateTime: "2.1.2006, 15:04:05", date: "2.1.2006"},
	{dateTime: "02/01/2006 15:04:05", date: "02/01/2006"},
	{dateTime: "2/1/2006, 15:04:05", date: "2/1/2006"},
	{dateTime: "2006/1/2 15:04:05", date: "2006/1/2"},
	{dateTime: "2006-01-02 15:04:05", date: "2006-01-02"},
}

var localeMatcher = language.NewMatcher(supportedLocales)

// dateFormatter renders report timestamps in one locale and zone.
type dateFormatter struct {
	layouts  dateLayouts
	location *time.Location
}

func newDateFormatter(locale string, location *time.Location) dateFormatter {
	if location == nil {
		location = time.UTC
	}
	return dateFormatter{layouts: localeLayouts[matchLocale(locale)], location: location}
}

// matchLocale returns the supportedLocales index closest to raw.
func matchLocale(raw string) int {
	raw = NormalizeLocale(raw)
	if raw == "" {
		return 0
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return 0
	}
	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		return 0
	}
	return index
}

// NormalizeLocale converts POSIX locale names such as "de_DE.UTF-8" into BCP 47
// form. "C" and "POSIX" normalize to empty.
func NormalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "C" || raw == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(raw, "_", "-")
}

// LocaleFromEnv resolves the report locale from the usual POSIX variables.
func LocaleFromEnv(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_TIME", "LANG"} {
		if value := NormalizeLocale(getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func (f dateFormatter) dateTime(t time.Time) string {
	return t.In(f.location).Format(f.layouts.dateTime)
}

func (f dateFormatter) date(t time.Time) string {
	return t.In(f.location).Format(f.layouts.date)
}

// optionalDate renders t as a date or fallback when t is unset.
func (f dateFormatter) optionalDate(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return f.date(*t)
}
