// Package normalize cleans contact data and builds the keys used to
// deduplicate prospects across sources.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	emailRe     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneJunkRe = regexp.MustCompile(`[^\d+]`)
	instagramRe = regexp.MustCompile(`(?i)instagram\.com/([^/?#]+)`)
	domainRe    = regexp.MustCompile(`(?i)https?://(?:www\.)?([^/?#]+)`)
)

// Instagram path segments that are not account names.
var reservedInstagramPaths = map[string]bool{
	"p": true, "reel": true, "reels": true, "stories": true, "explore": true, "accounts": true,
}

// CleanEmail lowercases and validates an email address. Invalid input
// returns "".
func CleanEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !emailRe.MatchString(email) {
		return ""
	}
	return email
}

// CleanPhone keeps digits and '+'. Results shorter than ten characters are
// rejected.
func CleanPhone(phone string) string {
	digits := phoneJunkRe.ReplaceAllString(phone, "")
	if len(digits) < 10 {
		return ""
	}
	return digits
}

// InstagramUsername extracts the account name from an Instagram URL.
func InstagramUsername(url string) string {
	m := instagramRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	if name == "" || reservedInstagramPaths[name] {
		return ""
	}
	return name
}

// InstagramURL returns the canonical profile URL for a username.
func InstagramURL(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return ""
	}
	return "https://instagram.com/" + strings.ToLower(username)
}

// Domain returns the host of an http(s) URL without a leading "www.".
func Domain(url string) string {
	m := domainRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// fold strips accents: "Café" becomes "Cafe".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// BusinessKey returns an accent-folded, lowercase, alphanumeric-only key so
// that "Café Glow & Co." and "cafe glow and co" compare close to equal.
func BusinessKey(name string) string {
	name = strings.ReplaceAll(fold(name), "&", "and")
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CitySlug turns "Denver, CO" into "denver-co".
func CitySlug(city string) string {
	city = strings.ToLower(fold(city))
	var b strings.Builder
	dash := false
	for _, r := range city {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SplitLocation splits "Denver, CO" into city and state. A location without
// a comma is all city.
func SplitLocation(loc string) (city, state string) {
	city, state, _ = strings.Cut(loc, ",")
	return strings.TrimSpace(city), strings.TrimSpace(state)
}

// TitleCase normalizes the capitalization of a scraped business name.
func TitleCase(s string) string {
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
