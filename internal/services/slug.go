package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9 -]+`)
	slugSeparators = regexp.MustCompile(`[\s-]+`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// Slugify lowercases value, strips diacritics, drops anything outside
// [a-z0-9 -] and joins the remaining words with single hyphens.
// Slugify(Slugify(x)) == Slugify(x).
func Slugify(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, value)
	if err != nil {
		result = value
	}
	result = strings.ToLower(result)
	result = slugInvalid.ReplaceAllString(result, "")
	result = slugSeparators.ReplaceAllString(strings.TrimSpace(result), "-")
	return strings.Trim(result, "-")
}

// slugTaken reports whether slug is used in table by a row other than excludeID.
func slugTaken(ctx context.Context, q sqlx.ExtContext, table, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		q.Rebind(`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE slug = ? AND id <> ?)`), slug, excludeID)
	return exists, err
}

// uniqueSlug derives a slug from title and appends -2, -3... until it is free.
func uniqueSlug(ctx context.Context, q sqlx.ExtContext, table, title string, excludeID int64) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = table
	}
	candidate := base
	counter := 2
	for {
		taken, err := slugTaken(ctx, q, table, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(counter)
		counter++
	}
}

func CleanTags(tags []string) []string {
	seen := make(map[string]bool)
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		value := strings.TrimSpace(tag)
		key := strings.ToLower(value)
		if value == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, value)
		if len(cleaned) >= 20 {
			break
		}
	}
	return cleaned
}

func CleanSearchTerm(term string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(term), " ")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
