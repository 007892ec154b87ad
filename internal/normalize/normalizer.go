// Package normalize maps raw provider records into canonical entity shapes.
// Only whitelisted fields survive; everything else is dropped so provider
// schema drift cannot leak past this boundary.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/comixlabs/catalog-etl/internal/catalog"
)

// Cover date candidates, in preference order.
var dateCandidates = []string{"coverDate", "onsaleDate", "focDate", "unlimitedDate", "digitalPurchaseDate"}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

// roleAliases folds provider role spellings into the fixed vocabulary
// (writer, artist, colorist, letterer, editor, cover). Unrecognized roles
// are kept verbatim rather than rejected.
var roleAliases = map[string]string{
	"writer":            "writer",
	"penciler":          "artist",
	"penciller":         "artist",
	"inker":             "artist",
	"artist":            "artist",
	"colorist":          "colorist",
	"colourist":         "colorist",
	"letterer":          "letterer",
	"editor":            "editor",
	"cover":             "cover",
	"cover artist":      "cover",
	"penciller (cover)": "cover",
	"penciler (cover)":  "cover",
	"painter (cover)":   "cover",
}

// Normalizer converts raw comic records into NormalizedRecords.
type Normalizer struct {
	sourceSystem  string
	publisherName string
}

// New builds a Normalizer. Every output record carries the source system as
// provenance and the publisher name for first-sighting creation.
func New(sourceSystem, publisherName string) *Normalizer {
	return &Normalizer{sourceSystem: sourceSystem, publisherName: publisherName}
}

// Normalize converts one raw record. The fallback series key is used when the
// record does not carry its own series block; it normally comes from the
// series resolution step of the same pull. Returns ErrNormalization when
// mandatory identity fields (series title, issue number) are absent.
func (n *Normalizer) Normalize(rec catalog.RawRecord, fallback catalog.SeriesKey) (catalog.NormalizedRecord, error) {
	issueNumber, ok := issueNumberOf(rec)
	if !ok {
		return catalog.NormalizedRecord{}, fmt.Errorf("%w: missing issue number", catalog.ErrNormalization)
	}

	series := fallback
	series.SourceSystem = n.sourceSystem
	applySeriesBlock(rec, &series)
	if strings.TrimSpace(series.Title) == "" {
		return catalog.NormalizedRecord{}, fmt.Errorf("%w: missing series title", catalog.ErrNormalization)
	}
	series.Title = strings.TrimSpace(series.Title)

	out := catalog.NormalizedRecord{
		PublisherName: n.publisherName,
		Series:        series,
		Issue: catalog.IssueFields{
			IssueNumber:   issueNumber,
			Title:         optString(rec, "title"),
			CoverDate:     pickBestDate(rec),
			PriceCents:    printPriceCents(rec),
			ISBN:          optString(rec, "isbn"),
			UPC:           optString(rec, "upc"),
			Description:   optString(rec, "description"),
			CoverImageURL: thumbnailURL(rec),
		},
		Credits: creditsOf(rec),
	}
	return out, nil
}

// NormalizeRole folds a raw role string into the canonical vocabulary,
// keeping unknown roles verbatim (trimmed, lower-cased for identity).
func NormalizeRole(raw string) string {
	role := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := roleAliases[role]; ok {
		return canonical
	}
	return role
}

func issueNumberOf(rec catalog.RawRecord) (string, bool) {
	v, ok := rec["issueNumber"]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// applySeriesBlock overrides the fallback identity with the record's own
// series block when present: {"resourceURI": ".../series/2258", "name": ...}.
func applySeriesBlock(rec catalog.RawRecord, series *catalog.SeriesKey) {
	block, ok := rec["series"].(map[string]any)
	if !ok {
		return
	}
	if name, ok := block["name"].(string); ok && strings.TrimSpace(name) != "" {
		series.Title = name
	}
	uri, ok := block["resourceURI"].(string)
	if !ok {
		return
	}
	parts := strings.Split(strings.TrimRight(uri, "/"), "/")
	if len(parts) == 0 {
		return
	}
	last := parts[len(parts)-1]
	if _, err := strconv.ParseInt(last, 10, 64); err == nil {
		key := last
		series.SourceKey = &key
	}
}

func pickBestDate(rec catalog.RawRecord) *time.Time {
	raw, ok := rec["dates"].([]any)
	if !ok {
		return nil
	}
	byType := make(map[string]string, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := entry["type"].(string)
		date, _ := entry["date"].(string)
		if typ != "" && date != "" {
			byType[typ] = date
		}
	}
	for _, candidate := range dateCandidates {
		if t := parseAnyDate(byType[candidate]); t != nil {
			return t
		}
	}
	return nil
}

func parseAnyDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}

// printPriceCents extracts the print price in cents. Missing or negative
// prices become nil, never zero.
func printPriceCents(rec catalog.RawRecord) *int {
	raw, ok := rec["prices"].([]any)
	if !ok {
		return nil
	}
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := entry["type"].(string); typ != "printPrice" {
			continue
		}
		price, ok := entry["price"].(float64)
		if !ok || price < 0 {
			return nil
		}
		cents := int(math.Round(price * 100))
		return &cents
	}
	return nil
}

// thumbnailURL assembles the cover image URL from the thumbnail block,
// forcing https and a sized variant.
func thumbnailURL(rec catalog.RawRecord) *string {
	thumb, ok := rec["thumbnail"].(map[string]any)
	if !ok {
		return nil
	}
	path, _ := thumb["path"].(string)
	ext, _ := thumb["extension"].(string)
	if path == "" || ext == "" {
		return nil
	}
	path = strings.Replace(path, "http://", "https://", 1)
	u := fmt.Sprintf("%s/portrait_xlarge.%s", path, ext)
	return &u
}

// creditsOf extracts creators.items, trimming names and collapsing duplicate
// (creator, role) pairs from the source into one credit.
func creditsOf(rec catalog.RawRecord) []catalog.CreditRef {
	creators, ok := rec["creators"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := creators["items"].([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]catalog.CreditRef, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		role := NormalizeRole(str(entry["role"]))
		key := catalog.CreatorKey(name) + "\x00" + role
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, catalog.CreditRef{CreatorName: name, Role: role})
	}
	return out
}

func optString(rec catalog.RawRecord, field string) *string {
	s, ok := rec[field].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
