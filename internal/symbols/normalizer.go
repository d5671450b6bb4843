package symbols

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"viraltrade/internal/domain"
)

// Prefix is the namespace every canonical symbol lives under.
const Prefix = "VIRAL/"

// maxNameLen caps the name token of a canonical symbol.
const maxNameLen = 20

// ErrInvalidTopic is returned in strict mode when a topic cannot be
// normalized into a valid symbol.
var ErrInvalidTopic = errors.New("topic cannot be normalized to a valid symbol")

// categoryCodes maps registry categories to symbol category tokens.
// Unknown categories fall back to TREND.
var categoryCodes = map[string]string{
	"celebrity":     "CELEB",
	"music":         "MUSIC",
	"sports":        "SPORT",
	"politics":      "POLI",
	"entertainment": "ENT",
	"technology":    "TECH",
	"fashion":       "FASH",
	"food":          "FOOD",
	"meme":          "MEME",
	"challenge":     "CHAL",
	"dance":         "DANCE",
}

const fallbackCategory = "TREND"

// symbolPattern is the strict shape of a canonical symbol:
// VIRAL/ + 2-letter region + category token + name token + 3-digit id.
var symbolPattern = regexp.MustCompile(`^VIRAL/[A-Z]{2}_[A-Z]+_[A-Z0-9][A-Z0-9_]*_\d{3}$`)

// Components are the parsed parts of a canonical symbol.
type Components struct {
	Region   string
	Category string
	Name     string
	ID       string // 3-digit suffix, zero-padded
}

// Normalizer derives canonical symbols from topic metadata.
//
// In lenient mode (the default) Normalize never fails: a topic that cannot
// produce a valid symbol gets a timestamp-based placeholder so callers always
// receive a usable string. Strict mode returns ErrInvalidTopic instead.
type Normalizer struct {
	strict bool
	now    func() time.Time
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithStrictMode makes Normalize fail on malformed topics instead of
// falling back to a placeholder symbol.
func WithStrictMode() NormalizerOption {
	return func(n *Normalizer) { n.strict = true }
}

// withClock overrides the clock, for tests.
func withClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize deterministically builds the canonical symbol for a topic:
// VIRAL/{REGION}_{CATEGORY}_{NAME}_{ID}.
//
// The name token is the upper-cased title with non-alphanumerics stripped,
// whitespace collapsed to single underscores, trimmed and truncated to 20
// characters. The 3-digit id hashes name+platforms+creation time modulo
// 1000; it is probabilistic, not guaranteed unique, so callers must recover
// from collisions via GenerateAlternativeSymbols.
func (n *Normalizer) Normalize(topic *domain.Topic) (string, error) {
	if topic == nil || strings.TrimSpace(topic.Title) == "" {
		return n.fallback(topic)
	}

	name := normalizeName(topic.Title)
	if name == "" {
		return n.fallback(topic)
	}

	region := normalizeRegion(topic.Region)
	category := categoryCode(topic.Category)
	id := suffixID(name, topic.Platforms, topic.CreatedAt)

	return fmt.Sprintf("%s%s_%s_%s_%03d", Prefix, region, category, name, id), nil
}

// fallback produces the lenient placeholder symbol, or fails in strict mode.
func (n *Normalizer) fallback(topic *domain.Topic) (string, error) {
	if n.strict {
		return "", ErrInvalidTopic
	}
	ts := n.now().UTC()
	var created time.Time
	var platforms []string
	if topic != nil {
		created = topic.CreatedAt
		platforms = topic.Platforms
	}
	name := fmt.Sprintf("T%d", ts.Unix())
	id := suffixID(name, platforms, created)
	return fmt.Sprintf("%sGL_%s_%s_%03d", Prefix, fallbackCategory, name, id), nil
}

// GenerateAlternativeSymbols returns up to count collision-recovery
// candidates for a symbol, produced by incrementing the 3-digit suffix
// modulo 1000. Returns nil for malformed input.
func (n *Normalizer) GenerateAlternativeSymbols(symbol string, count int) []string {
	c := Parse(symbol)
	if c == nil || count <= 0 {
		return nil
	}

	base, err := strconv.Atoi(c.ID)
	if err != nil {
		return nil
	}

	alts := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		alt := fmt.Sprintf("%s%s_%s_%s_%03d", Prefix, c.Region, c.Category, c.Name, (base+i)%1000)
		alts = append(alts, alt)
	}
	return alts
}

// Parse is the exact inverse of Normalize for well-formed symbols.
// Returns nil on malformed input, never an error.
func Parse(symbol string) *Components {
	if !IsValid(symbol) {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(symbol, Prefix), "_")
	// region, category, name (possibly multi-token), id
	if len(parts) < 4 {
		return nil
	}
	return &Components{
		Region:   parts[0],
		Category: parts[1],
		Name:     strings.Join(parts[2:len(parts)-1], "_"),
		ID:       parts[len(parts)-1],
	}
}

// IsValid reports whether a symbol matches the strict canonical pattern.
func IsValid(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}

// normalizeName builds the name token from a topic title.
func normalizeName(title string) string {
	upper := strings.ToUpper(title)

	// Strip everything but alphanumerics and spaces.
	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			b.WriteRune(' ')
		}
	}

	// Collapse whitespace runs to single underscores.
	name := strings.Join(strings.Fields(b.String()), "_")
	name = strings.Trim(name, "_")

	if len(name) > maxNameLen {
		name = strings.TrimRight(name[:maxNameLen], "_")
	}
	return name
}

// normalizeRegion returns a 2-letter upper-case region code, GL (global)
// when the input does not provide one.
func normalizeRegion(region string) string {
	r := strings.ToUpper(strings.TrimSpace(region))
	if len(r) != 2 {
		return "GL"
	}
	for _, c := range r {
		if c < 'A' || c > 'Z' {
			return "GL"
		}
	}
	return r
}

// categoryCode maps a registry category through the fixed lookup table.
func categoryCode(category string) string {
	if code, ok := categoryCodes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return code
	}
	return fallbackCategory
}

// suffixID derives the probabilistic 3-digit suffix:
// SHA256(name|platforms|created) mod 1000.
func suffixID(name string, platforms []string, created time.Time) int {
	data := fmt.Sprintf("%s|%s|%d", name, strings.Join(platforms, ","), created.Unix())
	sum := sha256.Sum256([]byte(data))
	return int(binary.BigEndian.Uint64(sum[:8]) % 1000)
}
