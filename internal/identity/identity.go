package identity

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidProvince    = errors.New("invalid province")
	ErrIdentityIncomplete = errors.New("name, phone and province are required")
	ErrNameNotPersian     = errors.New("name must contain Persian letters only")
	ErrInvalidPhone       = errors.New("invalid phone number")
)

const zwnj = '\u200c'

var (
	reSeparators = regexp.MustCompile(`[^\p{L}\p{N}_\x{0600}-\x{06FF}]+`)
	reDigitRun   = regexp.MustCompile(`[0-9]+`)
	reUnderscore = regexp.MustCompile(`_+`)
)

// Identity is the canonical student identity used for deduplication.
type Identity struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Province string `json:"province"`
	Combined string `json:"combined"`
}

type StartInput struct {
	Combined string
	Name     string
	Phone    string
	Province string
}

func mapDigit(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	}
	return r
}

// NormalizeDigits maps Persian and Arabic-Indic digits to ASCII.
func NormalizeDigits(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(runes.Map(mapDigit), s)
	if err != nil {
		return s
	}
	return out
}

func NormalizePhone(raw string) string {
	s := NormalizeDigits(raw)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func NormalizeName(raw string) string {
	if raw == "" {
		return ""
	}
	s := norm.NFC.String(NormalizeDigits(raw))
	return strings.Join(strings.Fields(s), " ")
}

func isPersianRune(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

// IsStrictPersianName reports whether s is made only of Persian/Arabic letters
// (with their combining marks), plain spaces and ZWNJ.
func IsStrictPersianName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r == ' ' || r == zwnj:
		case isPersianRune(r) && (unicode.IsLetter(r) || unicode.Is(unicode.Mn, r)):
		default:
			return false
		}
	}
	return true
}

// ParseCombined splits free-form "name<sep>phone" input. The returned combined
// token is "name_phone", the bare phone when no name precedes it, or the bare
// name when no digits are present.
func ParseCombined(raw string) (combined, phone string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ""
	}
	s = NormalizeDigits(s)
	clean := reSeparators.ReplaceAllString(s, "_")

	loc := reDigitRun.FindStringIndex(clean)
	if loc == nil {
		return strings.TrimSpace(reUnderscore.ReplaceAllString(clean, " ")), ""
	}

	phone = clean[loc[0]:loc[1]]
	name := strings.Trim(clean[:loc[0]], "_")
	name = strings.TrimSpace(reUnderscore.ReplaceAllString(name, " "))

	combined = phone
	if name != "" {
		combined = name + "_" + phone
	}
	combined = strings.Trim(reUnderscore.ReplaceAllString(combined, "_"), "_")
	return combined, phone
}

// SplitCombined is ParseCombined plus the name part on its own.
func SplitCombined(raw string) (name, phone, combined string) {
	combined, phone = ParseCombined(raw)
	if phone == "" {
		return combined, "", combined
	}
	name = strings.TrimSuffix(strings.TrimSuffix(combined, phone), "_")
	return name, phone, combined
}

// Resolve validates a start-of-exam identity. It never touches storage.
func Resolve(in StartInput) (Identity, error) {
	province := strings.TrimSpace(in.Province)
	if !ValidProvince(province) {
		return Identity{}, ErrInvalidProvince
	}

	name := in.Name
	phoneRaw := in.Phone
	if strings.TrimSpace(in.Combined) != "" {
		n, p, _ := SplitCombined(in.Combined)
		if n != "" {
			name = n
		}
		if p != "" {
			phoneRaw = p
		}
	}

	name = NormalizeName(name)
	if name == "" || strings.TrimSpace(phoneRaw) == "" {
		return Identity{}, ErrIdentityIncomplete
	}
	if !IsStrictPersianName(name) {
		return Identity{}, ErrNameNotPersian
	}
	phone := NormalizePhone(phoneRaw)
	if phone == "" {
		return Identity{}, ErrInvalidPhone
	}

	return Identity{
		Name:     name,
		Phone:    phone,
		Province: province,
		Combined: name + "_" + phone,
	}, nil
}
