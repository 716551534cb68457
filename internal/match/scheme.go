package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"quickspell/internal/domain"
)

// Scoring constants. A matched character is worth scoreMatch, gaps are
// penalised, and characters at word boundaries earn bonuses.
const (
	scoreMatch        = 16
	scoreGapStart     = -3
	scoreGapExtension = -1

	bonusBoundary    = scoreMatch / 2
	bonusNonWord     = scoreMatch / 2
	bonusCamel123    = bonusBoundary + scoreGapExtension
	bonusConsecutive = -(scoreGapStart + scoreGapExtension)

	bonusFirstCharMultiplier = 2

	// maxLane is the saturation value of every sub-score in a rank key
	maxLane = 1<<16 - 1
)

type charClass int

const (
	charWhite charClass = iota
	charNonWord
	charDelimiter
	charLower
	charUpper
	charLetter
	charNumber
)

// scheme is an immutable scoring configuration. Plain and path schemes
// differ in what counts as a delimiter and how the start of text is treated.
type scheme struct {
	bonusBoundaryWhite     int
	bonusBoundaryDelimiter int
	initialClass           charClass
	delimiters             string
	pathAware              bool
}

var (
	plainScheme = &scheme{
		bonusBoundaryWhite:     bonusBoundary + 2,
		bonusBoundaryDelimiter: bonusBoundary + 1,
		initialClass:           charWhite,
		delimiters:             "/,:;|",
	}
	pathScheme = &scheme{
		bonusBoundaryWhite:     bonusBoundary,
		bonusBoundaryDelimiter: bonusBoundary + 1,
		initialClass:           charDelimiter,
		delimiters:             `/\`,
		pathAware:              true,
	}
)

func schemeFor(s domain.Scheme) *scheme {
	if s == domain.SchemePath {
		return pathScheme
	}
	return plainScheme
}

func (s *scheme) classOf(r rune) charClass {
	if r < utf8.RuneSelf {
		switch {
		case 'a' <= r && r <= 'z':
			return charLower
		case 'A' <= r && r <= 'Z':
			return charUpper
		case '0' <= r && r <= '9':
			return charNumber
		case r == ' ' || ('\t' <= r && r <= '\r'):
			return charWhite
		case strings.ContainsRune(s.delimiters, r):
			return charDelimiter
		}
		return charNonWord
	}
	switch {
	case unicode.IsLower(r):
		return charLower
	case unicode.IsUpper(r):
		return charUpper
	case unicode.IsNumber(r):
		return charNumber
	case unicode.IsLetter(r):
		return charLetter
	case unicode.IsSpace(r):
		return charWhite
	case strings.ContainsRune(s.delimiters, r):
		return charDelimiter
	}
	return charNonWord
}

func (s *scheme) bonusFor(prev, class charClass) int {
	if class > charNonWord {
		switch prev {
		case charWhite:
			return s.bonusBoundaryWhite
		case charDelimiter:
			return s.bonusBoundaryDelimiter
		case charNonWord:
			return bonusBoundary
		}
	}
	if prev == charLower && class == charUpper || prev != charNumber && class == charNumber {
		return bonusCamel123
	}
	switch class {
	case charNonWord, charDelimiter:
		return bonusNonWord
	case charWhite:
		return s.bonusBoundaryWhite
	}
	return 0
}

func (s *scheme) isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// fold lower-cases r and strips diacritics from Latin letters so that
// "Café" matches "cafe".
func fold(r rune) rune {
	if r < utf8.RuneSelf {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	r = unicode.ToLower(r)
	if unicode.Is(unicode.Latin, r) {
		if d := norm.NFD.PropertiesString(string(r)).Decomposition(); len(d) > 0 {
			base, _ := utf8.DecodeRune(d)
			return unicode.ToLower(base)
		}
	}
	return r
}
