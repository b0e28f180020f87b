package mastery

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchOptions names the languages whose articles and verb particles are
// ignored when comparing answers.
type MatchOptions struct {
	TargetLanguage string
	NativeLanguage string
}

var (
	parenthetical   = regexp.MustCompile(`\s*\(.*?\)\s*`)
	trailingPunct   = regexp.MustCompile(`[.!?,;:]+$`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	articlePatterns = map[string]*regexp.Regexp{
		"en": regexp.MustCompile(`^(the|a|an)\s+`),
		"es": regexp.MustCompile(`^(el|la|los|las|un|una|unos|unas)\s+`),
		"fr": regexp.MustCompile(`^((le|la|les|un|une|des|du|de la)\s+|de l'|l')`),
		"de": regexp.MustCompile(`^(der|die|das|den|dem|des|ein|eine|einen|einem|eines)\s+`),
		"it": regexp.MustCompile(`^((il|lo|la|i|gli|le|un|uno|una)\s+|un')`),
		"pt": regexp.MustCompile(`^(o|a|os|as|um|uma|uns|umas)\s+`),
		"nl": regexp.MustCompile(`^(de|het|een)\s+`),
		"el": regexp.MustCompile(`^(ο|η|το|οι|τα|ενας|μια|ενα)\s+`),
		"hu": regexp.MustCompile(`^(a|az|egy)\s+`),
		"sv": regexp.MustCompile(`^(en|ett|den|det|de)\s+`),
		"no": regexp.MustCompile(`^(en|ei|et|den|det|de)\s+`),
		"da": regexp.MustCompile(`^(en|et|den|det|de)\s+`),
		"ro": regexp.MustCompile(`^(un|o|niste)\s+`),
	}
	verbPatterns = map[string]*regexp.Regexp{
		"en": regexp.MustCompile(`^to\s+`),
		"fr": regexp.MustCompile(`^(se\s+|s')`),
		"de": regexp.MustCompile(`^zu\s+`),
		"nl": regexp.MustCompile(`^te\s+`),
	}
)

// Match reports whether a typed answer is close enough to the expected one
// to count as correct without asking a model. It ignores case, accents,
// parenthetical hints, articles, infinitive particles and small typos, and
// accepts any "/"-separated alternative of expected. A false result means
// the answer could not be confirmed locally.
func Match(given, expected string, opts MatchOptions) bool {
	g, e := cleanAnswer(given), cleanAnswer(expected)
	if g == e {
		return g != ""
	}
	if g == "" || e == "" {
		return false
	}

	langs := []string{opts.TargetLanguage}
	if opts.NativeLanguage != "" && opts.NativeLanguage != opts.TargetLanguage {
		langs = append(langs, opts.NativeLanguage)
	}
	strip := func(s string) string { return stripVerbPrefix(stripArticles(s, langs), langs) }

	if stripArticles(g, langs) == stripArticles(e, langs) {
		return true
	}
	if stripVerbPrefix(g, langs) == stripVerbPrefix(e, langs) {
		return true
	}
	gs, es := strip(g), strip(e)
	if gs == es {
		return true
	}

	var alts []string
	if strings.Contains(expected, "/") {
		for _, a := range strings.Split(expected, "/") {
			if a = cleanAnswer(a); a != "" {
				alts = append(alts, a)
			}
		}
	}
	for _, a := range alts {
		if g == a || gs == strip(a) {
			return true
		}
	}

	if typoMatch(g, e) || typoMatch(gs, es) {
		return true
	}
	for _, a := range alts {
		if typoMatch(g, a) {
			return true
		}
	}
	return false
}

func cleanAnswer(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = parenthetical.ReplaceAllString(s, " ")
	s = trailingPunct.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if hasCyrillic(s) {
		return s
	}
	return foldAccents(s)
}

func hasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// foldAccents removes combining marks except the ring above, so "å" keeps
// its identity while "é" folds to "e".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r >= 0x0300 && r <= 0x036f && r != 0x030a
	})), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func stripArticles(s string, langs []string) string {
	for _, l := range langs {
		if re, ok := articlePatterns[l]; ok {
			s = re.ReplaceAllString(s, "")
		}
	}
	return strings.TrimSpace(s)
}

func stripVerbPrefix(s string, langs []string) string {
	for _, l := range langs {
		if re, ok := verbPatterns[l]; ok {
			s = re.ReplaceAllString(s, "")
		}
	}
	return strings.TrimSpace(s)
}

// typoMatch allows one edit for words of five to nine letters and two edits
// from ten letters up. Shorter words must match exactly.
func typoMatch(a, b string) bool {
	n := max(len([]rune(a)), len([]rune(b)))
	var allowed int
	switch {
	case n <= 4:
		return a == b
	case n < 10:
		allowed = 1
	default:
		allowed = 2
	}
	return matchr.Levenshtein(a, b) <= allowed
}
