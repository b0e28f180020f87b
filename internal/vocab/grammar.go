package vocab

// Grammar describes the inflection a language marks on its words.
type Grammar struct {
	// Genders lists the grammatical genders of nouns. Empty when the
	// language has none.
	Genders []string

	// Persons lists the conjugation persons in order, first singular first.
	Persons []string
}

// Gendered reports whether nouns and adjectives inflect for gender.
func (g Grammar) Gendered() bool { return len(g.Genders) > 0 }

var (
	mascFem     = []string{"masculine", "feminine"}
	mascFemNeut = []string{"masculine", "feminine", "neuter"}
	commonNeut  = []string{"common", "neuter"}
)

var grammars = map[string]Grammar{
	"en": {Persons: []string{"I", "you", "he/she/it", "we", "you (pl)", "they"}},
	"es": {Genders: mascFem, Persons: []string{"yo", "tú", "él/ella/usted", "nosotros", "vosotros", "ellos/ustedes"}},
	"fr": {Genders: mascFem, Persons: []string{"je", "tu", "il/elle/on", "nous", "vous", "ils/elles"}},
	"it": {Genders: mascFem, Persons: []string{"io", "tu", "lui/lei/Lei", "noi", "voi", "loro"}},
	"pt": {Genders: mascFem, Persons: []string{"eu", "tu", "ele/ela/você", "nós", "vós", "eles/vocês"}},
	"ro": {Genders: mascFemNeut, Persons: []string{"eu", "tu", "el/ea", "noi", "voi", "ei/ele"}},
	"de": {Genders: mascFemNeut, Persons: []string{"ich", "du", "er/sie/es", "wir", "ihr", "sie/Sie"}},
	"nl": {Genders: commonNeut, Persons: []string{"ik", "jij/je", "hij/zij/het", "wij/we", "jullie", "zij/ze"}},
	"sv": {Genders: commonNeut, Persons: []string{"jag", "du", "han/hon/den/det", "vi", "ni", "de"}},
	"no": {Genders: mascFemNeut, Persons: []string{"jeg", "du", "han/hun/den/det", "vi", "dere", "de"}},
	"da": {Genders: commonNeut, Persons: []string{"jeg", "du", "han/hun/den/det", "vi", "I", "de"}},
	"pl": {Genders: mascFemNeut, Persons: []string{"ja", "ty", "on/ona/ono", "my", "wy", "oni/one"}},
	"cs": {Genders: mascFemNeut, Persons: []string{"já", "ty", "on/ona/ono", "my", "vy", "oni/ony/ona"}},
	"ru": {Genders: mascFemNeut, Persons: []string{"я", "ты", "он/она/оно", "мы", "вы", "они"}},
	"uk": {Genders: mascFemNeut, Persons: []string{"я", "ти", "він/вона/воно", "ми", "ви", "вони"}},
	"el": {Genders: mascFemNeut, Persons: []string{"εγώ", "εσύ", "αυτός/αυτή/αυτό", "εμείς", "εσείς", "αυτοί/αυτές/αυτά"}},
	"hu": {Persons: []string{"én", "te", "ő", "mi", "ti", "ők"}},
	"tr": {Persons: []string{"ben", "sen", "o", "biz", "siz", "onlar"}},
}

// GrammarFor returns the grammar of a language. Unknown languages get a
// zero Grammar: verbs still conjugate, nouns have no gender.
func GrammarFor(languageCode string) Grammar {
	return grammars[languageCode]
}

// Need names the grammar a dictionary entry is missing.
type Need int

const (
	NeedNothing Need = iota
	NeedPresentTense
	NeedNounForms
	NeedAdjectiveForms
)

// String returns the need as used in logs and API responses.
func (n Need) String() string {
	switch n {
	case NeedPresentTense:
		return "present_tense"
	case NeedNounForms:
		return "noun_forms"
	case NeedAdjectiveForms:
		return "adjective_forms"
	default:
		return "nothing"
	}
}

// Missing reports what e lacks: a present table for verbs, gender and
// plural for nouns of gendered languages, and the gendered forms of
// adjectives.
func Missing(e Entry) Need {
	g := GrammarFor(e.LanguageCode)
	switch e.WordType {
	case "verb":
		if e.Conjugations[TensePresent] == nil {
			return NeedPresentTense
		}
	case "noun":
		if g.Gendered() && (e.Gender == "" || e.Plural == "") {
			return NeedNounForms
		}
	case "adjective":
		if g.Gendered() && e.AdjectiveForms == nil {
			return NeedAdjectiveForms
		}
	}
	return NeedNothing
}
