package vocab

import (
	"maps"
	"time"
)

// Merge folds c into existing and returns the result. Scalars are only
// filled where existing has none. Conjugations merge per tense: a tense the
// existing entry has always wins, a missing one is taken from c. Adjective
// forms merge field by field. existing is not modified.
func Merge(existing Entry, c Candidate) Entry {
	out := existing
	fill(&out.RootWord, Normalize(c.RootWord))
	fill(&out.Translation, c.Translation)
	fill(&out.WordType, c.WordType)
	fill(&out.Pronunciation, c.Pronunciation)
	fill(&out.Gender, c.Gender)
	fill(&out.Plural, c.Plural)
	fill(&out.Example, c.Example)
	fill(&out.ExampleTranslation, c.ExampleTranslation)
	fill(&out.ProTip, c.ProTip)
	out.Conjugations = mergeConjugations(existing.Conjugations, c.Conjugations)
	out.AdjectiveForms = mergeAdjectives(existing.AdjectiveForms, c.AdjectiveForms)
	return out
}

// NewEntry builds the entry a candidate becomes when its word is not yet in
// the dictionary.
func NewEntry(id, ownerID, languageCode, source string, c Candidate, now time.Time) Entry {
	e := Merge(Entry{
		ID:           id,
		OwnerID:      ownerID,
		Word:         Normalize(c.Word),
		LanguageCode: languageCode,
		Source:       source,
		CreatedAt:    now,
	}, c)
	if e.RootWord == "" {
		e.RootWord = e.Word
	}
	return e
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func mergeConjugations(existing, cand map[Tense]*TenseTable) map[Tense]*TenseTable {
	if len(existing) == 0 && len(cand) == 0 {
		return existing
	}
	out := make(map[Tense]*TenseTable, len(existing)+len(cand))
	for t, tbl := range existing {
		if tbl != nil {
			out[t] = tbl
		}
	}
	for t, tbl := range cand {
		if tbl == nil || len(tbl.Forms) == 0 {
			continue
		}
		if _, ok := out[t]; ok {
			continue
		}
		cp := *tbl
		cp.Forms = maps.Clone(tbl.Forms)
		out[t] = &cp
	}
	return out
}

func mergeAdjectives(existing, cand *AdjectiveForms) *AdjectiveForms {
	if cand == nil {
		return existing
	}
	var out AdjectiveForms
	if existing != nil {
		out = *existing
	}
	fill(&out.Masculine, cand.Masculine)
	fill(&out.Feminine, cand.Feminine)
	fill(&out.Neuter, cand.Neuter)
	fill(&out.Plural, cand.Plural)
	return &out
}
