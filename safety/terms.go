package safety

import (
	"strings"
	"unicode"
)

var (
	meat      = []string{"beef", "pork", "chicken", "lamb", "turkey", "duck", "veal", "bacon", "ham", "sausage", "prosciutto", "salami", "pepperoni", "gelatin", "lard"}
	pork      = []string{"pork", "bacon", "ham", "prosciutto", "salami", "pepperoni", "lard", "chorizo"}
	fish      = []string{"fish", "salmon", "tuna", "cod", "anchovy", "sardine", "tilapia", "trout", "halibut", "mackerel"}
	shellfish = []string{"shellfish", "shrimp", "prawn", "crab", "lobster", "clam", "mussel", "oyster", "scallop", "squid"}
	dairy     = []string{"dairy", "milk", "cheese", "butter", "cream", "yogurt", "whey", "casein", "ghee", "lactose", "parmesan", "mozzarella", "ricotta", "cheddar", "buttermilk"}
	gluten    = []string{"gluten", "wheat", "flour", "bread", "pasta", "barley", "rye", "couscous", "semolina", "noodle"}
	eggs      = []string{"egg", "mayonnaise", "meringue"}
	nuts      = []string{"nut", "peanut", "almond", "walnut", "cashew", "pecan", "hazelnut", "pistachio", "macadamia"}
	soy       = []string{"soy", "tofu", "tempeh", "edamame", "miso"}
	sesame    = []string{"sesame", "tahini"}
	alcohol   = []string{"wine", "beer", "rum", "vodka", "brandy", "sake"}
)

// allergenTerms expands a declared allergen group into the ingredient words it covers.
var allergenTerms = map[string][]string{
	"dairy":     dairy,
	"milk":      dairy,
	"lactose":   dairy,
	"gluten":    gluten,
	"wheat":     gluten,
	"egg":       eggs,
	"nut":       nuts,
	"tree nut":  nuts,
	"peanut":    {"peanut"},
	"fish":      fish,
	"shellfish": shellfish,
	"soy":       soy,
	"sesame":    sesame,
}

// dietTerms expands a dietary restriction into the ingredient words it forbids.
var dietTerms = map[string][]string{
	"vegetarian":  concat(meat, fish, shellfish),
	"vegan":       concat(meat, fish, shellfish, dairy, eggs, []string{"honey"}),
	"pescatarian": meat,
	"halal":       concat(pork, alcohol),
	"kosher":      concat(pork, shellfish),
	"dairy-free":  dairy,
	"gluten-free": gluten,
	"nut-free":    nuts,
	"egg-free":    eggs,
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// expand returns the term lists a constraint forbids: the constraint itself
// plus the group of every table key found in it, so "dairy products" covers
// the dairy group. Constraints naming no group forbid only themselves.
func expand(table map[string][]string, constraint string) [][]string {
	toks := tokens(constraint)
	if len(toks) == 0 {
		return nil
	}
	out := [][]string{toks}
	for _, words := range groups(table, toks) {
		for _, w := range words {
			out = append(out, tokens(w))
		}
	}
	return out
}

// groups looks up the whole token run first and falls back to every
// contiguous sub-run when the whole run is not a key.
func groups(table map[string][]string, toks []string) [][]string {
	if words, ok := table[strings.Join(toks, " ")]; ok {
		return [][]string{words}
	}
	var out [][]string
	for n := len(toks) - 1; n > 0; n-- {
		for i := 0; i+n <= len(toks); i++ {
			if words, ok := table[strings.Join(toks[i:i+n], " ")]; ok {
				out = append(out, words)
			}
		}
	}
	return out
}

// tokens lowercases s, splits it into words and strips simple plurals.
func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	var out []string
	for _, f := range fields {
		for _, part := range splitHyphen(f) {
			out = append(out, singular(part))
		}
	}
	return out
}

// splitHyphen keeps "dairy-free" whole but splits compound ingredient words
// like "whole-wheat".
func splitHyphen(f string) []string {
	if strings.HasSuffix(f, "-free") {
		return []string{f}
	}
	parts := strings.Split(f, "-")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "oes") || strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "ches")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// containsSeq reports whether needle appears as a contiguous run in hay.
func containsSeq(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// firstMatch returns the original text of the first term matching any
// forbidden word list.
func firstMatch(terms []string, forbidden [][]string) (string, bool) {
	for _, term := range terms {
		toks := tokens(term)
		for _, f := range forbidden {
			if containsSeq(toks, f) {
				return term, true
			}
		}
	}
	return "", false
}
