package filters

import "strings"

// Plural and Singular apply English rules to the last underscore-separated
// word of a snake_case name. They back the {relation} -> {table} and
// {table} -> {singular}_id naming convention used by nested sorts.

var uncountable = map[string]bool{
	"audio":       true,
	"data":        true,
	"deer":        true,
	"equipment":   true,
	"feedback":    true,
	"fish":        true,
	"information": true,
	"metadata":    true,
	"money":       true,
	"news":        true,
	"rice":        true,
	"series":      true,
	"sheep":       true,
	"species":     true,
}

var irregularPlurals = map[string]string{
	"child":     "children",
	"criterion": "criteria",
	"foot":      "feet",
	"goose":     "geese",
	"man":       "men",
	"mouse":     "mice",
	"movie":     "movies",
	"ox":        "oxen",
	"person":    "people",
	"tooth":     "teeth",
	"woman":     "women",
}

var irregularSingulars = func() map[string]string {
	m := make(map[string]string, len(irregularPlurals))
	for s, p := range irregularPlurals {
		m[p] = s
	}
	return m
}()

// Plural returns the plural form of name. Names that are already plural
// are returned unchanged.
func Plural(name string) string {
	return inflectLast(name, pluralWord)
}

// Singular returns the singular form of name.
func Singular(name string) string {
	return inflectLast(name, singularWord)
}

func inflectLast(name string, fn func(string) string) string {
	i := strings.LastIndex(name, "_")
	return name[:i+1] + fn(name[i+1:])
}

func pluralWord(w string) string {
	if w == "" || uncountable[w] {
		return w
	}
	if p, ok := irregularPlurals[w]; ok {
		return p
	}
	if _, ok := irregularSingulars[w]; ok {
		return w
	}
	if s := singularWord(w); s != w && pluralRule(s) == w {
		return w
	}
	return pluralRule(w)
}

func pluralRule(w string) string {
	switch {
	case endsConsonantY(w):
		return w[:len(w)-1] + "ies"
	case strings.HasSuffix(w, "fe"):
		return w[:len(w)-2] + "ves"
	case strings.HasSuffix(w, "sis"):
		return w[:len(w)-2] + "es"
	case hasAnySuffix(w, "s", "x", "z", "ch", "sh"):
		return w + "es"
	}
	return w + "s"
}

func singularWord(w string) string {
	if w == "" || uncountable[w] {
		return w
	}
	if s, ok := irregularSingulars[w]; ok {
		return s
	}
	if _, ok := irregularPlurals[w]; ok {
		return w
	}

	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 3:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ves"):
		return w[:len(w)-3] + "fe"
	case strings.HasSuffix(w, "yses"):
		return w[:len(w)-2] + "is"
	case strings.HasSuffix(w, "ouses"):
		return w[:len(w)-1]
	case hasAnySuffix(w, "sses", "uses", "xes", "zes", "ches", "shes"):
		return w[:len(w)-2]
	case hasAnySuffix(w, "ss", "us", "is"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func endsConsonantY(w string) bool {
	if len(w) < 2 || w[len(w)-1] != 'y' {
		return false
	}
	return !strings.ContainsRune("aeiou", rune(w[len(w)-2]))
}

func hasAnySuffix(w string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(w, s) {
			return true
		}
	}
	return false
}
