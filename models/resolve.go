package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// aliases maps folded names (lower case, no accents, single spaces) to
// registered model names. English and French spellings are accepted.
var aliases = map[string]string{
	"knn":                           "knn",
	"k nn":                          "knn",
	"k nearest neighbors":           "knn",
	"k nearest neighbours":          "knn",
	"k plus proches voisins":        "knn",
	"logistic":                      "logistic",
	"logistic regression":           "logistic",
	"logreg":                        "logistic",
	"regression logistique":         "logistic",
	"random forest":                 "random_forest",
	"rf":                            "random_forest",
	"foret aleatoire":               "random_forest",
	"knn regressor":                 "knn_regressor",
	"k nearest neighbors regressor": "knn_regressor",
	"linear":                        "linear",
	"linear regression":             "linear",
	"ols":                           "linear",
	"regression lineaire":           "linear",
	"ridge":                         "ridge",
	"ridge regression":              "ridge",
	"lasso":                         "lasso",
	"lasso regression":              "lasso",
	"random forest regressor":       "random_forest_regressor",
	"rf regressor":                  "random_forest_regressor",
}

// Resolve maps a user-supplied model name to its registered name. Matching
// ignores case, accents, underscores and hyphens. Unknown names are returned
// unchanged so that Get can report them.
func Resolve(name string) string {
	if alias, ok := aliases[fold(name)]; ok {
		return alias
	}
	return name
}

// fold lower-cases s, strips diacritics and collapses separators to single
// spaces.
func fold(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "-", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}
