package datasets

import "sort"

// Spec describes a registered dataset.
type Spec struct {
	URL    string
	Target string
	Sep    string
	// Names is set for headerless files.
	Names []string
}

var registry = map[string]Spec{
	"iris": {
		URL:    "https://raw.githubusercontent.com/mwaskom/seaborn-data/master/iris.csv",
		Target: "species",
	},
	"wine": {
		URL:    "https://archive.ics.uci.edu/ml/machine-learning-databases/wine/wine.data",
		Target: "class",
		Names: []string{
			"class", "alcohol", "malic_acid", "ash", "alcalinity_of_ash",
			"magnesium", "total_phenols", "flavanoids", "nonflavanoid_phenols",
			"proanthocyanins", "color_intensity", "hue",
			"od280/od315_of_diluted_wines", "proline",
		},
	},
}

// Known returns the registered dataset names in sorted order.
func Known() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registered dataset with the given name.
func Lookup(name string) (Spec, bool) {
	s, ok := registry[name]
	return s, ok
}
