package estimator

// Heuristic constant tables. Kept as ordered, read-only rule lists so the
// scoring stays auditable and independently testable: lookups scan in
// declaration order and the first matching rule wins.

// CostRule maps a lowercase header-name substring to a base cost.
type CostRule struct {
	Match string
	Cost  float64
}

// Cost model constants, in dimensionless cost units.
const (
	SystemHeaderBaseCost = 300.0
	UserHeaderBaseCost   = 150.0

	CostPerLine       = 0.5
	TemplateCostBonus = 200.0
	ClassCost         = 50.0
	NamespaceCost     = 10.0

	TemplateMultiplier = 1.5 // template instantiation overhead
	MacroMultiplier    = 1.2 // preprocessing overhead

	TransitiveDepCost = 50.0
	DepthCost         = 100.0
	DeepChainPenalty  = 200.0 // per level past DeepChainThreshold
	DeepChainThreshold = 5
)

// expensiveHeaders holds empirically determined relative costs for headers
// known to be slow to compile. Order matters: lookups take the first
// matching substring, so "map" shadows "unordered_map".
var expensiveHeaders = []CostRule{
	// C++ standard library streams
	{"iostream", 1500},
	{"iomanip", 800},
	{"sstream", 700},
	{"fstream", 900},

	// Containers
	{"vector", 800},
	{"map", 900},
	{"unordered_map", 1000},
	{"set", 850},
	{"unordered_set", 950},
	{"deque", 750},
	{"list", 700},
	{"array", 500},

	// Algorithms and iterators
	{"algorithm", 1200},
	{"iterator", 600},
	{"numeric", 650},
	{"functional", 950},

	// Strings and regex
	{"string", 700},
	{"regex", 2000}, // very expensive

	// Memory and smart pointers
	{"memory", 850},
	{"shared_ptr", 800},
	{"unique_ptr", 700},

	// Chrono and time
	{"chrono", 1100},
	{"ctime", 400},

	// Threading
	{"thread", 1200},
	{"mutex", 900},
	{"atomic", 800},
	{"condition_variable", 950},

	// Math
	{"cmath", 600},
	{"complex", 800},
	{"random", 1300},

	// Utilities
	{"utility", 500},
	{"tuple", 700},
	{"variant", 900},
	{"optional", 750},
	{"any", 800},

	// Boost (notoriously slow)
	{"boost/", 3000},
	{"boost/algorithm", 2500},
	{"boost/asio", 4000},
	{"boost/spirit", 5000}, // extremely expensive
	{"boost/fusion", 3500},

	// Other heavy libraries
	{"eigen/", 2500},
	{"opencv", 3500},
	{"tensorflow", 4500},
	{"qt", 2000},
}

// SymbolRule maps a header-name substring to signature symbols whose
// presence in a source file is strong evidence the header is used.
type SymbolRule struct {
	Match   string
	Symbols []string
}

var headerSymbols = []SymbolRule{
	{"iostream", []string{"cout", "cin", "endl", "cerr"}},
	{"vector", []string{"vector", "push_back", "emplace_back"}},
	{"string", []string{"string", "to_string"}},
	{"map", []string{"map", "unordered_map"}},
	{"algorithm", []string{"sort", "find", "transform", "for_each"}},
	{"memory", []string{"make_shared", "make_unique", "shared_ptr", "unique_ptr"}},
	{"thread", []string{"thread", "join", "detach"}},
	{"mutex", []string{"mutex", "lock_guard", "unique_lock"}},
}
