package domain

// MatchKind classifies how many countries a query matched.
type MatchKind int

const (
	NoMatch MatchKind = iota
	Resolved
	Ambiguous
	TooMany
)

// MaxListed is the largest match count still rendered as a list.
const MaxListed = 10

func (k MatchKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	case TooMany:
		return "too_many"
	default:
		return "no_match"
	}
}

// Match is the classification of a query against a directory. Countries
// holds the matches for Resolved and Ambiguous and is empty otherwise.
type Match struct {
	Kind      MatchKind
	Count     int
	Countries []Country
}

// Country returns the single matched country when the match is Resolved.
func (m Match) Country() (Country, bool) {
	if m.Kind != Resolved || len(m.Countries) != 1 {
		return Country{}, false
	}
	return m.Countries[0], true
}

// Classify filters dir by query and buckets the result by match count.
func Classify(query string, dir *Directory) Match {
	matches := dir.Filter(query)
	n := len(matches)

	switch {
	case n == 0:
		return Match{Kind: NoMatch}
	case n == 1:
		return Match{Kind: Resolved, Count: 1, Countries: matches}
	case n <= MaxListed:
		return Match{Kind: Ambiguous, Count: n, Countries: matches}
	default:
		return Match{Kind: TooMany, Count: n}
	}
}
