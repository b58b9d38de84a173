package domain

// CreditCounter names one metered resource on a user's balance. Counters are
// independent: consuming one never touches another.
type CreditCounter string

const (
	CreditPosterGeneration CreditCounter = "poster_generation"
	CreditAIIdentification CreditCounter = "ai_identification"
	CreditRegistryLookup   CreditCounter = "registry_lookup"
)

// Valid reports whether the counter is one of the known resource types.
func (c CreditCounter) Valid() bool {
	switch c {
	case CreditPosterGeneration, CreditAIIdentification, CreditRegistryLookup:
		return true
	}
	return false
}

// CreditBalance is a read model of one counter for one user.
type CreditBalance struct {
	UserID  string
	Counter CreditCounter
	Balance int
}
