// Package plan defines the typed decomposition plan and validates untrusted
// oracle output into it.
package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyVocabulary is returned when no document names are configured.
	ErrEmptyVocabulary = errors.New("document vocabulary is empty")
	// ErrUnknownDocument is returned for identifiers outside the vocabulary.
	ErrUnknownDocument = errors.New("unknown document")
	// ErrUnknownStrategy is returned for strategy tags outside the closed set.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// DocumentID names one corpus document. Values only come from a Vocabulary.
type DocumentID string

// Strategy is a retrieval strategy.
type Strategy int

const (
	// StrategyUnknown is the zero value and never appears in a parsed Plan.
	StrategyUnknown Strategy = iota
	// VectorRetrieval answers from the top-K chunks of the target document.
	VectorRetrieval
	// SummaryRetrieval answers from the target document's full text.
	SummaryRetrieval
)

// Wire tags the oracle is prompted with.
const (
	TagVectorRetrieval  = "vector_retrieval"
	TagSummaryRetrieval = "llm_retrieval"
)

// Strategies lists the valid strategies in prompt order.
var Strategies = []Strategy{VectorRetrieval, SummaryRetrieval}

// String returns the wire tag.
func (s Strategy) String() string {
	switch s {
	case VectorRetrieval:
		return TagVectorRetrieval
	case SummaryRetrieval:
		return TagSummaryRetrieval
	default:
		return "unknown"
	}
}

// MarshalText encodes s as its wire tag.
func (s Strategy) MarshalText() ([]byte, error) {
	if s != VectorRetrieval && s != SummaryRetrieval {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a wire tag.
func (s *Strategy) UnmarshalText(b []byte) error {
	parsed, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy maps a wire tag to a Strategy. Matching is exact.
func ParseStrategy(tag string) (Strategy, error) {
	switch tag {
	case TagVectorRetrieval:
		return VectorRetrieval, nil
	case TagSummaryRetrieval:
		return SummaryRetrieval, nil
	default:
		return StrategyUnknown, fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
	}
}

// Vocabulary is the closed set of document identifiers, fixed at startup.
type Vocabulary struct {
	names []string
	ids   map[string]DocumentID
}

// NewVocabulary validates names and builds the vocabulary. Names are trimmed;
// blank or duplicate names are rejected.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, ErrEmptyVocabulary
	}
	v := &Vocabulary{ids: make(map[string]DocumentID, len(names))}
	for i, n := range names {
		name := strings.TrimSpace(n)
		if name == "" {
			return nil, fmt.Errorf("document name %d is blank", i)
		}
		if _, dup := v.ids[name]; dup {
			return nil, fmt.Errorf("duplicate document name %q", name)
		}
		v.ids[name] = DocumentID(name)
		v.names = append(v.names, name)
	}
	return v, nil
}

// Lookup returns the identifier for name. Matching is exact.
func (v *Vocabulary) Lookup(name string) (DocumentID, error) {
	id, ok := v.ids[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocument, name)
	}
	return id, nil
}

// Contains reports whether name is in the vocabulary.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.ids[name]
	return ok
}

// Names returns the identifiers in configuration order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Len returns the number of identifiers.
func (v *Vocabulary) Len() int {
	return len(v.names)
}
