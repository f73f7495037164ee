package signal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Combinator string

const (
	CombinatorAll Combinator = "AND"
	CombinatorAny Combinator = "OR"
)

func (c Combinator) Valid() bool {
	return c == CombinatorAll || c == CombinatorAny
}

var (
	ErrUnknownInstance   = errors.New("unknown indicator instance")
	ErrUnsupportedKind   = errors.New("unsupported indicator kind")
	ErrInvalidCondition  = errors.New("condition not supported by indicator kind")
	ErrDuplicateInstance = errors.New("duplicate indicator instance id")
	ErrInvalidCombinator = errors.New("invalid combinator")
	ErrConditionIndex    = errors.New("condition index out of range")
)

type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Threshold *float64      `json:"threshold,omitempty"`
}

func (c Condition) threshold(k IndicatorKind) float64 {
	if c.Threshold != nil {
		return *c.Threshold
	}
	return defaultThreshold(k, c.Kind)
}

// Instance is one configured indicator with its own entry and exit conditions.
type Instance struct {
	ID     string        `json:"id"`
	Kind   IndicatorKind `json:"kind"`
	Params Params        `json:"params"`
	Entry  []Condition   `json:"entry_conditions"`
	Exit   []Condition   `json:"exit_conditions"`
}

func (in Instance) clone() Instance {
	out := in
	out.Entry = cloneConditions(in.Entry)
	out.Exit = cloneConditions(in.Exit)
	return out
}

func cloneConditions(cs []Condition) []Condition {
	if cs == nil {
		return nil
	}
	out := make([]Condition, len(cs))
	for i, c := range cs {
		if c.Threshold != nil {
			th := *c.Threshold
			c.Threshold = &th
		}
		out[i] = c
	}
	return out
}

// CustomStrategy is an immutable composition of indicator instances. Every
// update returns a new value and leaves the receiver untouched.
type CustomStrategy struct {
	indicators []Instance
	entry      Combinator
	exit       Combinator
}

// NewCustomStrategy starts with no indicators, AND entry and OR exit.
func NewCustomStrategy() CustomStrategy {
	return CustomStrategy{entry: CombinatorAll, exit: CombinatorAny}
}

func (s CustomStrategy) Indicators() []Instance {
	return s.copyIndicators()
}

func (s CustomStrategy) EntryCombinator() Combinator { return s.entry }

func (s CustomStrategy) ExitCombinator() Combinator { return s.exit }

func (s CustomStrategy) Instance(id string) (Instance, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return Instance{}, false
	}
	return s.indicators[idx].clone(), true
}

func (s CustomStrategy) indexOf(id string) int {
	for i, in := range s.indicators {
		if in.ID == id {
			return i
		}
	}
	return -1
}

func (s CustomStrategy) copyIndicators() []Instance {
	out := make([]Instance, len(s.indicators))
	for i, in := range s.indicators {
		out[i] = in.clone()
	}
	return out
}

// AddIndicator appends a new instance. An empty id is replaced with a generated one.
func (s CustomStrategy) AddIndicator(id string, kind IndicatorKind, params Params) (CustomStrategy, error) {
	if !kind.Valid() {
		return s, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if id == "" {
		id = string(kind) + "-" + uuid.NewString()[:8]
	}
	if s.indexOf(id) >= 0 {
		return s, fmt.Errorf("%w: %q", ErrDuplicateInstance, id)
	}
	next := s
	next.indicators = append(s.copyIndicators(), Instance{ID: id, Kind: kind, Params: params})
	return next, nil
}

func (s CustomStrategy) RemoveIndicator(id string) (CustomStrategy, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return s, fmt.Errorf("%w: %q", ErrUnknownInstance, id)
	}
	inds := s.copyIndicators()
	next := s
	next.indicators = append(inds[:idx], inds[idx+1:]...)
	return next, nil
}

func (s CustomStrategy) SetParams(id string, params Params) (CustomStrategy, error) {
	return s.update(id, func(in *Instance) error {
		in.Params = params
		return nil
	})
}

func (s CustomStrategy) AddEntryCondition(id string, c Condition) (CustomStrategy, error) {
	return s.update(id, func(in *Instance) error {
		if !in.Kind.Supports(c.Kind) {
			return fmt.Errorf("%w: %s on %s", ErrInvalidCondition, c.Kind, in.Kind)
		}
		in.Entry = append(in.Entry, cloneConditions([]Condition{c})...)
		return nil
	})
}

func (s CustomStrategy) AddExitCondition(id string, c Condition) (CustomStrategy, error) {
	return s.update(id, func(in *Instance) error {
		if !in.Kind.Supports(c.Kind) {
			return fmt.Errorf("%w: %s on %s", ErrInvalidCondition, c.Kind, in.Kind)
		}
		in.Exit = append(in.Exit, cloneConditions([]Condition{c})...)
		return nil
	})
}

func (s CustomStrategy) RemoveEntryCondition(id string, index int) (CustomStrategy, error) {
	return s.update(id, func(in *Instance) error {
		if index < 0 || index >= len(in.Entry) {
			return fmt.Errorf("%w: %d", ErrConditionIndex, index)
		}
		in.Entry = append(in.Entry[:index], in.Entry[index+1:]...)
		return nil
	})
}

func (s CustomStrategy) RemoveExitCondition(id string, index int) (CustomStrategy, error) {
	return s.update(id, func(in *Instance) error {
		if index < 0 || index >= len(in.Exit) {
			return fmt.Errorf("%w: %d", ErrConditionIndex, index)
		}
		in.Exit = append(in.Exit[:index], in.Exit[index+1:]...)
		return nil
	})
}

func (s CustomStrategy) WithEntryCombinator(c Combinator) (CustomStrategy, error) {
	if !c.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidCombinator, c)
	}
	next := s
	next.indicators = s.copyIndicators()
	next.entry = c
	return next, nil
}

func (s CustomStrategy) WithExitCombinator(c Combinator) (CustomStrategy, error) {
	if !c.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidCombinator, c)
	}
	next := s
	next.indicators = s.copyIndicators()
	next.exit = c
	return next, nil
}

func (s CustomStrategy) update(id string, fn func(in *Instance) error) (CustomStrategy, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return s, fmt.Errorf("%w: %q", ErrUnknownInstance, id)
	}
	inds := s.copyIndicators()
	if err := fn(&inds[idx]); err != nil {
		return s, err
	}
	next := s
	next.indicators = inds
	return next, nil
}

// Describe renders the composition for logs, e.g. "rsi-1[oversold] AND ema-1[price_above]".
func (s CustomStrategy) Describe() string {
	var entry, exit []string
	for _, in := range s.indicators {
		for _, c := range in.Entry {
			entry = append(entry, fmt.Sprintf("%s[%s]", in.ID, c.Kind))
		}
		for _, c := range in.Exit {
			exit = append(exit, fmt.Sprintf("%s[%s]", in.ID, c.Kind))
		}
	}
	return fmt.Sprintf("entry: %s | exit: %s",
		strings.Join(entry, " "+string(s.entry)+" "),
		strings.Join(exit, " "+string(s.exit)+" "))
}
