package filter

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/tidwall/btree"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrInvalidOperator = errors.New("invalid operator")
)

// Kind classifies how an operator combines its operands.
type Kind int

const (
	KindInvalid Kind = iota

	// KindCompound operators combine a list of sub-filters, eg. and/or.
	KindCompound
	// KindBinary operators compare a field against a value, eg. eq/gt/in.
	KindBinary
	// KindUnary operators wrap a single sub-filter, eg. not.
	KindUnary
)

func (k Kind) String() string {
	switch k {
	case KindCompound:
		return "compound"
	case KindBinary:
		return "binary"
	case KindUnary:
		return "unary"
	default:
		return "invalid"
	}
}

// ParseKind parses the textual kind used within operator tables.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compound":
		return KindCompound, nil
	case "binary":
		return KindBinary, nil
	case "unary":
		return KindUnary, nil
	default:
		return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrInvalidOperator, s)
	}
}

// Operator identifies a filter operator.  Name is the key used within filter maps,
// and Symbol is used when rendering expressions as strings.
type Operator struct {
	Name   string
	Symbol string
	Kind   Kind
}

var (
	And = Operator{Name: "and", Symbol: "&&", Kind: KindCompound}
	Or  = Operator{Name: "or", Symbol: "||", Kind: KindCompound}
	Not = Operator{Name: "not", Symbol: "!", Kind: KindUnary}

	Eq       = Operator{Name: "eq", Symbol: "==", Kind: KindBinary}
	Equals   = Operator{Name: "equals", Symbol: "==", Kind: KindBinary}
	Gt       = Operator{Name: "gt", Symbol: ">", Kind: KindBinary}
	Gte      = Operator{Name: "gte", Symbol: ">=", Kind: KindBinary}
	Lt       = Operator{Name: "lt", Symbol: "<", Kind: KindBinary}
	Lte      = Operator{Name: "lte", Symbol: "<=", Kind: KindBinary}
	In       = Operator{Name: "in", Symbol: "in", Kind: KindBinary}
	Between  = Operator{Name: "between", Symbol: "between", Kind: KindBinary}
	Contains = Operator{Name: "contains", Symbol: "contains", Kind: KindBinary}
	Starts   = Operator{Name: "starts", Symbol: "starts", Kind: KindBinary}
	Ends     = Operator{Name: "ends", Symbol: "ends", Kind: KindBinary}
)

// DefaultOperators lists the operators recognized by DefaultRegistry.
var DefaultOperators = []Operator{
	And, Or, Not,
	Eq, Equals, Gt, Gte, Lt, Lte, In, Between, Contains, Starts, Ends,
}

// Classifier resolves filter map keys into operators.  Keys which are not operators
// must return an error wrapping ErrUnknownOperator;  keys which resolve to an
// unusable operator return an error wrapping ErrInvalidOperator.
//
// The tree builder treats every error as "this key is a field name".
type Classifier interface {
	Classify(key string) (Operator, error)
}

// Registry is a Classifier backed by an ordered operator table.  It is safe for
// concurrent use.
type Registry struct {
	lock *sync.RWMutex
	ops  *btree.Map[string, Operator]
}

// NewRegistry returns a registry containing the given operators.
func NewRegistry(ops ...Operator) (*Registry, error) {
	r := &Registry{
		lock: &sync.RWMutex{},
		ops:  btree.NewMap[string, Operator](0),
	}
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a new registry containing DefaultOperators.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(DefaultOperators...)
	return r
}

// Register adds or replaces an operator.
func (r *Registry) Register(op Operator) error {
	if op.Name == "" {
		return fmt.Errorf("%w: operator has no name", ErrInvalidOperator)
	}
	if op.Kind < KindCompound || op.Kind > KindUnary {
		return fmt.Errorf("%w: operator %q has kind %s", ErrInvalidOperator, op.Name, op.Kind)
	}
	if op.Symbol == "" {
		op.Symbol = op.Name
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.ops.Set(op.Name, op)
	return nil
}

func (r *Registry) Classify(key string) (Operator, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	op, ok := r.ops.Get(key)
	if !ok {
		return Operator{}, fmt.Errorf("%w: %q", ErrUnknownOperator, key)
	}
	return op, nil
}

// Operators returns all registered operators ordered by name.
func (r *Registry) Operators() []Operator {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.ops.Values()
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.ops.Len()
}

// operatorTable is the YAML representation of an operator table:
//
//	extend: true
//	operators:
//	  - name: like
//	    symbol: "~"
//	    kind: binary
type operatorTable struct {
	Extend    bool `yaml:"extend"`
	Operators []struct {
		Name   string `yaml:"name"`
		Symbol string `yaml:"symbol"`
		Kind   string `yaml:"kind"`
	} `yaml:"operators"`
}

// LoadRegistry reads a YAML operator table.  If the table sets `extend: true`, its
// operators are added to (and may override) DefaultOperators.
func LoadRegistry(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading operator table: %w", err)
	}

	var table operatorTable
	if err := yaml.UnmarshalWithOptions(data, &table, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("error parsing operator table: %w", err)
	}

	reg, _ := NewRegistry()
	if table.Extend {
		reg = DefaultRegistry()
	}

	for n, item := range table.Operators {
		kind, err := ParseKind(item.Kind)
		if err != nil {
			return nil, fmt.Errorf("operator %d (%q): %w", n, item.Name, err)
		}
		op := Operator{Name: item.Name, Symbol: item.Symbol, Kind: kind}
		if err := reg.Register(op); err != nil {
			return nil, fmt.Errorf("operator %d: %w", n, err)
		}
	}
	return reg, nil
}
