// Package corereason is an introspective fact store over three of the
// control core's event vocabularies -- tier resolutions, escalations and
// structured errors -- so a host process can retrieve a finished task's
// full reasoning trail ("why did step 4 escalate?") by
// predicate. It never feeds decisions back into the control loop: corectl's
// tiered policy resolves tiers on its own deterministic rules, and
// corereason only watches.
package corereason

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// baseSchema declares the three predicates this package ever inserts facts
// for. No rules are declared: corereason is a fact store, not a rule engine.
const baseSchema = `
Decl tier_resolution(TaskId, Step, Tier, Reason).
Decl escalation(TaskId, Step, FromTier, ToTier).
Decl structured_error(TaskId, Step, ErrorType, Message).
`

// Fact is one ground atom to insert: a predicate name plus its arguments.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// Reasoner wraps a Google Mangle in-memory fact store bound to baseSchema.
type Reasoner struct {
	mu             sync.RWMutex
	store          factstore.ConcurrentFactStore
	baseStore      factstore.FactStoreWithRemove
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
	factLimit      int
	factCount      int
}

// DefaultFactLimit bounds a single task's introspection store. A task never
// legitimately needs more steps than this to exhaust its step budget many
// times over; the limit exists so a runaway loop can't grow this store
// without bound.
const DefaultFactLimit = 100_000

// NewReasoner builds a Reasoner with baseSchema already loaded.
func NewReasoner() (*Reasoner, error) {
	base := factstore.NewSimpleInMemoryStore()
	r := &Reasoner{
		baseStore:      base,
		store:          factstore.NewConcurrentFactStore(base),
		predicateIndex: make(map[string]ast.PredicateSym),
		factLimit:      DefaultFactLimit,
	}
	if err := r.loadSchema(baseSchema); err != nil {
		return nil, fmt.Errorf("corereason: load schema: %w", err)
	}
	return r, nil
}

func (r *Reasoner) loadSchema(schema string) error {
	unit, err := parse.Unit(strings.NewReader(schema))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("analyze schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.programInfo = programInfo
	r.predicateIndex = make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		r.predicateIndex[sym.Symbol] = sym
	}
	return nil
}

// AddFact inserts a single fact.
func (r *Reasoner) AddFact(predicate string, args ...interface{}) error {
	return r.AddFacts([]Fact{{Predicate: predicate, Args: args}})
}

// AddFacts inserts multiple facts in one batch, in order. It stops at the
// first fact that fails to insert; facts before it stay inserted.
func (r *Reasoner) AddFacts(facts []Fact) error {
	if len(facts) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.programInfo == nil {
		return fmt.Errorf("corereason: schema not loaded")
	}

	for _, fact := range facts {
		if err := r.insertFactLocked(fact); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reasoner) insertFactLocked(fact Fact) error {
	if r.factLimit > 0 && r.factCount >= r.factLimit {
		return fmt.Errorf("corereason: fact limit exceeded: %d", r.factLimit)
	}

	atom, err := r.factToAtomLocked(fact)
	if err != nil {
		return err
	}
	if r.store.Add(atom) {
		r.factCount++
	}
	return nil
}

func (r *Reasoner) factToAtomLocked(fact Fact) (ast.Atom, error) {
	sym, ok := r.predicateIndex[fact.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("corereason: predicate %s is not declared", fact.Predicate)
	}
	if len(fact.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("corereason: predicate %s expects %d args, got %d", fact.Predicate, sym.Arity, len(fact.Args))
	}

	args := make([]ast.BaseTerm, len(fact.Args))
	for i, raw := range fact.Args {
		term, err := convertValueToTerm(raw)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("corereason: predicate %s arg %d: %w", fact.Predicate, i, err)
		}
		args[i] = term
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

// convertValueToTerm converts a Go value into a Mangle constant, promoting
// "/"-prefixed strings to Name constants and everything else to String.
func convertValueToTerm(value interface{}) (ast.BaseTerm, error) {
	switch v := value.(type) {
	case ast.BaseTerm:
		return v, nil
	case string:
		if strings.HasPrefix(v, "/") {
			name, err := ast.Name(v)
			if err != nil {
				return nil, err
			}
			return name, nil
		}
		return ast.String(v), nil
	case fmt.Stringer:
		return ast.String(v.String()), nil
	case int:
		return ast.Number(int64(v)), nil
	case int32:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case float32:
		return ast.Float64(float64(v)), nil
	case float64:
		return ast.Float64(v), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return nil, fmt.Errorf("unsupported fact argument type %T", v)
	}
}

func convertTermToInterface(term ast.BaseTerm) interface{} {
	switch v := term.(type) {
	case ast.Constant:
		return constantToInterface(v)
	case ast.Variable:
		return v.Symbol
	default:
		return fmt.Sprintf("%v", term)
	}
}

func constantToInterface(constant ast.Constant) interface{} {
	switch constant.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return constant.Symbol
	case ast.NumberType:
		return constant.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(constant.NumValue))
	default:
		return constant.String()
	}
}

// GetFacts returns every stored fact for predicate, in insertion order.
func (r *Reasoner) GetFacts(predicate string) ([]Fact, error) {
	r.mu.RLock()
	sym, ok := r.predicateIndex[predicate]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("corereason: predicate %s is not declared", predicate)
	}

	var results []Fact
	err := r.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		args := make([]interface{}, len(atom.Args))
		for i, arg := range atom.Args {
			args[i] = convertTermToInterface(arg)
		}
		results = append(results, Fact{Predicate: predicate, Args: args})
		return nil
	})
	return results, err
}

// Clear removes every stored fact without re-analyzing the schema.
func (r *Reasoner) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseStore = factstore.NewSimpleInMemoryStore()
	r.store = factstore.NewConcurrentFactStore(r.baseStore)
	r.factCount = 0
}

// Close is a no-op; the reasoner owns no external resources.
func (r *Reasoner) Close() error { return nil }
