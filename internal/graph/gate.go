package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	gqltools "github.com/wundergraph/graphql-go-tools/pkg/graphql"
)

// Rules are the admission limits applied to every query before execution.
// Zero disables a rule.
type Rules struct {
	MaxDepth      int
	MaxComplexity int
}

// DefaultRules are the production limits.
var DefaultRules = Rules{MaxDepth: 5, MaxComplexity: 1000}

// Rejection rule labels.
const (
	RuleDepth      = "depth"
	RuleComplexity = "complexity"
	RuleInvalid    = "invalid"
)

// maxDepthRule is the engine's validation rule name for depth violations.
const maxDepthRule = "MaxDepthExceeded"

var ErrValidationRejected = errors.New("graphql: query rejected by validation")

// Rejection reports why a query was refused. It unwraps to
// ErrValidationRejected.
type Rejection struct {
	Rule   string
	Errors []*gqlerrors.QueryError
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s (%s)", ErrValidationRejected, r.Rule)
}

func (r *Rejection) Unwrap() error { return ErrValidationRejected }

func reject(rule, format string, args ...interface{}) *Rejection {
	return &Rejection{Rule: rule, Errors: []*gqlerrors.QueryError{{
		Message:    fmt.Sprintf(format, args...),
		Extensions: map[string]interface{}{"code": CodeValidationFailed},
	}}}
}

// Gate applies Rules to a Request. The depth rule and ordinary schema
// validation run through the engine; the complexity score comes from the
// graphql-go-tools calculator over the same SDL.
type Gate struct {
	engine *graphql.Schema
	cost   *gqltools.Schema
	rules  Rules
}

// NewGate expects engine to have been built by NewSchema with the same rules.
func NewGate(engine *graphql.Schema, rules Rules) (*Gate, error) {
	cost, err := gqltools.NewSchemaFromString(SchemaSDL)
	if err != nil {
		return nil, fmt.Errorf("parse complexity schema: %w", err)
	}
	return &Gate{engine: engine, cost: cost, rules: rules}, nil
}

func (g *Gate) Rules() Rules { return g.rules }

// Check returns nil if req may execute. readOnly refuses anything but a
// query operation, for GET requests.
func (g *Gate) Check(req Request, readOnly bool) *Rejection {
	if strings.TrimSpace(req.Query) == "" {
		return reject(RuleInvalid, "GraphQL query not found in the request")
	}

	if errs := g.engine.ValidateWithVariables(req.Query, req.Variables); len(errs) > 0 {
		rule := RuleInvalid
		for _, e := range errs {
			if e.Rule == maxDepthRule {
				rule = RuleDepth
			}
			if e.Extensions == nil {
				e.Extensions = map[string]interface{}{}
			}
			e.Extensions["code"] = CodeValidationFailed
		}
		return &Rejection{Rule: rule, Errors: errs}
	}

	costReq := &gqltools.Request{Query: req.Query, OperationName: req.OperationName}

	if readOnly {
		opType, err := costReq.OperationType()
		if err != nil {
			return reject(RuleInvalid, "%s", err)
		}
		if opType != gqltools.OperationTypeQuery {
			return reject(RuleInvalid, "only query operations are allowed in GET requests")
		}
	}

	if g.rules.MaxComplexity > 0 {
		result, err := costReq.CalculateComplexity(gqltools.DefaultComplexityCalculator, g.cost)
		if err != nil {
			return reject(RuleInvalid, "%s", err)
		}
		if result.Complexity > g.rules.MaxComplexity {
			return reject(RuleComplexity,
				"the maximum query complexity value has been exceeded. The maximum query complexity value is %d. The current query complexity is %d",
				g.rules.MaxComplexity, result.Complexity)
		}
	}
	return nil
}
