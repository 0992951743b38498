package env

import (
	"os"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitsession/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver expands templates. A Resolver is not safe for concurrent
// mutation; build it once and then only call Resolve.
type Resolver struct {
	variables  map[string]string
	funcs      *builtin.Registry
	unresolved []string
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		funcs:     builtin.NewRegistry(),
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.variables[name] = value
}

// Resolve expands every {{...}} in input. Expressions that cannot be
// resolved are left as written and recorded for Unresolved.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if name, ok := strings.CutPrefix(expr, "$"); ok {
			if val, found := os.LookupEnv(name); found {
				return val
			}
			r.unresolved = append(r.unresolved, expr)
			return match
		}

		if strings.Contains(expr, "(") {
			if result, ok := r.funcs.Call(expr); ok {
				return result
			}
			r.unresolved = append(r.unresolved, expr)
			return match
		}

		if val, ok := r.variables[expr]; ok {
			return val
		}
		r.unresolved = append(r.unresolved, expr)
		return match
	})
}

// ResolveAll returns a copy of values with every value resolved. Keys are
// kept as given. A nil map stays nil.
func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// Unresolved lists the expressions Resolve could not expand, in order.
func (r *Resolver) Unresolved() []string {
	return r.unresolved
}
