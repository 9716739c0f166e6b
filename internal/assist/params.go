package assist

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

const defaultLimit = 5

func (p Params) field(f ParamField) string {
	switch f {
	case FieldOrgID:
		return p.OrgID
	case FieldItemID:
		return p.ItemID
	case FieldItemName:
		return p.ItemName
	case FieldSearchTerm:
		return p.SearchTerm
	case FieldTemplateID:
		return p.TemplateID
	case FieldDate:
		return p.Date
	case FieldStartDate:
		return p.StartDate
	case FieldEndDate:
		return p.EndDate
	case FieldLimit:
		if p.Limit == 0 {
			return ""
		}
		return strconv.Itoa(p.Limit)
	}
	return ""
}

func isDateField(f ParamField) bool {
	return f == FieldDate || f == FieldStartDate || f == FieldEndDate
}

// validateParams checks p against def's shape and guard expressions and
// returns the normalized record the dispatcher runs with. Org injection and
// enforcement happen before this in Execute; by the time guards run every
// required field is present.
func validateParams(def TemplateDefinition, p Params) (Params, error) {
	allowed := make(map[ParamField]bool, len(def.Required)+len(def.Optional)+1)
	for _, f := range def.Required {
		allowed[f] = true
	}
	for _, f := range def.Optional {
		allowed[f] = true
	}

	for _, f := range []ParamField{
		FieldOrgID, FieldItemID, FieldItemName, FieldSearchTerm,
		FieldTemplateID, FieldDate, FieldStartDate, FieldEndDate, FieldLimit,
	} {
		if p.field(f) != "" && !allowed[f] {
			return Params{}, fmt.Errorf("%s does not apply to this template", f)
		}
	}

	for _, f := range def.Required {
		if p.field(f) == "" {
			return Params{}, fmt.Errorf("%s required", f)
		}
	}

	for _, f := range append(append([]ParamField{}, def.Required...), def.Optional...) {
		v := p.field(f)
		if v == "" {
			continue
		}
		if isDateField(f) {
			if _, err := time.Parse("2006-01-02", v); err != nil {
				return Params{}, fmt.Errorf("%s must be YYYY-MM-DD", f)
			}
		}
	}

	if allowed[FieldLimit] {
		if p.Limit < 0 {
			return Params{}, errors.New("limit must be positive")
		}
		if p.Limit == 0 {
			p.Limit = defaultLimit
		}
	}

	celParams := p.celMap()
	for _, guard := range def.Guards {
		ok, err := evalParamGuard(guard, celParams)
		if err != nil {
			return Params{}, err
		}
		if !ok {
			return Params{}, fmt.Errorf("parameter constraint failed: %s", guard)
		}
	}
	return p, nil
}

func (p Params) celMap() map[string]string {
	return map[string]string{
		"org_id":      p.OrgID,
		"item_id":     p.ItemID,
		"item_name":   p.ItemName,
		"search_term": p.SearchTerm,
		"template_id": p.TemplateID,
		"date":        p.Date,
		"start_date":  p.StartDate,
		"end_date":    p.EndDate,
		"limit":       strconv.Itoa(p.Limit),
	}
}

var paramGuardProgramCache sync.Map

func evalParamGuard(expr string, params map[string]string) (bool, error) {
	program, err := loadOrCompileParamGuard(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"params": params})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("guard did not evaluate to bool")
	}
	return v, nil
}

func loadOrCompileParamGuard(expr string) (cel.Program, error) {
	if cached, ok := paramGuardProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := cel.NewEnv(cel.Variable("params", cel.MapType(cel.StringType, cel.StringType)))
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("guard output type must be bool")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	paramGuardProgramCache.Store(expr, program)
	return program, nil
}
