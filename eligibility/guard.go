package eligibility

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"go.uber.org/zap"
)

// Guard evaluates an optional merchant-defined javascript expression
// against the order context. The expression sees the context as $ and
// must evaluate to a boolean. A guard can only tighten eligibility: it
// is consulted only after the built-in rules have already said yes.
type Guard struct {
	expression string
}

func NewGuard(expression string) *Guard {
	return &Guard{expression: expression}
}

func (g *Guard) Enabled() bool {
	return len(g.expression) > 0
}

func (g *Guard) Validate() error {
	if !g.Enabled() {
		return nil
	}
	_, err := goja.Compile("guard.js", g.expression, false)
	if err != nil {
		return fmt.Errorf("invalid guard expression %w", err)
	}
	return nil
}

func (g *Guard) Evaluate(context map[string]any) (bool, error) {
	data, err := json.Marshal(context)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	script := fmt.Sprintf("var $ = %s;\n", data)
	_, err = vm.RunString(script)
	if err != nil {
		return false, fmt.Errorf("error preparing guard context %w", err)
	}
	val, err := vm.RunString(g.expression)
	if err != nil {
		return false, fmt.Errorf("error executing guard expression %w", err)
	}
	allowed, ok := val.Export().(bool)
	if !ok {
		logger.Error("guard expression did not produce a boolean", zap.String("expression", g.expression))
		return false, fmt.Errorf("guard expression must evaluate to a boolean")
	}
	return allowed, nil
}
