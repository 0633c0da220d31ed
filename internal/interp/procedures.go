package interp

import (
	"strconv"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

func registerVariables(t *Table) {
	t.Expr("variables_get", func(e *Env, b *blocks.Block) (Value, error) {
		id, err := variableID(b, "VAR")
		if err != nil {
			return Null(), err
		}
		return e.Get(id), nil
	})
	t.Stmt("variables_set", func(e *Env, b *blocks.Block) error {
		id, err := variableID(b, "VAR")
		if err != nil {
			return err
		}
		v, err := evalOr(e, b, "VALUE", Number(0))
		if err != nil {
			return err
		}
		e.Set(id, v)
		return nil
	})
}

func registerProcedures(t *Table) {
	// Definitions run only when called.
	skip := func(e *Env, b *blocks.Block) error { return nil }
	t.Stmt("procedures_defnoreturn", skip)
	t.Stmt("procedures_defreturn", skip)
	t.Stmt("procedures_callnoreturn", func(e *Env, b *blocks.Block) error {
		_, err := procedureCall(e, b)
		return err
	})
	t.Expr("procedures_callreturn", procedureCall)
	t.Stmt("procedures_ifreturn", procedureIfReturn)
}

func procedureCall(e *Env, b *blocks.Block) (Value, error) {
	pm, ok := b.Mutator().(blocks.ProcedureMutator)
	if !ok {
		return Null(), runtimeErr(b, "block has no procedure mutator")
	}
	p := pm.Procedure()
	def := e.Workspace().Procedures().Definition(p.Name)
	if def == nil {
		return Null(), runtimeErr(b, "procedure %q is not defined", p.Name)
	}
	if def.Disabled() {
		return Null(), runtimeErr(b, "procedure %q is disabled", p.Name)
	}
	args := make([]Value, len(p.Arguments))
	for i := range p.Arguments {
		v, err := e.Eval(b, "ARG"+strconv.Itoa(i))
		if err != nil {
			return Null(), err
		}
		args[i] = v
	}
	return e.Call(def, args)
}

func procedureIfReturn(e *Env, b *blocks.Block) error {
	cond, err := e.Eval(b, "CONDITION")
	if err != nil || !cond.Truthy() {
		return err
	}
	switch b.Root().Type() {
	case "procedures_defreturn":
		v, err := e.Eval(b, "VALUE")
		if err != nil {
			return err
		}
		return &returnSignal{value: v}
	case "procedures_defnoreturn":
		return &returnSignal{value: Null()}
	}
	return runtimeErr(b, "return outside of a procedure")
}
