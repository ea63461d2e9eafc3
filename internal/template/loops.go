package template

import (
	"strconv"

	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
)

// emitFor renders a bounded loop: `@for name in <values> { body }`.
// Each iteration forks the scope and binds the loop variable, so one
// iteration's bindings never leak into the next or into the parent.
func (p *Plugin) emitFor(node *kdl.Node, ctx *emitter.Context) error {
	name, ok := node.Arg(0)
	if !ok {
		return emitter.Errorf("@for: missing loop variable name")
	}
	if kw, ok := node.Arg(1); !ok || kw.Text() != "in" {
		return emitter.Errorf("@for: expected 'in' after loop variable")
	}
	if !node.HasChildren() {
		return emitter.Errorf("@for: loop must have a body")
	}

	values, err := p.forValues(node, ctx.Emitter)
	if err != nil {
		return err
	}

	varName := ctx.Emitter.Vars.ExpandValue(name)
	for _, value := range values {
		iter := ctx.Emitter.Fork()
		iter.Vars.Insert(varName, value)
		if err := iter.Emit(node.Children, ctx.Writer); err != nil {
			return err
		}
	}
	return nil
}

// forValues resolves the loop's value source: the remaining positional
// entries are literal values, unless the first of them is @range or
// @expr.
func (p *Plugin) forValues(node *kdl.Node, e *emitter.Emitter) ([]string, error) {
	args := node.Args()[2:]
	if len(args) == 0 {
		return nil, emitter.Errorf("@for: no values to iterate over")
	}

	switch args[0].Text() {
	case "@range":
		return rangeValues(args[1:])
	case "@expr":
		if len(args) != 2 {
			return nil, emitter.Errorf("@for: @expr takes exactly one expression")
		}
		return p.eval.Eval(args[1].Text(), e.Vars.Snapshot())
	}

	values := make([]string, len(args))
	for i, arg := range args {
		values[i] = e.Vars.ExpandValue(arg)
	}
	return values, nil
}

// rangeValues produces an inclusive integer sequence from 1, 2 or 3
// arguments: end / start,end / start,step,end.
func rangeValues(args []kdl.Value) ([]string, error) {
	nums := make([]int64, len(args))
	for i, arg := range args {
		n, ok := arg.AsInt()
		if !ok {
			return nil, emitter.Errorf("@range: argument %q is not an integer", arg.Text())
		}
		nums[i] = n
	}

	start, step, end := int64(1), int64(1), int64(0)
	switch len(nums) {
	case 1:
		end = nums[0]
	case 2:
		start, end = nums[0], nums[1]
	case 3:
		start, step, end = nums[0], nums[1], nums[2]
	default:
		return nil, emitter.Errorf("@range: expected 1 to 3 integer arguments, got %d", len(nums))
	}
	if step <= 0 {
		return nil, emitter.Errorf("@range: step must be positive")
	}

	var values []string
	for i := start; i <= end; i += step {
		values = append(values, strconv.FormatInt(i, 10))
	}
	return values, nil
}
