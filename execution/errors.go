package execution

import "github.com/pkg/errors"

func errUnknownPlan(plan Plan) error {
	return errors.Errorf("execution: unknown plan node %T", plan)
}

func errTableNotFound(name string) error {
	return errors.Errorf("execution: table %q not found", name)
}

func errIndexNotFound(name string) error {
	return errors.Errorf("execution: index %q not found", name)
}
