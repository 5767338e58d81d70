package permissions

import "fmt"

// ScopeViolationError reports a calculator that contributed items for a scope
// type other than the one requested. This is a programming defect in the
// calculator, not a transient condition; callers should not retry.
type ScopeViolationError struct {
	Calculator string
	Scope      string
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("The calculator %q returned permissions for scopes other than %q.", e.Calculator, e.Scope)
}
