package declare

import (
	"errors"
	"fmt"
)

var (
	ErrNilConstructor       = errors.New("declare: constructor is nil")
	ErrEmptyIdentity        = errors.New("declare: constructor identity must not be empty")
	ErrDuplicateConstructor = errors.New("declare: constructor already registered")
	ErrUnknownConstructor   = errors.New("declare: unknown constructor")
	ErrIdentifierCollision  = errors.New("declare: identifier claimed by another constructor")
	ErrDataNotEncodable     = errors.New("declare: data is not encodable")
	ErrNilResource          = errors.New("declare: constructor returned no resource")
	ErrNoPersistence        = errors.New("declare: persistence not configured")
	ErrInstanceType         = errors.New("declare: unexpected instance type")
	ErrNoEvaluator          = errors.New("declare: evaluator not configured")
)

// ConstructorError reports a failed Create call. The store is left unchanged
// when it is returned.
type ConstructorError struct {
	ID            string
	ConstructorID string
	Err           error
}

func (e *ConstructorError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("declare: create %s (%s): %v", e.ID, e.ConstructorID, e.Err)
}

func (e *ConstructorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
