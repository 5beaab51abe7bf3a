package mock

import "fmt"

// VisibilityError reports a non-publicly-accessible type used where
// cross-domain placement requires public accessibility.
type VisibilityError struct {
	Type string
}

func (e *VisibilityError) Error() string {
	return fmt.Sprintf("cannot create mock for %s: the type is not public and its mock module is defined in a different domain", e.Type)
}

// AccessQueryError reports that the host's access-control facility could not
// be queried. The query result is treated as "no"; the error surfaces as
// context when a subsequent repair also fails.
type AccessQueryError struct {
	Type string
	Err  error
}

func (e *AccessQueryError) Error() string {
	return fmt.Sprintf("cannot assert whether %s is readable by the engine: %v", e.Type, e.Err)
}

func (e *AccessQueryError) Unwrap() error {
	return e.Err
}

// AccessRepairError reports that the same-domain visibility repair failed:
// a read edge from the target's domain to the engine could not be
// established, so generated code would be unable to call back into the
// engine's support module.
type AccessRepairError struct {
	Type  string
	Query *AccessQueryError
	Err   error
}

func (e *AccessRepairError) Error() string {
	msg := fmt.Sprintf("could not initialize a read edge for %s: %v (this is required to adjust the domain graph to enable mock creation)", e.Type, e.Err)
	if e.Query != nil {
		msg += fmt.Sprintf("; additionally, %v", e.Query)
	}
	return msg
}

func (e *AccessRepairError) Unwrap() error {
	return e.Err
}

// DescriptorError reports that the codegen layer rejected the assembled type
// request.
type DescriptorError struct {
	Type string
	Err  error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("type request for mock of %s was rejected: %v", e.Type, e.Err)
}

func (e *DescriptorError) Unwrap() error {
	return e.Err
}

// LoadError reports that defining or linking the generated module in the
// resolved domain failed.
type LoadError struct {
	Type string
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load mock %s for %s: %v", e.Name, e.Type, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
