package valet

// Operation is the single action a valet token permits over its resources.
type Operation string

const (
	OperationRead  Operation = "read"
	OperationWrite Operation = "write"
)

// Grant is the authorization decoded from a valet token: a subject allowed
// to perform exactly one operation on a fixed set of resources. A Grant is
// produced once per request and is immutable for the request's duration.
type Grant struct {
	Subject   string
	Resources []string
	Operation Operation
}

// Allows reports whether the grant covers the given resource and operation.
func (g *Grant) Allows(resource string, op Operation) bool {
	if g == nil || g.Operation != op {
		return false
	}
	for _, r := range g.Resources {
		if r == resource {
			return true
		}
	}
	return false
}
