package bench

import "errors"

// Error classes. Concrete errors wrap one of these together with the
// underlying driver error, so both are reachable through errors.Is/As.
var (
	ErrConnection   = errors.New("connection error")
	ErrProvisioning = errors.New("provisioning error")
	ErrSchema       = errors.New("schema error")
	ErrStatement    = errors.New("statement error")
	ErrExecution    = errors.New("benchmark execution error")
)

var (
	ErrNoSession = errors.New("no established connection")
	ErrNoRows    = errors.New("no rows in result set")
)
