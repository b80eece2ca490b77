package keyregistry

import "errors"

// ErrEmpty names the condition of a registry constructed with no keys. No
// Registry method returns it: the registry still initializes, and its
// rotation methods return an empty key.
var ErrEmpty = errors.New("keyregistry: no keys configured")
