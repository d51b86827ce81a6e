package storage

import "errors"

// ErrNoSuchKey is the state-error (§7 taxonomy) for commands that require
// a key to already exist, such as LSET.
var ErrNoSuchKey = errors.New("no such key")

// ErrIndexOutOfRange is the argument-domain error for list indices that
// don't resolve to a live element.
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrNotAnInteger is the argument-domain error for INCR/DECR family
// commands applied to a string value that doesn't parse as an integer.
var ErrNotAnInteger = errors.New("value is not an integer or out of range")

// ErrNotAFloat is the argument-domain error for ZINCRBY/ZADD increments
// that don't parse as a float.
var ErrNotAFloat = errors.New("value is not a valid float")
