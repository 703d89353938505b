package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrJailEscape is returned when a resolved path falls outside the jail root.
	ErrJailEscape = errors.New("path escapes jail")
	// ErrRootNotSet is returned when the jail is used before a root has been set.
	ErrRootNotSet = errors.New("jail root not set")
	// ErrUnknownRequest is returned when a decision references a request that is not pending.
	ErrUnknownRequest = errors.New("unknown request id")
	// ErrSpawn is returned when the command interpreter could not be started.
	ErrSpawn = errors.New("could not spawn command")
)
