package storage

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKey   = errors.New("invalid object key")
	ErrNetwork      = errors.New("object store unreachable")
	ErrAccessDenied = errors.New("access denied")
	ErrUpload       = errors.New("upload failed")
)

// NetworkError reports a transport failure talking to the object store
type NetworkError struct {
	Op  string
	Key string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// AccessDeniedError reports a signed URL that is expired or forged
type AccessDeniedError struct {
	Key    string
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied to %s: %s", e.Key, e.Reason)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// UploadError reports a failed binary transfer
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() []error { return []error{ErrUpload, e.Err} }
