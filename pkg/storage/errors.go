package storage

import (
	"errors"
	"fmt"
)

// StorageError is the typed error returned by every storage operation.
//
// These are hardware-boundary errors (bad address, misconfigured partition,
// failed program cycle) rather than filesystem-level errors; the overlay
// filesystem translates them into its own semantics and decides whether a
// retry makes sense. No retry happens at this layer.
type StorageError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Detail carries the native hardware diagnostic or the offending
	// key/label, when one exists
	Detail string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// ErrorCode represents the category of a storage error.
type ErrorCode int

const (
	// ErrPartitionNotFound indicates no partition with the requested label exists
	ErrPartitionNotFound ErrorCode = iota

	// ErrPartitionMisconfigured indicates the partition exists but its
	// geometry does not match the compiled flash constants. Fatal
	// configuration error, never retried.
	ErrPartitionMisconfigured

	// ErrMappingFailed indicates the partition could not be memory-mapped
	ErrMappingFailed

	// ErrBounds indicates an address range outside [0, Capacity)
	ErrBounds

	// ErrAlignment indicates an erase address or length that is not a
	// multiple of BlockSize
	ErrAlignment

	// ErrHardware indicates the flash program or erase primitive failed;
	// Detail carries the native diagnostic
	ErrHardware

	// ErrMetadataNotFound indicates the metadata key does not exist
	ErrMetadataNotFound

	// ErrMetadataIO indicates the metadata store failed to read or write
	ErrMetadataIO
)

// NewBoundsError builds the error for an address range exceeding capacity.
func NewBoundsError(address, length uint32) *StorageError {
	return &StorageError{
		Code:    ErrBounds,
		Message: "address range outside storage capacity",
		Detail:  fmt.Sprintf("address=%d length=%d capacity=%d", address, length, Capacity),
	}
}

// NewAlignmentError builds the error for an erase range that does not fall
// on block boundaries.
func NewAlignmentError(address, length uint32) *StorageError {
	return &StorageError{
		Code:    ErrAlignment,
		Message: "erase range not aligned to block boundaries",
		Detail:  fmt.Sprintf("address=%d length=%d block_size=%d", address, length, BlockSize),
	}
}

// NewHardwareError wraps a native flash diagnostic.
func NewHardwareError(op string, cause error) *StorageError {
	return &StorageError{
		Code:    ErrHardware,
		Message: "flash " + op + " failed",
		Detail:  cause.Error(),
	}
}

// NewMappingError wraps a failure to memory-map the partition.
func NewMappingError(cause error) *StorageError {
	return &StorageError{
		Code:    ErrMappingFailed,
		Message: "failed to memory-map partition",
		Detail:  cause.Error(),
	}
}

// NewMetadataNotFoundError builds the error for a missing metadata key.
func NewMetadataNotFoundError(key string) *StorageError {
	return &StorageError{
		Code:    ErrMetadataNotFound,
		Message: "metadata key not found",
		Detail:  key,
	}
}

// NewMetadataIOError wraps a metadata store failure.
func NewMetadataIOError(op string, cause error) *StorageError {
	return &StorageError{
		Code:    ErrMetadataIO,
		Message: "metadata " + op + " failed",
		Detail:  cause.Error(),
	}
}

// IsCode reports whether err is a StorageError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
