package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindMissingField       ErrorKind = "MissingField"
	KindInvalidEncoding    ErrorKind = "InvalidEncoding"
	KindPayloadTooLarge    ErrorKind = "PayloadTooLarge"
	KindUnreadableDocument ErrorKind = "UnreadableDocument"
	KindStorageFailure     ErrorKind = "StorageFailure"
	KindOCRFailure         ErrorKind = "OCRFailure"
	KindAuthFailure        ErrorKind = "AuthFailure"
	KindInternal           ErrorKind = "InternalUnexpected"
)

// ProcessError carries a user-facing Message separate from the wrapped cause,
// which is only ever logged.
type ProcessError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op, message string, err error) *ProcessError {
	return &ProcessError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// KindOf reports the taxonomy of err, KindInternal for anything untyped.
func KindOf(err error) ErrorKind {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var pe *ProcessError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return MsgInternal
}

const (
	MsgMissingField    = "Missing 'file' or 'filename' in request body."
	MsgInvalidJSON     = "Request body must be a JSON object."
	MsgInvalidEncoding = "Invalid base64 string."
	MsgTooLarge        = "Request body too large."
	MsgUnreadable      = "Could not flatten PDF."
	MsgNoPages         = "PDF has no pages."
	MsgUpload          = "S3 upload failed."
	MsgTextOCR         = "Textract OCR failed."
	MsgFormAnalysis    = "Document analysis failed."
	MsgAuth            = "Invalid or missing API key"
	MsgInternal        = "Internal server error"
)
