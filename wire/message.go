// Package wire defines the controller-driver protocol: length-prefixed
// frames carrying JSON request/response messages matched by correlation id.
// Every request yields exactly one response on the same channel, or none if
// the connection is lost first.
package wire

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
)

// Op identifies the requested operation
type Op string

// Protocol operations
const (
	// OpWrite sets a writable field on a component
	OpWrite Op = "write"
	// OpRead returns the current value of a readable field
	OpRead Op = "read"
	// OpDescribe returns a component's field contract
	OpDescribe Op = "describe"
	// OpList returns the ids of all registered components
	OpList Op = "list"
)

// Status reports the outcome of a request
type Status string

// Response statuses
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ErrorCode classifies an error response for the controller
type ErrorCode string

// Error codes carried in error responses
const (
	CodeUnknownComponent ErrorCode = "unknown_component"
	CodeUnknownField     ErrorCode = "unknown_field"
	CodeTypeMismatch     ErrorCode = "type_mismatch"
	CodeHardwareFault    ErrorCode = "hardware_fault"
	CodeProtocolError    ErrorCode = "protocol_error"
)

// CodeFromError maps a driver-side error to its wire code. Anything not
// covered by a specific code is reported as a hardware fault, since it
// came out of a concrete component implementation.
func CodeFromError(err error) ErrorCode {
	switch {
	case stderrors.Is(err, errors.ErrUnknownComponent):
		return CodeUnknownComponent
	case stderrors.Is(err, errors.ErrUnknownField):
		return CodeUnknownField
	case stderrors.Is(err, errors.ErrTypeMismatch):
		return CodeTypeMismatch
	case stderrors.Is(err, errors.ErrProtocol):
		return CodeProtocolError
	default:
		return CodeHardwareFault
	}
}

// Sentinel returns the sentinel error a code maps back to on the
// controller side, so errors.Is works across the network boundary.
func (c ErrorCode) Sentinel() error {
	switch c {
	case CodeUnknownComponent:
		return errors.ErrUnknownComponent
	case CodeUnknownField:
		return errors.ErrUnknownField
	case CodeTypeMismatch:
		return errors.ErrTypeMismatch
	case CodeProtocolError:
		return errors.ErrProtocol
	case CodeHardwareFault:
		return errors.ErrHardwareFault
	default:
		return errors.ErrRemoteCommand
	}
}

// Request is one controller-to-driver message
type Request struct {
	CorrelationID uint64           `json:"correlation_id"`
	ComponentID   string           `json:"component_id,omitempty"`
	Op            Op               `json:"op"`
	Field         string           `json:"field,omitempty"`
	Value         *component.Value `json:"value,omitempty"`
}

// Validate checks structural requirements per operation
func (r Request) Validate() error {
	switch r.Op {
	case OpWrite:
		if r.ComponentID == "" || r.Field == "" || r.Value == nil {
			return protocolErr("write requires component_id, field, and value")
		}
	case OpRead:
		if r.ComponentID == "" || r.Field == "" {
			return protocolErr("read requires component_id and field")
		}
	case OpDescribe:
		if r.ComponentID == "" {
			return protocolErr("describe requires component_id")
		}
	case OpList:
		// no operands
	default:
		return protocolErr(fmt.Sprintf("unknown op %q", r.Op))
	}
	return nil
}

// Response is one driver-to-controller message
type Response struct {
	CorrelationID uint64              `json:"correlation_id"`
	Status        Status              `json:"status"`
	Value         *component.Value    `json:"value,omitempty"`
	Contract      *component.Contract `json:"contract,omitempty"`
	Components    []string            `json:"components,omitempty"`
	ErrorCode     ErrorCode           `json:"error_code,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
}

// Err converts an error response back into a Go error carrying the
// matching sentinel. OK responses return nil.
func (r Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	msg := r.ErrorMessage
	if msg == "" {
		msg = string(r.ErrorCode)
	}
	return fmt.Errorf("%s: %w", msg, r.ErrorCode.Sentinel())
}

// OKResponse builds a success response with no payload
func OKResponse(correlationID uint64) Response {
	return Response{CorrelationID: correlationID, Status: StatusOK}
}

// ValueResponse builds a success response carrying a read value
func ValueResponse(correlationID uint64, value component.Value) Response {
	return Response{CorrelationID: correlationID, Status: StatusOK, Value: &value}
}

// ContractResponse builds a success response for a describe request
func ContractResponse(correlationID uint64, contract component.Contract) Response {
	return Response{CorrelationID: correlationID, Status: StatusOK, Contract: &contract}
}

// ListResponse builds a success response for a list request
func ListResponse(correlationID uint64, ids []string) Response {
	return Response{CorrelationID: correlationID, Status: StatusOK, Components: ids}
}

// ErrorResponse builds an error response from a driver-side error
func ErrorResponse(correlationID uint64, err error) Response {
	return Response{
		CorrelationID: correlationID,
		Status:        StatusError,
		ErrorCode:     CodeFromError(err),
		ErrorMessage:  err.Error(),
	}
}

// EncodeRequest marshals a request payload
func EncodeRequest(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WrapInvalid(err, "wire", "EncodeRequest", "marshaling")
	}
	return data, nil
}

// DecodeRequest unmarshals a request payload. Malformed payloads are
// protocol errors.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, errors.WrapInvalid(
			fmt.Errorf("%v: %w", err, errors.ErrProtocol),
			"wire", "DecodeRequest", "unmarshaling")
	}
	return req, nil
}

// EncodeResponse marshals a response payload
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.WrapInvalid(err, "wire", "EncodeResponse", "marshaling")
	}
	return data, nil
}

// DecodeResponse unmarshals a response payload
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, errors.WrapInvalid(
			fmt.Errorf("%v: %w", err, errors.ErrProtocol),
			"wire", "DecodeResponse", "unmarshaling")
	}
	return resp, nil
}

func protocolErr(msg string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%s: %w", msg, errors.ErrProtocol),
		"wire", "Validate", "request validation")
}
