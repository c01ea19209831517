package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/native/asset"
	"github.com/stellarcarbon/sorocarbon/native/sink"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
	codeAborted        = -32050
	codeUnavailable    = -32060
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

func invalidParams(message string) *RPCError {
	return newError(http.StatusBadRequest, codeInvalidParams, message, nil)
}

func invalidAddress(field string, err error) *RPCError {
	return newError(http.StatusOK, int(sink.ErrInvalidAddress), sink.ErrInvalidAddress.Name(),
		map[string]string{"field": field, "reason": err.Error()})
}

// contractError maps an invocation failure onto the JSON-RPC error surface.
// Typed contract and asset errors keep their numeric code; aborts share
// codeAborted.
func contractError(err error) *RPCError {
	if err == nil {
		return nil
	}
	if typed, ok := sink.AsError(err); ok && !core.IsAbort(err) {
		return newError(http.StatusOK, int(typed), typed.Name(), nil)
	}
	var assetCode asset.Code
	if errors.As(err, &assetCode) && !core.IsAbort(err) {
		return newError(http.StatusOK, int(assetCode), assetCode.Error(), nil)
	}
	if errors.Is(err, asset.ErrUnknownAsset) {
		return newError(http.StatusOK, codeInvalidParams, "unknown asset", err.Error())
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		return newError(http.StatusOK, codeAborted, "invocation aborted: unauthorized", err.Error())
	}
	if core.IsAbort(err) {
		return newError(http.StatusOK, codeAborted, "invocation aborted", err.Error())
	}
	return newError(http.StatusInternalServerError, codeServerError, "internal error", err.Error())
}

// decodeParams unmarshals the first positional parameter into dst. Missing
// params leave dst untouched.
func decodeParams(params []json.RawMessage, dst interface{}) *RPCError {
	if len(params) == 0 {
		return nil
	}
	if len(params) > 1 {
		return invalidParams("expected a single parameter object")
	}
	if err := json.Unmarshal(params[0], dst); err != nil {
		return newError(http.StatusBadRequest, codeInvalidParams, "invalid parameter object", err.Error())
	}
	return nil
}

func encodeResponse(id json.RawMessage, result interface{}, rpcErr *RPCError) ([]byte, int) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id}
	status := http.StatusOK
	if rpcErr != nil {
		resp.Error = rpcErr
		if rpcErr.status > 0 {
			status = rpcErr.status
		}
	} else {
		resp.Result = result
	}
	body, err := json.Marshal(resp)
	if err != nil {
		fallback := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: codeServerError, Message: "failed to encode response"}}
		body, _ = json.Marshal(fallback)
		status = http.StatusInternalServerError
	}
	return append(body, '\n'), status
}

func writeResponse(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
