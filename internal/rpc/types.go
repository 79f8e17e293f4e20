package rpc

import (
	"context"
	"encoding/json"

	"github.com/LeJamon/goflashd/internal/types"
)

// Request is the daemon's JSON-RPC envelope:
// {"method": "method_name", "params": [{...}]}
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// RpcContext carries per-call information into handlers.
type RpcContext struct {
	Context  context.Context
	ClientIP string
}

// MethodHandler is implemented by every RPC method.
type MethodHandler interface {
	Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
}

// MethodFunc adapts a function to MethodHandler.
type MethodFunc func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)

func (f MethodFunc) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return f(ctx, params)
}

// MethodRegistry maps method names to handlers.
type MethodRegistry struct {
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]MethodHandler)}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	handler, ok := r.methods[name]
	return handler, ok
}

func (r *MethodRegistry) List() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

// parseAccountID decodes a hex account parameter.
func parseAccountID(field, value string) (types.AccountID, *RpcError) {
	id, err := types.AccountIDFromHex(value)
	if err != nil {
		return types.AccountID{}, RpcErrorInvalidParams("invalid " + field + ": " + err.Error())
	}
	return id, nil
}

// parseAssetID decodes a hex asset parameter.
func parseAssetID(field, value string) (types.AssetID, *RpcError) {
	id, err := types.AssetIDFromHex(value)
	if err != nil {
		return types.AssetID{}, RpcErrorInvalidParams("invalid " + field + ": " + err.Error())
	}
	return id, nil
}
