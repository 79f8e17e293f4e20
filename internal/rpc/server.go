// Package rpc exposes the settlement service over HTTP JSON-RPC and
// WebSocket streams. Responses carry a result object with a status field,
// "success" or "error", with error details inside the result.
package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/LeJamon/goflashd/internal/service"
)

// Server handles HTTP JSON-RPC requests.
type Server struct {
	svc      *service.Service
	registry *MethodRegistry
	timeout  time.Duration
	version  string
}

// NewServer creates an RPC server bound to svc.
func NewServer(svc *service.Service, timeout time.Duration, version string) *Server {
	s := &Server{
		svc:      svc,
		registry: NewMethodRegistry(),
		timeout:  timeout,
		version:  version,
	}
	s.registerAllMethods()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("command")
	if method == "" {
		method = "server_info"
	}

	ctx := &RpcContext{Context: r.Context(), ClientIP: clientIP(r)}
	result, rpcErr := s.execute(method, nil, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, nil, RpcErrorInternal("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, NewRpcError(RpcJSON_RPC, "jsonInvalid", "Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, nil, NewRpcError(RpcMISSING_COMMAND, "missingCommand", "Missing method field"))
		return
	}

	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	ctx := &RpcContext{Context: r.Context(), ClientIP: clientIP(r)}
	result, rpcErr := s.execute(request.Method, params, ctx)
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) execute(method string, params json.RawMessage, ctx *RpcContext) (interface{}, *RpcError) {
	handler, ok := s.registry.Get(method)
	if !ok {
		return nil, RpcErrorMethodNotFound(method)
	}
	if s.timeout > 0 {
		bounded, cancel := context.WithTimeout(ctx.Context, s.timeout)
		defer cancel()
		ctx = &RpcContext{Context: bounded, ClientIP: ctx.ClientIP}
	}
	return handler.Handle(ctx, params)
}

func (s *Server) writeResponse(w http.ResponseWriter, result interface{}, rpcErr *RpcError) {
	response := make(map[string]interface{})

	if rpcErr != nil {
		response["result"] = map[string]interface{}{
			"status":        "error",
			"error":         rpcErr.ErrorString,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
	} else if resultMap, ok := result.(map[string]interface{}); ok {
		resultMap["status"] = "success"
		response["result"] = resultMap
	} else {
		response["result"] = map[string]interface{}{
			"status": "success",
			"data":   result,
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("rpc: marshal response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
