package payme

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type rpcRequest struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// ServeHTTP dispatches the single Payme merchant endpoint on the "method"
// field of the JSON-RPC body, per the protocol's single-URL convention.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.svc.AuthorizeBasic(r.Header.Get("Authorization")) {
		writeRPC(w, nil, nil, rpcErr(ErrCodeSystemError, "unauthorized"))
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, nil, nil, rpcErr(ErrCodeSystemError, "invalid request"))
		return
	}

	switch req.Method {
	case "CheckPerformTransaction":
		var p struct {
			Amount  int64 `json:"amount"`
			Account struct {
				OrderID string `json:"order_id"`
			} `json:"account"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeRPC(w, req.ID, nil, rpcErr(ErrCodeSystemError, "invalid params"))
			return
		}
		if err := h.svc.CheckPerformTransaction(r.Context(), p.Account.OrderID, p.Amount); err != nil {
			writeRPC(w, req.ID, nil, asRPCError(err))
			return
		}
		writeRPC(w, req.ID, map[string]bool{"allow": true}, nil)

	case "CreateTransaction":
		var p struct {
			ID      string `json:"id"`
			Time    int64  `json:"time"`
			Amount  int64  `json:"amount"`
			Account struct {
				OrderID string `json:"order_id"`
			} `json:"account"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeRPC(w, req.ID, nil, rpcErr(ErrCodeSystemError, "invalid params"))
			return
		}
		state, performTime, err := h.svc.CreateTransaction(r.Context(), p.ID, p.Account.OrderID, p.Amount, p.Time)
		if err != nil {
			writeRPC(w, req.ID, nil, asRPCError(err))
			return
		}
		writeRPC(w, req.ID, map[string]interface{}{"create_time": p.Time, "transaction": p.ID, "state": state, "perform_time": performTime}, nil)

	case "PerformTransaction":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeRPC(w, req.ID, nil, rpcErr(ErrCodeSystemError, "invalid params"))
			return
		}
		state, performTime, err := h.svc.PerformTransaction(r.Context(), p.ID)
		if err != nil {
			writeRPC(w, req.ID, nil, asRPCError(err))
			return
		}
		writeRPC(w, req.ID, map[string]interface{}{"transaction": p.ID, "perform_time": performTime, "state": state}, nil)

	case "CancelTransaction":
		var p struct {
			ID     string `json:"id"`
			Reason int    `json:"reason"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeRPC(w, req.ID, nil, rpcErr(ErrCodeSystemError, "invalid params"))
			return
		}
		state, cancelTime, err := h.svc.CancelTransaction(r.Context(), p.ID)
		if err != nil {
			writeRPC(w, req.ID, nil, asRPCError(err))
			return
		}
		writeRPC(w, req.ID, map[string]interface{}{"transaction": p.ID, "cancel_time": cancelTime, "state": state}, nil)

	case "CheckTransaction":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeRPC(w, req.ID, nil, rpcErr(ErrCodeSystemError, "invalid params"))
			return
		}
		state, createTime, performTime, cancelTime, err := h.svc.CheckTransaction(r.Context(), p.ID)
		if err != nil {
			writeRPC(w, req.ID, nil, asRPCError(err))
			return
		}
		writeRPC(w, req.ID, map[string]interface{}{
			"transaction": p.ID, "state": state, "create_time": createTime, "perform_time": performTime, "cancel_time": cancelTime,
		}, nil)

	default:
		writeRPC(w, req.ID, nil, rpcErr(-32601, "method not found"))
	}
}

func asRPCError(err error) *RPCError {
	if e, ok := err.(*RPCError); ok {
		return e
	}
	return &RPCError{Code: ErrCodeSystemError, Message: err.Error()}
}

func writeRPC(w http.ResponseWriter, id interface{}, result interface{}, e *RPCError) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{ID: id, Result: result, Error: e})
}
