package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-edge-placement/api/v1alpha1"
	"github.com/llm-d/llm-d-edge-placement/internal/dispatcher"
)

// maxBodyBytes bounds the size of a call request.
const maxBodyBytes = 1 << 20

// CallRequest is either a single call or a batch under "function".
type CallRequest struct {
	FunctionName v1alpha1.ActionName     `json:"function_name,omitempty"`
	Args         map[string]any          `json:"args,omitempty"`
	Function     []v1alpha1.FunctionCall `json:"function,omitempty"`
}

// Calls returns the calls carried by the request in order.
func (c *CallRequest) Calls() ([]v1alpha1.FunctionCall, error) {
	switch {
	case len(c.Function) > 0 && c.FunctionName != "":
		return nil, fmt.Errorf("request must carry either function_name or function, not both")
	case len(c.Function) > 0:
		return c.Function, nil
	case c.FunctionName != "":
		return []v1alpha1.FunctionCall{{FunctionName: c.FunctionName, Args: c.Args}}, nil
	default:
		return nil, fmt.Errorf("request carries no function call")
	}
}

// CallResult is the wire form of a dispatched call.
type CallResult struct {
	Action      v1alpha1.ActionName `json:"action"`
	AppName     string              `json:"app_name,omitempty"`
	State       string              `json:"state"`
	ChosenNode  string              `json:"chosen_node"`
	CurrentNode string              `json:"current_node,omitempty"`
	Candidates  []string            `json:"candidates,omitempty"`
	Outcome     string              `json:"outcome"`
	Error       string              `json:"error,omitempty"`
}

// CallResponse answers POST /v1/calls.
type CallResponse struct {
	RequestID string       `json:"request_id"`
	Results   []CallResult `json:"results"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := dispatcher.RequestIDFrom(ctx)

	var req CallRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{RequestID: requestID, Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	calls, err := req.Calls()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{RequestID: requestID, Error: err.Error()})
		return
	}

	resp := CallResponse{RequestID: requestID, Results: make([]CallResult, 0, len(calls))}
	for _, call := range calls {
		res := s.store.Execute(ctx, s.dispatcher, call)
		resp.Results = append(resp.Results, toCallResult(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toCallResult(res dispatcher.Result) CallResult {
	out := CallResult{
		Action:      res.Action,
		AppName:     res.AppName,
		State:       res.State,
		ChosenNode:  res.ChosenNode,
		CurrentNode: res.CurrentNode,
		Candidates:  res.Candidates,
		Outcome:     res.Outcome,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func (s *Server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot().Nodes)
}

func (s *Server) handleApplications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot().Applications)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		ctrl.Log.Error(err, "Failed to write response")
	}
}
