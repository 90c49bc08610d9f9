package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/av1forge/internal/api/models"
	"github.com/smazurov/av1forge/internal/runner"
)

func runStatusData(st runner.Status) models.RunStatusData {
	data := models.RunStatusData{
		RunID:            st.RunID,
		State:            string(st.State),
		TaskIndex:        st.TaskIndex,
		TaskTotal:        st.TaskTotal,
		CurrentFile:      st.CurrentFile,
		Phase:            string(st.Phase),
		ProgressTotal:    st.ProgressTotal,
		ProgressCurrent:  st.ProgressCurrent,
		AwaitingDecision: st.AwaitingDecision,
	}
	if !st.StartedAt.IsZero() {
		data.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	return data
}

func (s *Server) actionResponse(action string, applied bool) *models.RunActionResponse {
	return &models.RunActionResponse{
		Body: models.RunActionData{
			Action:  action,
			Applied: applied,
			State:   string(s.options.Run.Status().State),
		},
	}
}

// registerRunRoutes registers the run status and control endpoints.
func (s *Server) registerRunRoutes() {
	if s.options.Run == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/api/run",
		Summary:     "Run Status",
		Description: "Get the state and progress of the current run",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RunStatusResponse, error) {
		return &models.RunStatusResponse{Body: runStatusData(s.options.Run.Status())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "pause-run",
		Method:      http.MethodPost,
		Path:        "/api/run/pause",
		Summary:     "Pause Run",
		Description: "Pause the run. Has no effect unless the run is running.",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RunActionResponse, error) {
		return s.actionResponse("pause", s.options.Run.Pause()), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-run",
		Method:      http.MethodPost,
		Path:        "/api/run/resume",
		Summary:     "Resume Run",
		Description: "Resume a paused run",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RunActionResponse, error) {
		return s.actionResponse("resume", s.options.Run.Resume()), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-run",
		Method:      http.MethodPost,
		Path:        "/api/run/cancel",
		Summary:     "Cancel Run",
		Description: "Cancel the run. The active encode is killed and its temporary output removed.",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RunActionResponse, error) {
		before := s.options.Run.Status().State
		s.options.Run.Cancel()
		return s.actionResponse("cancel", !before.Terminal() && before != runner.StateIdle), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "decide-run",
		Method:      http.MethodPost,
		Path:        "/api/run/decision",
		Summary:     "Answer Crash Prompt",
		Description: "Continue past or stop at a crashed encode. Fails with 409 when no decision is pending.",
		Tags:        []string{"run"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(_ context.Context, input *models.DecisionRequest) (*models.RunActionResponse, error) {
		d, err := runner.ParseDecision(input.Body.Decision)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid decision", err)
		}
		if err := s.options.Run.SupplyDecision(d); err != nil {
			if errors.Is(err, runner.ErrNoPendingDecision) || errors.Is(err, runner.ErrDecisionSupplied) {
				return nil, huma.Error409Conflict("No decision is pending", err)
			}
			return nil, huma.Error500InternalServerError("Failed to supply decision", err)
		}
		return s.actionResponse(string(d), true), nil
	})
}
