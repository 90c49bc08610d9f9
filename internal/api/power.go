package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/av1forge/internal/api/models"
)

// PowerCanceller drops a power-off scheduled after a completed run.
type PowerCanceller interface {
	CancelPowerOff() bool
}

func (s *Server) registerPowerRoutes() {
	if s.options.Power == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-power-off",
		Method:      http.MethodPost,
		Path:        "/api/power/cancel",
		Summary:     "Cancel Power-Off",
		Description: "Cancel the power-off scheduled after a completed run",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RunActionResponse, error) {
		return &models.RunActionResponse{
			Body: models.RunActionData{
				Action:  "cancel-power-off",
				Applied: s.options.Power.CancelPowerOff(),
			},
		}, nil
	})
}
