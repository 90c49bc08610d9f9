package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/av1forge/internal/api/models"
	"github.com/smazurov/av1forge/internal/encoders"
)

// registerEncoderRoutes registers the encoder discovery endpoint.
func (s *Server) registerEncoderRoutes() {
	if s.options.FFmpegPath == "" {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-encoders",
		Method:      http.MethodGet,
		Path:        "/api/encoders",
		Summary:     "List Encoders",
		Description: "List the AV1 hardware encoders the configured ffmpeg was built with",
		Tags:        []string{"encoders"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.EncodersResponse, error) {
		list, err := encoders.ListEncoders(ctx, s.options.FFmpegPath)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list encoders", err)
		}

		data := models.EncoderData{Encoders: []models.EncoderInfo{}}
		for _, e := range list {
			backend, parseErr := encoders.ParseBackend(e.Name)
			if parseErr != nil || !e.Video {
				continue
			}
			data.Encoders = append(data.Encoders, models.EncoderInfo{
				Name:        e.Name,
				Backend:     string(backend),
				Description: e.Description,
			})
		}
		data.Count = len(data.Encoders)
		return &models.EncodersResponse{Body: data}, nil
	})
}
