package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
)

func (s *Server) serviceManager() (ServiceManager, error) {
	if s.options.ServiceManager == nil {
		return nil, huma.Error503ServiceUnavailable("systemd D-Bus is not available")
	}
	return s.options.ServiceManager, nil
}

func (s *Server) registerSystemdRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service Status",
		Description: "State of the systemd unit camnode runs as",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceStatusResponse, error) {
		m, err := s.serviceManager()
		if err != nil {
			return nil, err
		}
		status, err := m.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &models.ServiceStatusResponse{
			Body: models.ServiceStatusData{
				Unit:        status.Unit,
				LoadState:   status.LoadState,
				ActiveState: status.ActiveState,
				SubState:    status.SubState,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/system/service/restart",
		Summary:     "Restart Service",
		Description: "Restart the camnode systemd unit. The connection drops once the restart begins.",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
		m, err := s.serviceManager()
		if err != nil {
			return nil, err
		}
		if err := m.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		s.logger.Info("Service restart requested", "unit", m.Unit())
		return &models.ServiceActionResponse{
			Body: models.ServiceActionData{
				Unit:    m.Unit(),
				Action:  "restart",
				Success: true,
			},
		}, nil
	})
}
