package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/device"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Discover cameras on every enabled device interface",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		var list []device.Info
		if s.options.Registry != nil {
			var err error
			if list, err = s.options.Registry.Discover(); err != nil {
				return nil, huma.Error500InternalServerError("Device discovery failed", err)
			}
		}
		if list == nil {
			list = []device.Info{}
		}
		return &models.DevicesResponse{
			Body: models.DeviceListData{Devices: list, Count: len(list)},
		}, nil
	})
}
