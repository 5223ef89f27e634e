package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/types"
)

func (s *Server) cameraData() (models.CameraData, error) {
	cam := s.camera
	data := models.CameraData{
		DeviceID: cam.DeviceID(),
		Vendor:   cam.VendorName(),
		Model:    cam.ModelName(),
		Serial:   cam.SerialNumber(),
		State:    cam.State().String(),
	}

	var err error
	if data.SensorWidth, data.SensorHeight, err = cam.SensorSize(); err != nil {
		return data, err
	}
	if data.Region, err = cam.Region(); err != nil {
		return data, err
	}
	data.PixelFormat = cam.PixelFormatString()
	for _, pf := range cam.AvailablePixelFormats() {
		data.PixelFormats = append(data.PixelFormats, pf.String())
	}
	if data.FrameRate, err = cam.FrameRate(); err != nil {
		return data, err
	}
	if data.FrameRateMin, data.FrameRateMax, err = cam.FrameRateBounds(); err != nil {
		return data, err
	}
	if v, err := cam.ExposureTime(); err == nil {
		data.ExposureTime = &v
	}
	if v, err := cam.Gain(); err == nil {
		data.Gain = &v
	}
	if data.Payload, err = cam.Payload(); err != nil {
		return data, err
	}
	return data, nil
}

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera",
		Description: "Identity, state and current acquisition settings of the open camera",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.CameraResponse, error) {
		data, err := s.cameraData()
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.CameraResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-region",
		Method:      http.MethodPut,
		Path:        "/api/camera/region",
		Summary:     "Set Region",
		Description: "Set the region of interest. Values are snapped down onto the increment grid.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(_ context.Context, input *models.RegionRequest) (*models.RegionResponse, error) {
		b := input.Body
		if err := s.camera.SetRegion(b.X, b.Y, b.Width, b.Height); err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.RegionResponse{}
		var err error
		if resp.Body.Region, err = s.camera.Region(); err != nil {
			return nil, toHTTPError(err)
		}
		if resp.Body.Payload, err = s.camera.Payload(); err != nil {
			return nil, toHTTPError(err)
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-pixel-format",
		Method:      http.MethodPut,
		Path:        "/api/camera/pixel-format",
		Summary:     "Set Pixel Format",
		Description: "Select the pixel format by PFNC name",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(_ context.Context, input *models.PixelFormatRequest) (*models.PixelFormatResponse, error) {
		pf, err := types.ParsePixelFormat(input.Body.PixelFormat)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := s.camera.SetPixelFormat(pf); err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.PixelFormatResponse{}
		resp.Body.PixelFormat = s.camera.PixelFormatString()
		if resp.Body.Payload, err = s.camera.Payload(); err != nil {
			return nil, toHTTPError(err)
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-frame-rate",
		Method:      http.MethodPut,
		Path:        "/api/camera/frame-rate",
		Summary:     "Set Frame Rate",
		Description: "Set the acquisition frame rate within the current bounds",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422},
	}, func(_ context.Context, input *models.FrameRateRequest) (*models.FrameRateResponse, error) {
		if err := s.camera.SetFrameRate(input.Body.FrameRate); err != nil {
			return nil, toHTTPError(err)
		}
		fps, err := s.camera.FrameRate()
		if err != nil {
			return nil, toHTTPError(err)
		}
		minimum, maximum, err := s.camera.FrameRateBounds()
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.FrameRateResponse{
			Body: models.FrameRateData{FrameRate: fps, Min: minimum, Max: maximum},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-payload",
		Method:      http.MethodGet,
		Path:        "/api/camera/payload",
		Summary:     "Payload",
		Description: "Size in bytes of one frame with the current settings",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.PayloadResponse, error) {
		payload, err := s.camera.Payload()
		if err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.PayloadResponse{}
		resp.Body.Payload = payload
		return resp, nil
	})
}
