package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/pkg/genicam"
)

func featureData(info genicam.Info) models.FeatureData {
	data := models.FeatureData{
		Name:        info.Name,
		Description: info.Description,
		Kind:        info.Kind.String(),
		Access:      info.Access.String(),
		Unit:        info.Unit,
		Entries:     info.Entries,
		Formula:     info.Formula,
	}
	if info.ValueErr != nil {
		data.Error = info.ValueErr.Error()
	} else if info.Kind != genicam.KindCommand {
		data.Value = info.Value.Any()
	}

	switch info.Kind {
	case genicam.KindInteger:
		minimum, maximum, inc := info.Min, info.Max, info.Inc
		data.Min, data.Max, data.Inc = &minimum, &maximum, &inc
	case genicam.KindFloat:
		minimum, maximum := info.FloatMin, info.FloatMax
		data.FloatMin, data.FloatMax = &minimum, &maximum
	}
	return data
}

func (s *Server) registerFeatureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-features",
		Method:      http.MethodGet,
		Path:        "/api/camera/features",
		Summary:     "List Features",
		Description: "All feature nodes with their current value and bounds",
		Tags:        []string{"features"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.FeaturesResponse, error) {
		infos := s.camera.Features()
		list := make([]models.FeatureData, 0, len(infos))
		for _, info := range infos {
			list = append(list, featureData(info))
		}
		return &models.FeaturesResponse{
			Body: models.FeatureListData{Features: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-feature",
		Method:      http.MethodGet,
		Path:        "/api/camera/features/{name}",
		Summary:     "Get Feature",
		Description: "One feature node with its current value and bounds",
		Tags:        []string{"features"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.FeatureNameInput) (*models.FeatureResponse, error) {
		info, err := s.camera.FeatureInfo(input.Name)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.FeatureResponse{Body: featureData(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-feature",
		Method:      http.MethodPut,
		Path:        "/api/camera/features/{name}",
		Summary:     "Set Feature",
		Description: "Write a feature value. Command nodes are executed. Writes are refused while acquiring.",
		Tags:        []string{"features"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422},
	}, func(_ context.Context, input *models.FeatureWriteInput) (*models.FeatureResponse, error) {
		info, err := s.camera.FeatureInfo(input.Name)
		if err != nil {
			return nil, toHTTPError(err)
		}

		if str, ok := input.Body.Value.(string); ok {
			err = s.camera.SetFeatureString(input.Name, str)
		} else {
			var v genicam.Value
			if v, err = genicam.ValueFromAny(info.Kind, input.Body.Value); err == nil {
				err = s.camera.SetFeature(input.Name, v)
			}
		}
		if err != nil {
			return nil, toHTTPError(err)
		}

		if info, err = s.camera.FeatureInfo(input.Name); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.FeatureResponse{Body: featureData(info)}, nil
	})
}
