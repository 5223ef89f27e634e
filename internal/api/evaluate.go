package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/pkg/evaluator"
)

func evaluate(req models.EvaluateRequestData) (models.EvaluateData, error) {
	ev, err := evaluator.New(req.Expression)
	if err != nil {
		return models.EvaluateData{}, err
	}
	for name, v := range req.Integers {
		ev.SetIntVariable(name, v)
	}
	for name, v := range req.Doubles {
		ev.SetDoubleVariable(name, v)
	}

	data := models.EvaluateData{Expression: ev.Expression(), Variables: ev.Variables()}
	if data.Variables == nil {
		data.Variables = []string{}
	}
	if data.Int64, err = ev.EvaluateAsInt64(); err != nil {
		return models.EvaluateData{}, err
	}
	if data.Double, err = ev.EvaluateAsDouble(); err != nil {
		return models.EvaluateData{}, err
	}
	return data, nil
}

func (s *Server) registerEvaluateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "evaluate-expression",
		Method:      http.MethodPost,
		Path:        "/api/evaluate",
		Summary:     "Evaluate Expression",
		Description: "Evaluate a formula expression as both int64 and double",
		Tags:        []string{"evaluator"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.EvaluateRequest) (*models.EvaluateResponse, error) {
		data, err := evaluate(input.Body)
		metrics.ObserveEvaluation(err)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.EvaluateResponse{Body: data}, nil
	})
}
