package models

import (
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Expression evaluation models
type EvaluateRequestData struct {
	Expression string             `json:"expression" minLength:"1" example:"WIDTH * HEIGHT" doc:"Expression to evaluate"`
	Integers   map[string]int64   `json:"integers,omitempty" doc:"Integer variable bindings"`
	Doubles    map[string]float64 `json:"doubles,omitempty" doc:"Floating point variable bindings"`
}

type EvaluateRequest struct {
	Body EvaluateRequestData
}

type EvaluateData struct {
	Expression string   `json:"expression" example:"1 + 2 * 4.4" doc:"Evaluated expression"`
	Int64      int64    `json:"int64" example:"9" doc:"Result evaluated as a 64-bit integer"`
	Double     float64  `json:"double" example:"9.8" doc:"Result evaluated as a double"`
	Variables  []string `json:"variables" doc:"Variables referenced by the expression"`
}

type EvaluateResponse struct {
	Body EvaluateData
}

// Log models
type LogsInput struct {
	Since uint64 `query:"since" example:"120" doc:"Only return entries with a greater sequence number"`
	Limit int    `query:"limit" default:"200" minimum:"1" maximum:"5000" doc:"Maximum number of entries"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int                `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelRequestData struct {
	Module string `json:"module,omitempty" example:"camera" doc:"Module name; empty sets the global level"`
	Level  string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New log level"`
}

type LogLevelRequest struct {
	Body LogLevelRequestData
}

type LogLevelsResponse struct {
	Body struct {
		Levels map[string]string `json:"levels" doc:"Effective level per module"`
	}
}

// Systemd models
type ServiceStatusData struct {
	Unit        string `json:"unit" example:"camnode.service" doc:"Unit name"`
	LoadState   string `json:"load_state" example:"loaded" doc:"Whether the unit file was loaded"`
	ActiveState string `json:"active_state" example:"active" doc:"High-level unit state"`
	SubState    string `json:"sub_state" example:"running" doc:"Low-level unit state"`
}

type ServiceStatusResponse struct {
	Body ServiceStatusData
}

type ServiceActionData struct {
	Unit    string `json:"unit" example:"camnode.service" doc:"Unit name"`
	Action  string `json:"action" example:"restart" doc:"Action performed"`
	Success bool   `json:"success" example:"true" doc:"Whether the job was queued"`
}

type ServiceActionResponse struct {
	Body ServiceActionData
}
