package models

import "github.com/smazurov/camnode/internal/device"

type DeviceListData struct {
	Devices []device.Info `json:"devices" doc:"Discovered cameras"`
	Count   int           `json:"count" example:"1" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DeviceListData
}
