package models

import (
	"time"

	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/types"
	"github.com/smazurov/camnode/pkg/genicam"
)

type CameraData struct {
	DeviceID     string       `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	Vendor       string       `json:"vendor" example:"camnode" doc:"Vendor name"`
	Model        string       `json:"model" example:"Fake" doc:"Model name"`
	Serial       string       `json:"serial" example:"1" doc:"Serial number"`
	State        string       `json:"state" enum:"idle,acquiring" doc:"Acquisition state"`
	SensorWidth  int          `json:"sensor_width" example:"2048" doc:"Sensor width in pixels"`
	SensorHeight int          `json:"sensor_height" example:"2048" doc:"Sensor height in pixels"`
	Region       types.Region `json:"region" doc:"Current region of interest"`
	PixelFormat  string       `json:"pixel_format" example:"Mono8" doc:"Current pixel format"`
	PixelFormats []string     `json:"pixel_formats" doc:"Pixel formats the camera supports"`
	FrameRate    float64      `json:"frame_rate" example:"25" doc:"Acquisition frame rate in Hz"`
	FrameRateMin float64      `json:"frame_rate_min" example:"0.1" doc:"Lowest accepted frame rate"`
	FrameRateMax float64      `json:"frame_rate_max" example:"100" doc:"Highest accepted frame rate"`
	ExposureTime *float64     `json:"exposure_time,omitempty" example:"10000" doc:"Exposure time in microseconds"`
	Gain         *float64     `json:"gain,omitempty" example:"0" doc:"Gain in dB"`
	Payload      int          `json:"payload" example:"262144" doc:"Frame size in bytes"`
}

type CameraResponse struct {
	Body CameraData
}

type RegionRequestData struct {
	X      int `json:"x" minimum:"0" example:"0" doc:"Horizontal offset"`
	Y      int `json:"y" minimum:"0" example:"0" doc:"Vertical offset"`
	Width  int `json:"width" minimum:"1" example:"512" doc:"Region width"`
	Height int `json:"height" minimum:"1" example:"512" doc:"Region height"`
}

type RegionRequest struct {
	Body RegionRequestData
}

type RegionResponse struct {
	Body struct {
		Region  types.Region `json:"region" doc:"Region after snapping to the increment grid"`
		Payload int          `json:"payload" example:"262144" doc:"New frame size in bytes"`
	}
}

type PixelFormatRequest struct {
	Body struct {
		PixelFormat string `json:"pixel_format" example:"Mono16" doc:"Pixel format name or 0x-prefixed PFNC code"`
	}
}

type PixelFormatResponse struct {
	Body struct {
		PixelFormat string `json:"pixel_format" example:"Mono16" doc:"Current pixel format"`
		Payload     int    `json:"payload" example:"524288" doc:"New frame size in bytes"`
	}
}

type FrameRateRequest struct {
	Body struct {
		FrameRate float64 `json:"frame_rate" exclusiveMinimum:"0" example:"30" doc:"Frame rate in Hz"`
	}
}

type FrameRateData struct {
	FrameRate float64 `json:"frame_rate" example:"30" doc:"Acquisition frame rate in Hz"`
	Min       float64 `json:"min" example:"0.1" doc:"Lowest accepted frame rate"`
	Max       float64 `json:"max" example:"100" doc:"Highest accepted frame rate"`
}

type FrameRateResponse struct {
	Body FrameRateData
}

type PayloadResponse struct {
	Body struct {
		Payload int `json:"payload" example:"262144" doc:"Frame size in bytes"`
	}
}

// Feature models
type FeatureData struct {
	Name        string              `json:"name" example:"Gain" doc:"Feature name"`
	Description string              `json:"description,omitempty" doc:"Feature description"`
	Kind        string              `json:"kind" example:"Float" doc:"Node kind"`
	Access      string              `json:"access" example:"RW" doc:"Access mode"`
	Unit        string              `json:"unit,omitempty" example:"dB" doc:"Value unit"`
	Value       any                 `json:"value,omitempty" doc:"Current value"`
	Error       string              `json:"error,omitempty" doc:"Why the value could not be read"`
	Min         *int64              `json:"min,omitempty" doc:"Integer minimum"`
	Max         *int64              `json:"max,omitempty" doc:"Integer maximum"`
	Inc         *int64              `json:"inc,omitempty" doc:"Integer increment"`
	FloatMin    *float64            `json:"float_min,omitempty" doc:"Float minimum"`
	FloatMax    *float64            `json:"float_max,omitempty" doc:"Float maximum"`
	Entries     []genicam.EnumEntry `json:"entries,omitempty" doc:"Enumeration entries"`
	Formula     string              `json:"formula,omitempty" doc:"Formula for computed nodes"`
}

type FeatureNameInput struct {
	Name string `path:"name" example:"Gain" doc:"Feature name"`
}

type FeatureWriteInput struct {
	FeatureNameInput
	Body struct {
		Value any `json:"value" doc:"New value; strings are parsed according to the node kind"`
	}
}

type FeatureResponse struct {
	Body FeatureData
}

type FeatureListData struct {
	Features []FeatureData `json:"features" doc:"Feature nodes sorted by name"`
	Count    int           `json:"count" example:"20" doc:"Number of features"`
}

type FeaturesResponse struct {
	Body FeatureListData
}

// Stream models
type CreateStreamRequest struct {
	Body struct {
		Buffers int `json:"buffers" default:"10" minimum:"1" maximum:"256" doc:"Buffers to allocate and queue"`
	}
}

type StreamData struct {
	Payload int `json:"payload" example:"262144" doc:"Buffer size in bytes"`
	Buffers int `json:"buffers" example:"10" doc:"Buffers queued"`
}

type StreamResponse struct {
	Body StreamData
}

type AcquisitionData struct {
	DeviceID string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	State    string `json:"state" enum:"idle,acquiring" doc:"Acquisition state"`
}

type AcquisitionResponse struct {
	Body AcquisitionData
}

type StatisticsResponse struct {
	Body stream.Statistics
}

type BufferInput struct {
	TimeoutMs int `query:"timeout_ms" default:"1000" minimum:"0" maximum:"60000" doc:"How long to wait for a filled buffer"`
}

type BufferData struct {
	FrameID     uint64       `json:"frame_id" example:"42" doc:"Frame counter"`
	Status      string       `json:"status" example:"filled" doc:"Buffer status"`
	Timestamp   time.Time    `json:"timestamp" doc:"When the frame was filled"`
	Region      types.Region `json:"region" doc:"Region the frame covers"`
	PixelFormat string       `json:"pixel_format" example:"Mono8" doc:"Frame pixel format"`
	Size        int          `json:"size" example:"262144" doc:"Buffer size in bytes"`
	Mean        float64      `json:"mean" example:"127.5" doc:"Mean byte value of the frame"`
}

type BufferResponse struct {
	Body BufferData
}

type SnapshotResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
