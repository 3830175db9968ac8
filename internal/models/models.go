package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// IncidentSource enum
type IncidentSource string

const (
	SourceCCTV   IncidentSource = "CCTV"
	SourceMobile IncidentSource = "MOBILE"
	SourceBoth   IncidentSource = "BOTH"
)

// Severity enum
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// MediaType enum
type MediaType string

const (
	MediaSnapshot MediaType = "snapshot"
	MediaVideo    MediaType = "video"
)

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, &j.Data)
	case string:
		return json.Unmarshal([]byte(v), &j.Data)
	default:
		return nil
	}
}

// Incident model - one record per inbound accident report
type Incident struct {
	ID             int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Source         IncidentSource `gorm:"column:source;index" json:"source"`
	CameraID       *string        `gorm:"column:camera_id;index" json:"cameraId,omitempty"`
	MobileReportID *int64         `gorm:"column:mobile_report_id" json:"mobileReportId,omitempty"`
	MobileReport   *MobileReport  `gorm:"foreignKey:MobileReportID" json:"mobileReport,omitempty"`

	Lat float64 `gorm:"column:lat" json:"lat"`
	Lng float64 `gorm:"column:lng" json:"lng"`

	OccurredAt time.Time `gorm:"column:occurred_at" json:"occurredAt"`
	ReportedAt time.Time `gorm:"column:reported_at;default:CURRENT_TIMESTAMP" json:"reportedAt"`

	Confidence *float64 `gorm:"column:confidence" json:"confidence,omitempty"`
	Severity   Severity `gorm:"column:severity;default:medium" json:"severity"`

	Status IncidentStatus `gorm:"column:status;default:new;index" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	// Owned children, removed with the incident
	Media      []Media     `gorm:"foreignKey:IncidentID;constraint:OnDelete:CASCADE" json:"media,omitempty"`
	ActionLogs []ActionLog `gorm:"foreignKey:IncidentID;constraint:OnDelete:CASCADE" json:"actionLogs,omitempty"`
}

func (Incident) TableName() string {
	return "incidents"
}

// MobileReport model - raw sensor burst behind a mobile-sourced incident.
// Every mobile report pairs 1:1 with its parent incident.
type MobileReport struct {
	ID     int64   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID *string `gorm:"column:user_id" json:"userId,omitempty"`

	AccPeak  *float64 `gorm:"column:acc_peak" json:"accPeak,omitempty"`
	GyroPeak *float64 `gorm:"column:gyro_peak" json:"gyroPeak,omitempty"`
	Speed    *float64 `gorm:"column:speed" json:"speed,omitempty"`

	Lat float64 `gorm:"column:lat" json:"lat"`
	Lng float64 `gorm:"column:lng" json:"lng"`

	Timestamp time.Time `gorm:"column:timestamp" json:"timestamp"`
	RawJSON   *string   `gorm:"column:raw_json" json:"rawJson,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (MobileReport) TableName() string {
	return "mobile_reports"
}

// Media model - snapshot or video evidence attached to an incident
type Media struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	IncidentID int64     `gorm:"column:incident_id;index" json:"incidentId"`
	MediaType  MediaType `gorm:"column:media_type" json:"mediaType"`
	FilePath   string    `gorm:"column:file_path" json:"filePath"`
	CreatedAt  time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (Media) TableName() string {
	return "media"
}

// ActionLog model - append-only audit trail, one row per state transition
type ActionLog struct {
	ID         int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	IncidentID int64      `gorm:"column:incident_id;index" json:"incidentId"`
	ActorID    string     `gorm:"column:actor_id" json:"actorId"`
	ActionType ActionType `gorm:"column:action_type" json:"actionType"`
	Note       string     `gorm:"column:note" json:"note"`
	CreatedAt  time.Time  `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (ActionLog) TableName() string {
	return "action_logs"
}

// FeedbackSample model - operator-confirmed false positive window,
// consumed read-only by the retraining pipeline
type FeedbackSample struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Timestamp   string    `gorm:"column:event_timestamp" json:"timestamp"`
	DeviceModel string    `gorm:"column:device_model" json:"deviceModel"`
	SensorData  JSONB     `gorm:"type:jsonb;column:sensor_data" json:"sensorData"`
	CreatedAt   time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (FeedbackSample) TableName() string {
	return "feedback_samples"
}

// ModelArtifact model - a published classifier build. Exactly one
// artifact (the highest version) is current at any time.
type ModelArtifact struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Version   int       `gorm:"column:version;uniqueIndex" json:"version"`
	Filename  string    `gorm:"column:filename" json:"filename"`
	TrainedAt time.Time `gorm:"column:trained_at;default:CURRENT_TIMESTAMP" json:"trainedAt"`
}

func (ModelArtifact) TableName() string {
	return "model_artifacts"
}
