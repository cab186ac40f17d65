// Пакет generated — контракт HTTP API из openapi.yaml в формате вывода
// oapi-codegen (chi-server): модели, параметры, ServerInterface
// и маршрутизация через chi.
package generated

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Defines values for Category.
const (
	CategoryDiplom        Category = "Diplom"
	CategoryENT           Category = "ENT"
	CategoryLgota         Category = "Lgota"
	CategoryMedSpravka    Category = "MedSpravka"
	CategoryPrivivka      Category = "Privivka"
	CategoryUdostoverenie Category = "Udostoverenie"
	CategoryUnclassified  Category = "Unclassified"
)

// Defines values for CheckResultStatus.
const (
	CheckResultStatusFail CheckResultStatus = "fail"
	CheckResultStatusOk   CheckResultStatus = "ok"
)

// Defines values for DeleteResultStatus.
const (
	DeleteResultStatusDeleted DeleteResultStatus = "deleted"
)

// Defines values for HealthStatusStatus.
const (
	HealthStatusStatusHealthy HealthStatusStatus = "healthy"
)

// Defines values for ProcessedFileStatus.
const (
	ProcessedFileStatusFailed       ProcessedFileStatus = "failed"
	ProcessedFileStatusSaved        ProcessedFileStatus = "saved"
	ProcessedFileStatusUnclassified ProcessedFileStatus = "unclassified"
)

// Defines values for ReadinessStatusStatus.
const (
	ReadinessStatusStatusFail ReadinessStatusStatus = "fail"
	ReadinessStatusStatusOk   ReadinessStatusStatus = "ok"
)

// Category defines model for Category.
type Category string

// CheckResult defines model for CheckResult.
type CheckResult struct {
	Message *string           `json:"message,omitempty"`
	Status  CheckResultStatus `json:"status"`
}

// CheckResultStatus defines model for CheckResult.Status.
type CheckResultStatus string

// DeleteResult defines model for DeleteResult.
type DeleteResult struct {
	Filename string             `json:"filename"`
	Id       *string            `json:"id,omitempty"`
	Status   DeleteResultStatus `json:"status"`
}

// DeleteResultStatus defines model for DeleteResult.Status.
type DeleteResultStatus string

// DiskInfo defines model for DiskInfo.
type DiskInfo struct {
	AvailableBytes int64   `json:"available_bytes"`
	TotalBytes     int64   `json:"total_bytes"`
	UsedBytes      int64   `json:"used_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// DocumentList defines model for DocumentList.
type DocumentList struct {
	Documents []StoredDocument `json:"documents"`
	Total     int              `json:"total"`
}

// HealthStatus defines model for HealthStatus.
type HealthStatus struct {
	Status  HealthStatusStatus `json:"status"`
	Version string             `json:"version"`
}

// HealthStatusStatus defines model for HealthStatus.Status.
type HealthStatusStatus string

// ProcessedFile defines model for ProcessedFile.
type ProcessedFile struct {
	Category     Category            `json:"category"`
	Id           openapi_types.UUID  `json:"id"`
	ModifiedAt   time.Time           `json:"modified_at"`
	NewName      *string             `json:"new_name,omitempty"`
	OriginalName string              `json:"original_name"`
	Size         int64               `json:"size"`
	Status       ProcessedFileStatus `json:"status"`
}

// ProcessedFileStatus defines model for ProcessedFile.Status.
type ProcessedFileStatus string

// ReadinessStatus defines model for ReadinessStatus.
type ReadinessStatus struct {
	Checks struct {
		Storage CheckResult `json:"storage"`
	} `json:"checks"`
	Status    ReadinessStatusStatus `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Version   string                `json:"version"`
}

// ReadinessStatusStatus defines model for ReadinessStatus.Status.
type ReadinessStatusStatus string

// ServiceInfo defines model for ServiceInfo.
type ServiceInfo struct {
	Disk           *DiskInfo `json:"disk,omitempty"`
	Documents      int       `json:"documents"`
	DocumentsBytes int64     `json:"documents_bytes"`
	Version        string    `json:"version"`
}

// StoredDocument defines model for StoredDocument.
type StoredDocument struct {
	Category       Category `json:"category"`
	CollisionIndex int      `json:"collision_index"`
	Filename       string   `json:"filename"`

	// Id Идентификатор из имени файла
	Id         string    `json:"id"`
	ModifiedAt time.Time `json:"modified_at"`
	Original   string    `json:"original"`
	Owner      string    `json:"owner"`
	Size       int64     `json:"size"`
}

// DocumentId defines model for DocumentId.
type DocumentId = openapi_types.UUID

// ListDocumentsParams defines parameters for ListDocuments.
type ListDocumentsParams struct {
	Name     *string `form:"name,omitempty" json:"name,omitempty"`
	Lastname *string `form:"lastname,omitempty" json:"lastname,omitempty"`
}

// DeleteFileParams defines parameters for DeleteFile.
type DeleteFileParams struct {
	Filename string `form:"filename" json:"filename"`
}

// DownloadZipParams defines parameters for DownloadZip.
type DownloadZipParams struct {
	Name     string `form:"name" json:"name"`
	Lastname string `form:"lastname" json:"lastname"`
}
