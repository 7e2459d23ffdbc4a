package rabbitmq_adapter

import (
	"time"

	"property-import-service/internal/core/domain"
)

// ImportJobMessageDTO тело ImportJobRequestedEvent v1.
// filename хранит ссылку на файл в хранилище, originalName имя, под которым его загрузили.
type ImportJobMessageDTO struct {
	ID             string    `json:"id"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Filename       string    `json:"filename"`
	OriginalName   string    `json:"originalName,omitempty"`
	FileKey        string    `json:"fileKey"`
	TenantID       string    `json:"tenantId"`
	UserID         string    `json:"userId"`
	TotalRows      int       `json:"totalRows"`
	Timestamp      time.Time `json:"timestamp"`
}

func toImportJobMessageDTO(job domain.ImportJob) ImportJobMessageDTO {
	return ImportJobMessageDTO{
		ID:             job.ID,
		IdempotencyKey: job.ID,
		Filename:       job.FileKey,
		OriginalName:   job.Filename,
		FileKey:        job.FileKey,
		TenantID:       job.TenantID,
		UserID:         job.UserID,
		TotalRows:      job.TotalRows,
		Timestamp:      job.EnqueuedAt.UTC(),
	}
}

func toDomainImportJob(dto ImportJobMessageDTO) domain.ImportJob {
	name := dto.OriginalName
	if name == "" {
		name = dto.Filename
	}
	key := dto.FileKey
	if key == "" {
		key = dto.Filename
	}
	return domain.ImportJob{
		ID:         dto.ID,
		TenantID:   dto.TenantID,
		UserID:     dto.UserID,
		Filename:   name,
		FileKey:    key,
		TotalRows:  dto.TotalRows,
		EnqueuedAt: dto.Timestamp,
	}
}
