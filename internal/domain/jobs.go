package domain

import (
	"context"
	"time"
)

// SyncJobCause описывает источник запроса на синхронизацию.
type SyncJobCause string

const (
	// SyncCauseScheduled — задача поставлена планировщиком по расписанию.
	SyncCauseScheduled SyncJobCause = "scheduled"
	// SyncCauseManual — синхронизация запрошена вручную через API.
	SyncCauseManual SyncJobCause = "manual"
)

// SyncJob содержит информацию о задаче синхронизации одного владельца.
type SyncJob struct {
	ID           string       `json:"job_id"`
	OwnerID      int64        `json:"owner_id"`
	Cause        SyncJobCause `json:"cause"`
	ScheduledFor time.Time    `json:"scheduled_for"`
	RequestedAt  time.Time    `json:"requested_at"`
}

// SyncQueue описывает очередь задач синхронизации.
type SyncQueue interface {
	Enqueue(ctx context.Context, job SyncJob) error
	Pop(ctx context.Context) (SyncJob, error)
}
