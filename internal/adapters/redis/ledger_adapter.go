package redis_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"property-import-service/internal/constants"
	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/redis/go-redis/v9"
)

const (
	fieldState     = "state"
	fieldJob       = "job"
	fieldProcessed = "processed"
	fieldResult    = "result"
	fieldError     = "error"
	fieldUpdatedAt = "updated_at"
)

// claimScript: запись в полете -> 0; иначе (нет записи или терминальная) -> новая queued, 1
var claimScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state == 'queued' or state == 'processing' then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'state', 'queued', 'job', ARGV[1], 'processed', '0', 'updated_at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// releaseScript удаляет только собственный claim в состоянии queued
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') == 'queued' then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// heartbeatScript обновляет прогресс и продлевает lease, только пока задача в processing
var heartbeatScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'processing' then
  return 0
end
redis.call('HSET', KEYS[1], 'processed', ARGV[1], 'updated_at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// recordErrorScript не создает запись без TTL, если ее уже нет
var recordErrorScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'error', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

// LedgerAdapter dedup ledger в Redis: hash import:job:<jobId> с TTL
type LedgerAdapter struct {
	client redis.UniversalClient
}

var _ port.ImportLedgerPort = (*LedgerAdapter)(nil)

func NewLedgerAdapter(client redis.UniversalClient) (*LedgerAdapter, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for LedgerAdapter")
	}
	return &LedgerAdapter{client: client}, nil
}

func ledgerKey(jobID string) string {
	return constants.LedgerKeyPrefix + jobID
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (a *LedgerAdapter) Claim(ctx context.Context, job domain.ImportJob, ttl time.Duration) (*domain.LedgerEntry, bool, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "LedgerAdapter",
		"method":    "Claim",
		"job_id":    job.ID,
	})

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, false, fmt.Errorf("marshal job: %w", err)
	}

	claimed, err := claimScript.Run(ctx, a.client, []string{ledgerKey(job.ID)},
		string(payload), nowString(), ttl.Milliseconds()).Int()
	if err != nil {
		logger.Error("Ledger claim failed", err, nil)
		return nil, false, fmt.Errorf("ledger claim: %w", err)
	}
	if claimed == 1 {
		logger.Debug("Ledger entry claimed", port.Fields{"ttl": ttl.String()})
		return nil, true, nil
	}

	existing, err := a.Get(ctx, job.ID)
	if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		return nil, false, err
	}
	logger.Info("Job already in flight", nil)
	return existing, false, nil
}

func (a *LedgerAdapter) Release(ctx context.Context, jobID string) error {
	if err := releaseScript.Run(ctx, a.client, []string{ledgerKey(jobID)}).Err(); err != nil {
		return fmt.Errorf("ledger release: %w", err)
	}
	return nil
}

func (a *LedgerAdapter) Get(ctx context.Context, jobID string) (*domain.LedgerEntry, error) {
	values, err := a.client.HGetAll(ctx, ledgerKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	if len(values) == 0 || values[fieldState] == "" {
		return nil, domain.ErrJobNotFound
	}
	return decodeEntry(jobID, values)
}

func decodeEntry(jobID string, values map[string]string) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{
		JobID: jobID,
		State: domain.LedgerState(values[fieldState]),
		Error: values[fieldError],
	}
	if raw := values[fieldJob]; raw != "" {
		var job domain.ImportJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("decode ledger job: %w", err)
		}
		entry.Job = &job
	}
	if raw := values[fieldResult]; raw != "" {
		var result domain.ImportResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("decode ledger result: %w", err)
		}
		entry.Result = &result
	}
	if raw := values[fieldProcessed]; raw != "" {
		entry.Processed, _ = strconv.Atoi(raw)
	}
	if raw := values[fieldUpdatedAt]; raw != "" {
		entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return entry, nil
}

func (a *LedgerAdapter) MarkProcessing(ctx context.Context, job domain.ImportJob, lease time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	key := ledgerKey(job.ID)
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldState, string(domain.LedgerProcessing),
			fieldJob, string(payload),
			fieldProcessed, "0",
			fieldUpdatedAt, nowString(),
		)
		pipe.HDel(ctx, key, fieldResult, fieldError)
		pipe.PExpire(ctx, key, lease)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger mark processing: %w", err)
	}
	return nil
}

func (a *LedgerAdapter) Heartbeat(ctx context.Context, jobID string, processed int, lease time.Duration) error {
	err := heartbeatScript.Run(ctx, a.client, []string{ledgerKey(jobID)},
		processed, nowString(), lease.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("ledger heartbeat: %w", err)
	}
	return nil
}

func (a *LedgerAdapter) RecordError(ctx context.Context, jobID string, reason string) error {
	if err := recordErrorScript.Run(ctx, a.client, []string{ledgerKey(jobID)}, reason, nowString()).Err(); err != nil {
		return fmt.Errorf("ledger record error: %w", err)
	}
	return nil
}

func (a *LedgerAdapter) Complete(ctx context.Context, jobID string, result domain.ImportResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return a.terminal(ctx, jobID, ttl,
		fieldState, string(domain.LedgerCompleted),
		fieldResult, string(payload),
		fieldProcessed, strconv.Itoa(result.Processed),
	)
}

func (a *LedgerAdapter) Fail(ctx context.Context, jobID string, reason string, ttl time.Duration) error {
	return a.terminal(ctx, jobID, ttl,
		fieldState, string(domain.LedgerFailed),
		fieldError, reason,
	)
}

func (a *LedgerAdapter) terminal(ctx context.Context, jobID string, ttl time.Duration, values ...interface{}) error {
	key := ledgerKey(jobID)
	values = append(values, fieldUpdatedAt, nowString())
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger terminal state: %w", err)
	}
	return nil
}
