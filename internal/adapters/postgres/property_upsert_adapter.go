package postgres_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// txBeginner *pgxpool.Pool или pgx.Tx
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ON CONFLICT делает lookup+merge атомарно. Политика слияния: все поля из CSV
// перезаписываются, id и created_at сохраняются, metadata объединяется,
// мягко удаленная запись восстанавливается.
const upsertPropertySQL = `
	INSERT INTO properties (
		external_id, title, description, address, sector, type, status,
		price, area, bedrooms, bathrooms, parking_spaces,
		coordinates, tenant_id, owner_id, metadata
	)
	VALUES (
		$1, $2, $3, $4, $5, $6::property_type, $7::property_status,
		$8, $9, $10, $11, $12,
		ST_GeogFromWKB($13), $14, $15, $16::jsonb
	)
	ON CONFLICT (external_id, tenant_id) DO UPDATE SET
		title          = EXCLUDED.title,
		description    = EXCLUDED.description,
		address        = EXCLUDED.address,
		sector         = EXCLUDED.sector,
		type           = EXCLUDED.type,
		status         = EXCLUDED.status,
		price          = EXCLUDED.price,
		area           = EXCLUDED.area,
		bedrooms       = EXCLUDED.bedrooms,
		bathrooms      = EXCLUDED.bathrooms,
		parking_spaces = EXCLUDED.parking_spaces,
		coordinates    = EXCLUDED.coordinates,
		owner_id       = EXCLUDED.owner_id,
		metadata       = properties.metadata || EXCLUDED.metadata || jsonb_build_object(
			'importHistory', COALESCE((properties.metadata->>'importHistory')::int, 0) + 1
		),
		updated_at     = NOW(),
		deleted_at     = NULL
	RETURNING (xmax = 0) AS inserted
`

// PropertyUpsertAdapter Upsert Engine: одна транзакция на пачку, savepoint на строку
type PropertyUpsertAdapter struct {
	db  txBeginner
	now func() time.Time
}

var _ port.PropertyUpsertPort = (*PropertyUpsertAdapter)(nil)

func NewPropertyUpsertAdapter(db txBeginner) (*PropertyUpsertAdapter, error) {
	if db == nil {
		return nil, errors.New("database handle cannot be nil for PropertyUpsertAdapter")
	}
	return &PropertyUpsertAdapter{db: db, now: time.Now}, nil
}

// errBatchAborted транзакция пачки больше не пригодна
type errBatchAborted struct{ err error }

func (e errBatchAborted) Error() string { return e.err.Error() }
func (e errBatchAborted) Unwrap() error { return e.err }

func (a *PropertyUpsertAdapter) CommitBatch(ctx context.Context, jobID string, items []domain.BatchItem) domain.BatchOutcome {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "PropertyUpsertAdapter",
		"method":     "CommitBatch",
		"job_id":     jobID,
		"batch_size": len(items),
	})
	if len(items) == 0 {
		return domain.BatchOutcome{}
	}

	outcome, err := a.commit(ctx, jobID, items)
	if err != nil {
		repoLogger.Error("Batch transaction failed", err, nil)
		return batchFailure(len(items), err)
	}

	repoLogger.Debug("Batch committed", port.Fields{
		"inserted": outcome.Inserted,
		"updated":  outcome.Updated,
		"failed":   outcome.Failed,
	})
	return outcome
}

func batchFailure(n int, err error) domain.BatchOutcome {
	return domain.BatchOutcome{
		Failed: n,
		Errors: []string{"Batch transaction failed: " + describeDBError(err)},
	}
}

func (a *PropertyUpsertAdapter) commit(ctx context.Context, jobID string, items []domain.BatchItem) (domain.BatchOutcome, error) {
	var outcome domain.BatchOutcome

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return outcome, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	importedAt := a.now().UTC().Format(time.RFC3339)

	for _, item := range items {
		inserted, err := a.upsertRow(ctx, tx, jobID, importedAt, item.Draft)
		if err != nil {
			var aborted errBatchAborted
			if errors.As(err, &aborted) {
				return outcome, aborted.err
			}
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, domain.FormatRowError(item.Ordinal, describeDBError(err)))
			continue
		}
		outcome.Successful++
		if inserted {
			outcome.Inserted++
		} else {
			outcome.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.BatchOutcome{}, fmt.Errorf("commit: %w", err)
	}
	return outcome, nil
}

// upsertRow пишет одну строку в собственном savepoint: ошибка откатывает только ее
func (a *PropertyUpsertAdapter) upsertRow(ctx context.Context, tx pgx.Tx, jobID, importedAt string, d domain.PropertyDraft) (bool, error) {
	point, err := pointWKB(d.Latitude, d.Longitude)
	if err != nil {
		return false, err
	}
	metadata, err := json.Marshal(map[string]interface{}{
		"source":        "csv_import",
		"csvBatch":      jobID,
		"lastCsvUpdate": importedAt,
		"geohash":       encodeGeohash(d.Latitude, d.Longitude),
		"importHistory": 1,
	})
	if err != nil {
		return false, err
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, errBatchAborted{fmt.Errorf("savepoint: %w", err)}
	}

	var inserted bool
	err = sp.QueryRow(ctx, upsertPropertySQL,
		d.ExternalID, d.Title, d.Description, d.Address, d.Sector, string(d.Type), string(d.Status),
		d.Price, d.Area, d.Bedrooms, d.Bathrooms, d.ParkingSpaces,
		point, d.TenantID, d.OwnerID, string(metadata),
	).Scan(&inserted)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return false, errBatchAborted{fmt.Errorf("rollback to savepoint: %w", rbErr)}
		}
		return false, err
	}

	if err := sp.Commit(ctx); err != nil {
		return false, errBatchAborted{fmt.Errorf("release savepoint: %w", err)}
	}
	return inserted, nil
}

// describeDBError текст ошибки Postgres без обертки драйвера
func describeDBError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return pgErr.Message + " (" + pgErr.Detail + ")"
		}
		return pgErr.Message
	}
	return err.Error()
}
