package postgres_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"property-import-service/internal/contextkeys"
	"property-import-service/internal/core/domain"
	"property-import-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const propertyColumns = `
	p.id, p.external_id, p.title, p.description, p.address, p.sector, p.type::text, p.status::text,
	p.price::float8, p.area::float8, p.bedrooms, p.bathrooms, p.parking_spaces,
	ST_AsBinary(p.coordinates), p.tenant_id, p.owner_id, p.metadata, p.created_at, p.updated_at`

// PostgresPropertyRepository чтение и прямые изменения записей
type PostgresPropertyRepository struct {
	pool *pgxpool.Pool
}

var _ port.PropertyRepositoryPort = (*PostgresPropertyRepository)(nil)

func NewPostgresPropertyRepository(pool *pgxpool.Pool) (*PostgresPropertyRepository, error) {
	if pool == nil {
		return nil, errors.New("pgxpool.Pool cannot be nil")
	}
	return &PostgresPropertyRepository{pool: pool}, nil
}

func scanProperty(row pgx.Row) (*domain.Property, error) {
	var (
		p        domain.Property
		typ, st  string
		point    []byte
		metadata []byte
	)
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Title, &p.Description, &p.Address, &p.Sector, &typ, &st,
		&p.Price, &p.Area, &p.Bedrooms, &p.Bathrooms, &p.ParkingSpaces,
		&point, &p.TenantID, &p.OwnerID, &metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Type = domain.ParsePropertyType(typ)
	p.Status = domain.ParsePropertyStatus(st)
	if p.Latitude, p.Longitude, err = latLonFromWKB(point); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &p, nil
}

func (r *PostgresPropertyRepository) List(ctx context.Context, q domain.PropertyListQuery) (*domain.PropertyPage, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresPropertyRepository",
		"method":    "List",
		"tenant_id": q.TenantID,
	})

	qb := applyListFilters(q)
	where := qb.whereClause()

	var total int
	countQuery := "SELECT COUNT(*) FROM properties p " + where
	if err := r.pool.QueryRow(ctx, countQuery, qb.args...).Scan(&total); err != nil {
		repoLogger.Error("Failed to count properties", err, port.Fields{"query": countQuery})
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}

	page := &domain.PropertyPage{Items: []domain.Property{}, Total: total, Limit: q.Limit, Offset: q.Offset}
	if total == 0 {
		return page, nil
	}

	limitArg := qb.next(q.Limit)
	offsetArg := qb.next(q.Offset)
	dataQuery := fmt.Sprintf(`SELECT %s FROM properties p %s ORDER BY p.updated_at DESC, p.id LIMIT $%d OFFSET $%d`,
		propertyColumns, where, limitArg, offsetArg)

	rows, err := r.pool.Query(ctx, dataQuery, qb.args...)
	if err != nil {
		repoLogger.Error("Failed to list properties", err, port.Fields{"query": dataQuery})
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		page.Items = append(page.Items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}

	repoLogger.Debug("Properties listed", port.Fields{"total": total, "returned": len(page.Items)})
	return page, nil
}

func (r *PostgresPropertyRepository) Update(ctx context.Context, tenantID string, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "PostgresPropertyRepository",
		"method":      "Update",
		"tenant_id":   tenantID,
		"property_id": id.String(),
	})

	qb := applyPatch(patch)
	qb.sets = append(qb.sets, "updated_at = NOW()")
	idArg := qb.next(id)
	tenantArg := qb.next(tenantID)

	query := fmt.Sprintf(`
		UPDATE properties p SET %s
		WHERE p.id = $%d AND p.tenant_id = $%d AND p.deleted_at IS NULL
		RETURNING %s`, qb.setClause(), idArg, tenantArg, propertyColumns)

	p, err := scanProperty(r.pool.QueryRow(ctx, query, qb.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			repoLogger.Warn("Property not found for update", nil)
			return nil, domain.ErrPropertyNotFound
		}
		repoLogger.Error("Failed to update property", err, port.Fields{"query": query})
		return nil, fmt.Errorf("failed to update property: %w", err)
	}
	return p, nil
}

func (r *PostgresPropertyRepository) SoftDelete(ctx context.Context, tenantID string, id uuid.UUID) error {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "PostgresPropertyRepository",
		"method":      "SoftDelete",
		"tenant_id":   tenantID,
		"property_id": id.String(),
	})

	query := `UPDATE properties SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id, tenantID)
	if err != nil {
		repoLogger.Error("Failed to delete property", err, nil)
		return fmt.Errorf("failed to delete property: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPropertyNotFound
	}
	return nil
}
