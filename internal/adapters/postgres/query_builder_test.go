package postgres_adapter

import (
	"testing"

	"property-import-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestApplyListFilters(t *testing.T) {
	qb := applyListFilters(domain.PropertyListQuery{TenantID: "t1", Sector: "north", Status: "sold"})

	assert.Equal(t,
		"WHERE p.deleted_at IS NULL AND p.tenant_id = $1 AND p.sector = $2 AND p.status = $3::property_status",
		qb.whereClause())
	assert.Equal(t, []interface{}{"t1", "north", "sold"}, qb.args)
}

func TestApplyPatch(t *testing.T) {
	title := "New title"
	status := domain.PropertyStatusRented
	beds := 4

	qb := applyPatch(domain.PropertyPatch{Title: &title, Status: &status, Bedrooms: &beds})
	assert.Equal(t, "title = $1, status = $2::property_status, bedrooms = $3", qb.setClause())
	assert.Equal(t, []interface{}{"New title", "rented", 4}, qb.args)
}
