package postgres_adapter

import (
	"fmt"
	"strings"

	"property-import-service/internal/core/domain"
)

// queryBuilder собирает WHERE/SET с позиционными параметрами
type queryBuilder struct {
	conditions []string
	sets       []string
	args       []interface{}
}

func (qb *queryBuilder) next(arg interface{}) int {
	qb.args = append(qb.args, arg)
	return len(qb.args)
}

// where условие вида "p.sector = $%d"
func (qb *queryBuilder) where(condition string, arg interface{}) {
	qb.conditions = append(qb.conditions, fmt.Sprintf(condition, qb.next(arg)))
}

// set выражение вида "title = $%d"
func (qb *queryBuilder) set(expr string, arg interface{}) {
	qb.sets = append(qb.sets, fmt.Sprintf(expr, qb.next(arg)))
}

func (qb *queryBuilder) whereClause() string {
	if len(qb.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(qb.conditions, " AND ")
}

func (qb *queryBuilder) setClause() string {
	return strings.Join(qb.sets, ", ")
}

// applyListFilters тенант обязателен, удаленные записи не показываются
func applyListFilters(q domain.PropertyListQuery) *queryBuilder {
	qb := &queryBuilder{conditions: []string{"p.deleted_at IS NULL"}}
	qb.where("p.tenant_id = $%d", q.TenantID)
	if q.Sector != "" {
		qb.where("p.sector = $%d", q.Sector)
	}
	if q.Type != "" {
		qb.where("p.type = $%d::property_type", q.Type)
	}
	if q.Status != "" {
		qb.where("p.status = $%d::property_status", q.Status)
	}
	return qb
}

// applyPatch только заданные поля попадают в SET
func applyPatch(p domain.PropertyPatch) *queryBuilder {
	qb := &queryBuilder{}
	if p.Title != nil {
		qb.set("title = $%d", *p.Title)
	}
	if p.Description != nil {
		qb.set("description = $%d", *p.Description)
	}
	if p.Address != nil {
		qb.set("address = $%d", *p.Address)
	}
	if p.Sector != nil {
		qb.set("sector = $%d", *p.Sector)
	}
	if p.Type != nil {
		qb.set("type = $%d::property_type", string(*p.Type))
	}
	if p.Status != nil {
		qb.set("status = $%d::property_status", string(*p.Status))
	}
	if p.Price != nil {
		qb.set("price = $%d", *p.Price)
	}
	if p.Area != nil {
		qb.set("area = $%d", *p.Area)
	}
	if p.Bedrooms != nil {
		qb.set("bedrooms = $%d", *p.Bedrooms)
	}
	if p.Bathrooms != nil {
		qb.set("bathrooms = $%d", *p.Bathrooms)
	}
	if p.ParkingSpaces != nil {
		qb.set("parking_spaces = $%d", *p.ParkingSpaces)
	}
	return qb
}
