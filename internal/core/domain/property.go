package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// PropertyType закрытый набор типов недвижимости
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeLand       PropertyType = "land"
	PropertyTypeWarehouse  PropertyType = "warehouse"
)

// PropertyStatus закрытый набор статусов
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusInactive PropertyStatus = "inactive"
	PropertyStatusSold     PropertyStatus = "sold"
	PropertyStatusRented   PropertyStatus = "rented"
)

var (
	propertyTypes = map[string]PropertyType{
		"house":      PropertyTypeHouse,
		"apartment":  PropertyTypeApartment,
		"commercial": PropertyTypeCommercial,
		"land":       PropertyTypeLand,
		"warehouse":  PropertyTypeWarehouse,
	}
	propertyStatuses = map[string]PropertyStatus{
		"active":   PropertyStatusActive,
		"inactive": PropertyStatusInactive,
		"sold":     PropertyStatusSold,
		"rented":   PropertyStatusRented,
	}
)

// Caser хранит состояние, поэтому создается на каждый вызов
func normalizeEnum(raw string) string {
	return cases.Fold().String(strings.TrimSpace(raw))
}

// ParsePropertyType никогда не возвращает ошибку: неизвестное значение -> house
func ParsePropertyType(raw string) PropertyType {
	if t, ok := propertyTypes[normalizeEnum(raw)]; ok {
		return t
	}
	return PropertyTypeHouse
}

// ParsePropertyStatus никогда не возвращает ошибку: неизвестное значение -> active
func ParsePropertyStatus(raw string) PropertyStatus {
	if s, ok := propertyStatuses[normalizeEnum(raw)]; ok {
		return s
	}
	return PropertyStatusActive
}

// LookupPropertyType строгий вариант для API (PATCH), где неизвестное значение это ошибка
func LookupPropertyType(raw string) (PropertyType, bool) {
	t, ok := propertyTypes[normalizeEnum(raw)]
	return t, ok
}

// LookupPropertyStatus строгий вариант для API
func LookupPropertyStatus(raw string) (PropertyStatus, bool) {
	s, ok := propertyStatuses[normalizeEnum(raw)]
	return s, ok
}

// PropertyDraft нормализованная строка CSV, готовая к upsert
type PropertyDraft struct {
	ExternalID    string
	Title         string
	Description   string
	Address       string
	Sector        string
	Type          PropertyType
	Status        PropertyStatus
	Price         float64
	Area          *float64
	Bedrooms      *int
	Bathrooms     *int
	ParkingSpaces *int
	Latitude      float64
	Longitude     float64
	TenantID      string
	OwnerID       string
}

// Property сохраненная запись. (ExternalID, TenantID) уникальны.
type Property struct {
	ID uuid.UUID `json:"id"`
	PropertyFields
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// PropertyFields поля, общие для ответа API
type PropertyFields struct {
	ExternalID    string         `json:"externalId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Address       string         `json:"address"`
	Sector        string         `json:"sector"`
	Type          PropertyType   `json:"type"`
	Status        PropertyStatus `json:"status"`
	Price         float64        `json:"price"`
	Area          *float64       `json:"area"`
	Bedrooms      *int           `json:"bedrooms"`
	Bathrooms     *int           `json:"bathrooms"`
	ParkingSpaces *int           `json:"parkingSpaces"`
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	TenantID      string         `json:"tenantId"`
	OwnerID       string         `json:"ownerId"`
}

// PropertyPatch частичное обновление, nil = не менять
type PropertyPatch struct {
	Title         *string
	Description   *string
	Address       *string
	Sector        *string
	Type          *PropertyType
	Status        *PropertyStatus
	Price         *float64
	Area          *float64
	Bedrooms      *int
	Bathrooms     *int
	ParkingSpaces *int
}

// IsEmpty ни одно поле не задано
func (p PropertyPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Address == nil && p.Sector == nil &&
		p.Type == nil && p.Status == nil && p.Price == nil && p.Area == nil &&
		p.Bedrooms == nil && p.Bathrooms == nil && p.ParkingSpaces == nil
}

// PropertyListQuery параметры списка; все кроме TenantID опциональны
type PropertyListQuery struct {
	TenantID string
	Sector   string
	Type     string
	Status   string
	Limit    int
	Offset   int
}

// CacheParams параметры запроса для ключа кэша; пустые значения не попадают в ключ
func (q PropertyListQuery) CacheParams() map[string]interface{} {
	params := map[string]interface{}{
		"tenantId": q.TenantID,
		"limit":    q.Limit,
		"offset":   q.Offset,
	}
	if q.Sector != "" {
		params["sector"] = q.Sector
	}
	if q.Type != "" {
		params["type"] = q.Type
	}
	if q.Status != "" {
		params["status"] = q.Status
	}
	return params
}

// PropertyPage страница списка
type PropertyPage struct {
	Items  []Property `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
