package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	msgMissingRequired    = "Missing required fields: title, address, sector, or price"
	msgExternalIDRequired = "external_id is required for UPSERT operations"
	msgCoordsRequired     = "Invalid coordinates - latitude and longitude are required"
)

// TransformRow проверяет и нормализует строку. Ошибка всегда *RowError.
func TransformRow(row SourceRow, tenantID, userID string) (PropertyDraft, error) {
	title := strings.TrimSpace(row.Title)
	address := strings.TrimSpace(row.Address)
	sector := strings.TrimSpace(row.Sector)
	rawPrice := strings.TrimSpace(row.Price)

	if title == "" || address == "" || sector == "" || rawPrice == "" {
		return PropertyDraft{}, rowErr(msgMissingRequired)
	}

	externalID := strings.TrimSpace(row.ExternalID)
	if externalID == "" {
		return PropertyDraft{}, rowErr(msgExternalIDRequired)
	}

	rawLat, rawLon := strings.TrimSpace(row.Latitude), strings.TrimSpace(row.Longitude)
	if rawLat == "" || rawLon == "" {
		return PropertyDraft{}, rowErr(msgCoordsRequired)
	}
	lat, latErr := parseFinite(rawLat)
	lon, lonErr := parseFinite(rawLon)
	if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return PropertyDraft{}, rowErr(fmt.Sprintf("Invalid coordinates - lat: %s, lon: %s", rawLat, rawLon))
	}

	price, err := parseFinite(rawPrice)
	if err != nil {
		return PropertyDraft{}, rowErr(fmt.Sprintf("Invalid price: %s", rawPrice))
	}

	owner := strings.TrimSpace(row.OwnerID)
	if owner == "" {
		owner = userID
	}

	return PropertyDraft{
		ExternalID:    externalID,
		Title:         title,
		Description:   strings.TrimSpace(row.Description),
		Address:       address,
		Sector:        sector,
		Type:          ParsePropertyType(row.Type),
		Status:        ParsePropertyStatus(row.Status),
		Price:         price,
		Area:          optionalFloat(row.Area),
		Bedrooms:      optionalInt(row.Bedrooms),
		Bathrooms:     optionalInt(row.Bathrooms),
		ParkingSpaces: optionalInt(row.ParkingSpaces),
		Latitude:      lat,
		Longitude:     lon,
		TenantID:      tenantID,
		OwnerID:       owner,
	}, nil
}

func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// некорректное опциональное число становится NULL, строка при этом не отклоняется
func optionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := parseFinite(raw)
	if err != nil {
		return nil
	}
	return &v
}

// колонки bedrooms/bathrooms/parking_spaces INTEGER: значение вне int32 тоже NULL
func optionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 32); err == nil {
		n := int(v)
		return &n
	}
	// "3.0" -> 3
	f, err := parseFinite(raw)
	if err != nil {
		return nil
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return nil
	}
	v := int(f)
	return &v
}
