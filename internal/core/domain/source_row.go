package domain

import "strings"

// SourceRow сырая строка CSV, все поля опциональны
type SourceRow struct {
	ExternalID    string
	Title         string
	Description   string
	Address       string
	Sector        string
	Type          string
	Status        string
	Price         string
	Area          string
	Bedrooms      string
	Bathrooms     string
	ParkingSpaces string
	Latitude      string
	Longitude     string
	OwnerID       string
}

// HeaderIndex позиции колонок по нормализованному имени
type HeaderIndex map[string]int

// NewHeaderIndex строит индекс заголовка. Имена сравниваются без регистра,
// "_", "-" и пробелов: external_id == externalId, parking_spaces == parkingSpaces.
func NewHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		key := normalizeHeader(name)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)
}

func (h HeaderIndex) get(record []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

// Row извлекает SourceRow из записи CSV
func (h HeaderIndex) Row(record []string) SourceRow {
	return SourceRow{
		ExternalID:    h.get(record, "externalid"),
		Title:         h.get(record, "title"),
		Description:   h.get(record, "description"),
		Address:       h.get(record, "address"),
		Sector:        h.get(record, "sector"),
		Type:          h.get(record, "type"),
		Status:        h.get(record, "status"),
		Price:         h.get(record, "price"),
		Area:          h.get(record, "area"),
		Bedrooms:      h.get(record, "bedrooms"),
		Bathrooms:     h.get(record, "bathrooms"),
		ParkingSpaces: h.get(record, "parkingspaces"),
		Latitude:      h.get(record, "latitude"),
		Longitude:     h.get(record, "longitude"),
		OwnerID:       h.get(record, "ownerid"),
	}
}
