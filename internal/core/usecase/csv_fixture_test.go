package usecase

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/brianvoe/gofakeit/v6"
)

var csvHeader = []string{
	"external_id", "title", "description", "address", "sector", "type", "status",
	"price", "area", "bedrooms", "bathrooms", "parkingSpaces", "latitude", "longitude", "ownerId",
}

// fixtureRow валидная строка; поля можно переопределить по имени колонки
func fixtureRow(f *gofakeit.Faker, externalID string, overrides map[string]string) []string {
	values := map[string]string{
		"external_id":   externalID,
		"title":         f.Sentence(3),
		"description":   f.Sentence(8),
		"address":       f.Street(),
		"sector":        f.RandomString([]string{"north", "south", "center", "east"}),
		"type":          f.RandomString([]string{"house", "Apartment", "LAND", "warehouse", "castle"}),
		"status":        f.RandomString([]string{"active", "sold", "rented", ""}),
		"price":         strconv.FormatFloat(f.Price(10000, 900000), 'f', 2, 64),
		"area":          strconv.Itoa(f.Number(30, 400)),
		"bedrooms":      strconv.Itoa(f.Number(0, 6)),
		"bathrooms":     strconv.Itoa(f.Number(1, 4)),
		"parkingSpaces": strconv.Itoa(f.Number(0, 3)),
		"latitude":      strconv.FormatFloat(f.Float64Range(-89, 89), 'f', 6, 64),
		"longitude":     strconv.FormatFloat(f.Float64Range(-179, 179), 'f', 6, 64),
		"ownerId":       "",
	}
	for k, v := range overrides {
		values[k] = v
	}
	row := make([]string, len(csvHeader))
	for i, col := range csvHeader {
		row[i] = values[col]
	}
	return row
}

// buildCSV n валидных строк с external_id EXT-1..EXT-n; overrides по номеру строки (с 1)
func buildCSV(seed int64, n int, overrides map[int]map[string]string) []byte {
	f := gofakeit.New(seed)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for i := 1; i <= n; i++ {
		_ = w.Write(fixtureRow(f, fmt.Sprintf("EXT-%d", i), overrides[i]))
	}
	w.Flush()
	return buf.Bytes()
}
