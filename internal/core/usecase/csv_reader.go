package usecase

import (
	"encoding/csv"
	"errors"
	"io"
)

// newCSVReader терпимый к кавычкам и разной длине строк; колонки сопоставляются по заголовку
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

// countCSVRows число строк данных без заголовка. При ошибке разбора возвращает
// сколько успело насчитаться: это только оценка для клиента.
func countCSVRows(r io.Reader) (int, error) {
	cr := newCSVReader(r)
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
