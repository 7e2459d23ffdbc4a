// Package migrations SQL-схема сервиса. Все файлы идемпотентны и применяются по порядку имени.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
