// Package schemas хранит JSON-схемы сообщений, которыми обмениваются api и worker.
package schemas

import "embed"

//go:embed events
var SchemasFS embed.FS
