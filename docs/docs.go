// Package docs встраивает OpenAPI-описание HTTP API таймеров.
package docs

import _ "embed"

//go:embed openapi.json
var OpenAPI []byte
