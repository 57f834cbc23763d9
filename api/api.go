// Package api embeds the OpenAPI description of the dashboard JSON API.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
