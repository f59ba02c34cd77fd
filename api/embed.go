// Package api carries the OpenAPI document served at /docs.
package api

import _ "embed"

// OpenAPI is the raw OpenAPI 3 document, compiled into the binary so the
// docs routes work regardless of the working directory.
//
//go:embed openapi.yaml
var OpenAPI []byte
