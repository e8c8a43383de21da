package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the record service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>records - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the record store API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "records", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "Record": { "type": "object", "properties": { "id": {"type":"integer","format":"uint64"}, "title": {"type":"string"}, "content": {"type":"string"}, "createdAt": {"type":"integer"}, "updatedAt": {"type":"integer"} } },
      "RecordInput": { "type": "object", "properties": { "title": {"type":"string"}, "content": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/records": {
      "get": { "summary": "List the caller's records", "responses": { "200": { "description": "records ordered by id" } } },
      "post": { "summary": "Create a record", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/RecordInput"}}}}, "responses": { "201": { "description": "created record" } } }
    },
    "/api/records/{id}": {
      "get": { "summary": "Get a record", "responses": { "200": { "description": "record" }, "404": { "description": "not found" } } },
      "put": { "summary": "Replace title and content", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/RecordInput"}}}}, "responses": { "200": { "description": "updated record" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a record (no-op when absent)", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/owners/{owner}/records/{id}": {
      "get": { "summary": "Get a record by owner and id (owner must be the caller)", "responses": { "200": { "description": "record" }, "404": { "description": "not found" } } }
    },
    "/api/records/events": { "get": { "summary": "Websocket feed of the caller's record events", "responses": { "101": { "description": "switching protocols" } } } },
    "/api/records/snapshot": { "post": { "summary": "Export the caller's records to object storage", "responses": { "202": { "description": "snapshot key" }, "503": { "description": "object storage not configured" } } } },
    "/auth/logout": { "post": { "summary": "Revoke the presented bearer token", "responses": { "204": { "description": "revoked" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
