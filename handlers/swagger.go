package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the API.
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
    <title>presensync API docs</title>
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

// Minimal OpenAPI document describing the public endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "presensync", "version": "v1.0.0" },
  "paths": {
    "/auth/signup": {
      "post": { "summary": "Create an account and both profile copies", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"},"fullName":{"type":"string"},"role":{"type":"string","enum":["student","teacher"]}}}}}}, "responses": { "201": { "description": "tokens and redirect" }, "409": { "description": "email in use" } } }
    },
    "/auth/login": {
      "post": {
        "summary": "Sign in and resolve the dashboard",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"},"target":{"type":"string","enum":["student","teacher","admin"]}}}}}},
        "responses": { "200": { "description": "tokens returned" }, "401": { "description": "invalid credentials" }, "403": { "description": "role does not match target" }, "429": { "description": "too many attempts" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new access token" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/password": {
      "post": { "summary": "Change password (recent login required)", "responses": { "200": { "description": "changed" }, "401": { "description": "reauth required" } } }
    },
    "/api/v1/landing": { "get": { "summary": "Resolve landing redirect", "responses": { "200": { "description": "redirect" } } } },
    "/api/v1/me": {
      "get": { "summary": "Get own profile", "responses": { "200": { "description": "profile" } } },
      "patch": { "summary": "Update own profile on both copies", "responses": { "200": { "description": "profile" } } }
    },
    "/api/v1/me/face": { "put": { "summary": "Store face descriptor", "responses": { "200": { "description": "profile" } } } },
    "/api/v1/me/photo": {
      "put": { "summary": "Upload profile photo", "responses": { "200": { "description": "photo key and url" } } },
      "get": { "summary": "Presigned photo url", "responses": { "200": { "description": "url" } } }
    },
    "/api/v1/notifications": { "get": { "summary": "List own notifications", "responses": { "200": { "description": "notifications" } } } },
    "/api/v1/notifications/stream": { "get": { "summary": "Live notification stream (websocket)", "responses": { "101": { "description": "switching protocols" } } } },
    "/api/v1/sessions": {
      "get": { "summary": "List own attendance sessions (teacher)", "responses": { "200": { "description": "sessions" } } },
      "post": { "summary": "Start an attendance session for a class (teacher)", "responses": { "201": { "description": "session and QR payload" }, "404": { "description": "class not found" } } }
    },
    "/api/v1/classes": {
      "get": { "summary": "List own classes (teacher)", "responses": { "200": { "description": "classes" } } },
      "post": { "summary": "Create a class with its roster (teacher)", "responses": { "201": { "description": "class" }, "409": { "description": "class already exists" } } }
    },
    "/api/v1/classes/{id}": {
      "get": { "summary": "Get a class and its roster (teacher)", "responses": { "200": { "description": "class" }, "404": { "description": "class not found" } } },
      "delete": { "summary": "Delete a class (teacher)", "responses": { "200": { "description": "deleted" }, "404": { "description": "class not found" } } }
    },
    "/attendance/mark": { "post": { "summary": "Mark student attendance", "responses": { "200": { "description": "marked" }, "400": { "description": "expired QR or outside session window" }, "404": { "description": "session not found" }, "409": { "description": "already marked" } } } },
    "/admin/users": { "get": { "summary": "Get all user profiles (Admin only)", "responses": { "200": { "description": "users" } } } },
    "/admin/users/{uid}/role": { "put": { "summary": "Update user role (Admin only)", "responses": { "200": { "description": "updated" } } } },
    "/admin/users/{uid}": { "delete": { "summary": "Delete user profile documents (Admin only)", "responses": { "200": { "description": "deleted" } } } },
    "/admin/notifications/send_global": { "post": { "summary": "Send global notification to all users (Admin only)", "responses": { "200": { "description": "sent" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
