// Package docs registers the OpenAPI document served at /docs/doc.json.
// Regenerate with: swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Contest Tracker"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/contests": {
            "get": {
                "description": "Returns Codeforces, CodeChef and Leetcode contests starting between now-7d and now+30d, ordered by start. Cached with ETag support.",
                "produces": ["application/json"],
                "tags": ["contests"],
                "summary": "List contests",
                "parameters": [
                    {
                        "enum": ["Codeforces", "CodeChef", "Leetcode"],
                        "type": "string",
                        "description": "Filter by platform",
                        "name": "platform",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.contestView"}}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/users": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Create or update a user",
                "parameters": [
                    {"description": "User", "name": "user", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.userRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/reminder.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/users/{userID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get a user",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/reminder.User"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/users/{userID}/reminders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "List reminder preferences",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/reminder.Preference"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            },
            "put": {
                "description": "Upserts by contest id. Method defaults to email and lead time to 60 minutes.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Set a reminder preference",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Reminder preference", "name": "reminder", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.reminderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/reminder.Preference"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/users/{userID}/reminders/{contestID}": {
            "delete": {
                "tags": ["reminders"],
                "summary": "Delete a reminder preference",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"type": "integer", "description": "Contest ID", "name": "contestID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/reminders/sweep": {
            "post": {
                "description": "Runs one sweep now and returns its counters. Returns 409 if a sweep is already running.",
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Run a reminder sweep",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/sweep.Result"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.contestView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "event": {"type": "string"},
                "platform": {"type": "string"},
                "href": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "duration": {"type": "integer"},
                "status": {"type": "string"}
            }
        },
        "handler.userRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "phone_number": {"type": "string"}
            }
        },
        "handler.reminderRequest": {
            "type": "object",
            "properties": {
                "contest_id": {"type": "integer"},
                "platform": {"type": "string"},
                "method": {"type": "string"},
                "time_before_minutes": {"type": "integer"},
                "contest_start": {"type": "string"}
            }
        },
        "reminder.Preference": {
            "type": "object",
            "properties": {
                "contest_id": {"type": "integer"},
                "platform": {"type": "string"},
                "method": {"type": "string"},
                "time_before_minutes": {"type": "integer"},
                "contest_start": {"type": "string"}
            }
        },
        "reminder.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "phone_number": {"type": "string"},
                "reminders": {"type": "array", "items": {"$ref": "#/definitions/reminder.Preference"}}
            }
        },
        "respond.ErrorBody": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "detail": {"type": "string"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/respond.ErrorBody"}
            }
        },
        "sweep.Result": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "at": {"type": "string"},
                "users": {"type": "integer"},
                "preferences": {"type": "integer"},
                "invalid": {"type": "integer"},
                "unresolved": {"type": "integer"},
                "not_due": {"type": "integer"},
                "due": {"type": "integer"},
                "sent": {"type": "integer"},
                "duplicates": {"type": "integer"},
                "failed": {"type": "integer"},
                "no_contact": {"type": "integer"},
                "feed_error": {"type": "string"},
                "duration_ns": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Contest Tracker API",
	Description:      "Contest listing and per-contest reminder preferences for Codeforces, CodeChef and Leetcode. Reminders are sent by email or SMS once per contest and method.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
