// Package docs registers the OpenAPI description of the users API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/users": {
            "get": {
                "description": "Returns one page of users. The query matches name or email case-insensitively; status narrows the result to active or inactive users.",
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "List users",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "1-based page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 10, "description": "Users per page", "name": "pageSize", "in": "query"},
                    {"type": "string", "example": "jane", "description": "Search text", "name": "query", "in": "query"},
                    {"enum": ["all", "active", "inactive"], "type": "string", "description": "Status filter", "name": "status", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/users/{user-id}": {
            "patch": {
                "description": "Activates or deactivates a user. When the server requires it, the caller must hold the hub_admin realm role.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Update a user's status",
                "parameters": [
                    {"type": "string", "example": "user-1", "description": "User ID", "name": "user-id", "in": "path", "required": true},
                    {"description": "New status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.UserResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "models.Group": {
            "type": "object",
            "properties": {"groupName": {"type": "string"}}
        },
        "models.ListResponse": {
            "type": "object",
            "properties": {"data": {"$ref": "#/definitions/models.ListResult"}}
        },
        "models.ListResult": {
            "type": "object",
            "properties": {
                "totalCount": {"type": "integer"},
                "users": {"type": "array", "items": {"$ref": "#/definitions/models.User"}}
            }
        },
        "models.UpdateStatusRequest": {
            "type": "object",
            "properties": {"status": {"type": "string", "enum": ["active", "inactive"]}}
        },
        "models.User": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "email": {"type": "string"},
                "groups": {"type": "array", "items": {"$ref": "#/definitions/models.Group"}},
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "inactive"]},
                "userId": {"type": "string"}
            }
        },
        "models.UserResponse": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/models.User"},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "v1",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "EODHP User Admin API",
	Description:      "Lists users and changes their status.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
