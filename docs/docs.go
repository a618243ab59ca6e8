// Package docs holds the swagger document served at /swagger.
// Regenerate with: swag init -g cmd/civicguru/main.go
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
        "/auth/token": {
            "post": {
                "description": "Verifies the pairing code and issues a bearer token for the device. The token is also accepted on /ws as ?token=",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Authentication"],
                "summary": "Pair a device",
                "parameters": [
                    {
                        "description": "Pairing code and optional device identity",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/auth.PairRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Device paired", "schema": {"$ref": "#/definitions/handlers.PairResponse"}},
                    "400": {"description": "Invalid request data", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid pairing code", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Conversation"],
                "summary": "List saved conversations, newest first",
                "responses": {
                    "200": {"description": "Conversation summaries", "schema": {"$ref": "#/definitions/handlers.ListConversationsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Conversation"],
                "produces": ["application/json"],
                "summary": "Clear all conversation history",
                "responses": {
                    "200": {"description": "History cleared", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Conversation"],
                "summary": "Get a conversation with its messages",
                "parameters": [{"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Conversation", "schema": {"$ref": "#/definitions/handlers.ConversationResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Conversation"],
                "summary": "Delete a conversation",
                "parameters": [{"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{id}/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/plain"],
                "tags": ["Conversation"],
                "summary": "Download a conversation as a text transcript",
                "parameters": [{"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Transcript file", "schema": {"type": "string"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/preferences/voice": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Preferences"],
                "summary": "Get voice settings",
                "responses": {
                    "200": {"description": "Voice settings", "schema": {"$ref": "#/definitions/handlers.VoiceResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Preferences"],
                "summary": "Update voice settings",
                "parameters": [
                    {"description": "Voice settings", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.VoicePreference"}}
                ],
                "responses": {
                    "200": {"description": "Stored settings, clamped", "schema": {"$ref": "#/definitions/handlers.VoiceResponse"}},
                    "400": {"description": "Invalid request data", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/pins": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Preferences"],
                "summary": "List pinned messages",
                "responses": {
                    "200": {"description": "Pinned messages", "schema": {"$ref": "#/definitions/handlers.ListPinsResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Preferences"],
                "summary": "Pin a message",
                "parameters": [
                    {"description": "Message to pin", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.CreatePin"}}
                ],
                "responses": {
                    "201": {"description": "Pinned", "schema": {"$ref": "#/definitions/handlers.PinResponse"}},
                    "409": {"description": "Limit reached or already pinned", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/pins/{timestamp}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Preferences"],
                "summary": "Unpin a message",
                "parameters": [{"type": "string", "description": "Message timestamp, RFC3339", "name": "timestamp", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Unpinned"},
                    "404": {"description": "Not pinned", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "auth.PairRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "482913"},
                "deviceId": {"type": "string"},
                "deviceName": {"type": "string", "example": "kitchen-speaker"}
            }
        },
        "auth.AuthTokens": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "deviceId": {"type": "string"},
                "expiresAt": {"type": "string"}
            }
        },
        "handlers.PairResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "tokens": {"$ref": "#/definitions/auth.AuthTokens"}
            }
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "types.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "speaker": {"type": "string", "enum": ["user", "assistant"]},
                "text": {"type": "string"},
                "is_final": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ConversationSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string", "example": "Traffic Rules"},
                "topic": {"type": "string"},
                "mode": {"type": "string", "enum": ["live", "quick", "deep"]},
                "language": {"type": "string", "enum": ["en", "hi"]},
                "messageCount": {"type": "integer"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "handlers.ListConversationsResponse": {
            "type": "object",
            "properties": {
                "conversations": {"type": "array", "items": {"$ref": "#/definitions/handlers.ConversationSummary"}},
                "total": {"type": "integer"}
            }
        },
        "types.Conversation": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "owner_id": {"type": "string"},
                "title": {"type": "string"},
                "topic": {"type": "string"},
                "mode": {"type": "string"},
                "language": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.Message"}}
            }
        },
        "handlers.ConversationResponse": {
            "type": "object",
            "properties": {
                "conversation": {"$ref": "#/definitions/types.Conversation"}
            }
        },
        "types.VoicePreference": {
            "type": "object",
            "properties": {
                "rate": {"type": "number", "example": 1.0},
                "pitch": {"type": "number", "example": 1.0},
                "volume": {"type": "number", "example": 0.8}
            }
        },
        "handlers.VoiceResponse": {
            "type": "object",
            "properties": {
                "voice": {"$ref": "#/definitions/types.VoicePreference"}
            }
        },
        "types.CreatePin": {
            "type": "object",
            "properties": {
                "conversation_id": {"type": "string"},
                "speaker": {"type": "string", "enum": ["user", "assistant"]},
                "text": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "types.PinnedMessage": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "speaker": {"type": "string"},
                "text": {"type": "string"},
                "timestamp": {"type": "string"},
                "conversation_id": {"type": "string"},
                "pinned_at": {"type": "string"}
            }
        },
        "handlers.PinResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "pin": {"$ref": "#/definitions/types.PinnedMessage"}
            }
        },
        "handlers.ListPinsResponse": {
            "type": "object",
            "properties": {
                "pins": {"type": "array", "items": {"$ref": "#/definitions/types.PinnedMessage"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "CivicGuru API",
	Description:      "Voice tutor for civic sense. Sessions run over /ws; history, pins and voice settings over REST.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
