package httpapi

import "github.com/swaggo/swag"

// docTemplate is the OpenAPI description of the ops endpoints, in the layout
// swag init emits.
const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "description": "Models found in the configured models directory.",
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "List model files",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Registered handles, host features and uptime.",
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Handle status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["ops"],
                "summary": "Readiness probe; ready once preloading finished",
                "responses": {
                    "200": {"description": "ready"},
                    "503": {"description": "loading"}
                }
            }
        }
    },
    "definitions": {
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "llama-3.2-1b-instruct-q4_k_m.gguf"},
                "name": {"type": "string", "example": "llama-3.2-1b-instruct-q4_k_m"},
                "path": {"type": "string", "example": "/data/models/llama-3.2-1b-instruct-q4_k_m.gguf"},
                "quant": {"type": "string", "example": "Q4_K_M"},
                "size_bytes": {"type": "integer", "example": 807694464}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}
            }
        },
        "types.HandleStatus": {
            "type": "object",
            "properties": {
                "handle": {"type": "integer", "example": 1},
                "service": {"type": "string", "example": "asr"},
                "path": {"type": "string"},
                "loaded": {"type": "boolean"},
                "generating": {"type": "boolean"},
                "embedding_dim": {"type": "integer", "example": 2048},
                "context_size": {"type": "integer", "example": 4096},
                "threads": {"type": "integer", "example": 4},
                "gpu_layers": {"type": "integer", "example": 99},
                "loaded_at_unix": {"type": "integer"}
            }
        },
        "types.HostInfo": {
            "type": "object",
            "properties": {
                "os": {"type": "string", "example": "linux"},
                "arch": {"type": "string", "example": "arm64"},
                "num_cpu": {"type": "integer", "example": 8},
                "cpu_features": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "handles": {"type": "array", "items": {"$ref": "#/definitions/types.HandleStatus"}},
                "host": {"$ref": "#/definitions/types.HostInfo"},
                "generating": {"type": "integer"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"},
                "state": {"type": "string", "example": "ready"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "inferbridge ops API",
	Description:      "Status and metrics of the on-device inference bridge.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
