// Package docs registers the OpenAPI document served under /swagger/.
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
        "/pipelines": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "List pipelines",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.PipelineStatus"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Create a pipeline",
                "parameters": [{"description": "Pipeline definition", "name": "pipeline", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.Definition"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Definition"}},
                    "400": {"description": "Invalid definition or schedule", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Pipeline already exists", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/validate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Validate a pipeline definition",
                "parameters": [{"description": "Pipeline definition", "name": "pipeline", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.Definition"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ValidationResult"}}
                }
            }
        },
        "/pipelines/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Get pipeline",
                "parameters": [{"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PipelineStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Delete pipeline",
                "parameters": [{"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.MessageResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{name}/run": {
            "post": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Run pipeline now",
                "parameters": [{"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RunResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Pipeline already running", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{name}/schedule": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Reschedule pipeline",
                "parameters": [
                    {"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true},
                    {"description": "Five-field cron expression", "name": "schedule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PipelineStatus"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{name}/enable": {
            "post": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Enable pipeline",
                "parameters": [{"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PipelineStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{name}/disable": {
            "post": {
                "produces": ["application/json"],
                "tags": ["pipelines"],
                "summary": "Disable pipeline",
                "parameters": [{"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PipelineStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/pipelines/{name}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Pipeline history",
                "parameters": [
                    {"type": "string", "description": "Pipeline name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "default": 10, "description": "Maximum entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HistoryResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Job history",
                "parameters": [
                    {"type": "string", "description": "Filter by pipeline name", "name": "pipeline", "in": "query"},
                    {"type": "integer", "default": 50, "description": "Maximum entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HistoryResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["scheduler"],
                "summary": "Scheduler status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SchedulerStatus"}}
                }
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["scheduler"],
                "summary": "Run statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Stats"}}
                }
            }
        },
        "/scheduler/restart": {
            "post": {
                "produces": ["application/json"],
                "tags": ["scheduler"],
                "summary": "Restart scheduler",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SchedulerStatus"}}
                }
            }
        }
    },
    "definitions": {
        "handler.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}}},
        "handler.MessageResponse": {"type": "object", "properties": {"message": {"type": "string"}, "pipeline": {"type": "string"}}},
        "handler.ScheduleRequest": {"type": "object", "properties": {"schedule": {"type": "string"}}},
        "handler.HistoryResponse": {
            "type": "object",
            "properties": {
                "pipeline": {"type": "string"},
                "count": {"type": "integer"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/model.JobHistoryEntry"}}
            }
        },
        "model.Definition": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "source": {"type": "object"},
                "destination": {"type": "object"},
                "transformations": {"type": "array", "items": {"type": "object"}},
                "schedule": {"type": "string"},
                "enabled": {"type": "boolean"}
            }
        },
        "model.ValidationResult": {
            "type": "object",
            "properties": {"isValid": {"type": "boolean"}, "errors": {"type": "array", "items": {"type": "string"}}}
        },
        "model.RunResult": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "pipelineName": {"type": "string"},
                "success": {"type": "boolean"},
                "recordsProcessed": {"type": "integer"},
                "recordsSuccessful": {"type": "integer"},
                "recordsFailure": {"type": "integer"},
                "recordsLoaded": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "executionTimeMs": {"type": "integer"},
                "dataHash": {"type": "string"}
            }
        },
        "model.JobHistoryEntry": {"type": "object"},
        "model.PipelineStatus": {"type": "object"},
        "model.SchedulerStatus": {"type": "object"},
        "model.Stats": {"type": "object"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "ETL Pipeline Scheduler API",
	Description:      "Run, schedule and inspect ETL pipelines.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
