package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly timetable generation for groups, teachers and time slots.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Timetable", "description": "Generation, proposals, saved runs and exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate a weekly timetable proposal",
                "description": "Inputs the engine rejects return 422 with the reason as the error message.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Input rejected by the engine", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/proposals/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get a generated proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Expired or unknown", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/proposals/{id}/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download a proposal",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/calendar"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "required": true, "type": "string", "enum": ["csv", "pdf", "xlsx", "ics"]},
                    {"name": "termStart", "in": "query", "type": "string", "format": "date"},
                    {"name": "weeks", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "404": {"description": "Expired or unknown", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/save": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Save a proposal as a draft timetable",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Expired or unknown", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal has conflicts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List saved timetables",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["DRAFT", "PUBLISHED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get a saved timetable with its sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable"],
                "summary": "Delete a draft timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/publish": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Publish a draft timetable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Service metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TimeSlotRequest": {
            "type": "object",
            "properties": {
                "position": {"type": "integer"},
                "startTime": {"type": "string", "example": "08:30"},
                "endTime": {"type": "string", "example": "10:00"},
                "duration": {"type": "integer", "example": 90}
            }
        },
        "SubjectRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "shortName": {"type": "string", "maxLength": 5}
            },
            "required": ["id"]
        },
        "TeacherRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "subjects": {"type": "array", "items": {"type": "string"}},
                "weeklyHours": {"type": "integer"}
            },
            "required": ["id"]
        },
        "GroupRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "subjects": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["id"]
        },
        "CorePolicyRequest": {
            "type": "object",
            "properties": {
                "subjects": {"type": "array", "items": {"type": "string"}},
                "coreSessions": {"type": "integer", "minimum": 1, "maximum": 12},
                "defaultSessions": {"type": "integer", "minimum": 1, "maximum": 12}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "groups": {"type": "array", "items": {"$ref": "#/definitions/GroupRequest"}},
                "teachers": {"type": "array", "items": {"$ref": "#/definitions/TeacherRequest"}},
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/SubjectRequest"}},
                "timeSlots": {"type": "array", "items": {"$ref": "#/definitions/TimeSlotRequest"}},
                "maxDaysPerWeek": {"type": "integer", "enum": [5, 6]},
                "balanceLoad": {"type": "boolean"},
                "preferFiveDays": {"type": "boolean"},
                "corePolicy": {"$ref": "#/definitions/CorePolicyRequest"}
            }
        },
        "SaveTimetableRequest": {
            "type": "object",
            "properties": {
                "proposalId": {"type": "string"}
            },
            "required": ["proposalId"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
