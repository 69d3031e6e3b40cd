package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Incident Desk API",
        "description": "Internal incident-ticketing backend with CSV mirroring",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Tickets", "description": "Incident ticket lifecycle"},
        {"name": "Health", "description": "Probes"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/tickets": {
            "get": {
                "tags": ["Tickets"],
                "summary": "List tickets, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Tickets"],
                "summary": "Create ticket (JSON or multipart with attachments)",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CreateTicketRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate ticket id"}
                }
            }
        },
        "/tickets/stats": {
            "get": {
                "tags": ["Tickets"],
                "summary": "Aggregated statistics",
                "parameters": [
                    {"name": "month", "in": "query", "type": "string", "description": "YYYY-MM"},
                    {"name": "week", "in": "query", "type": "string", "description": "YYYY-Www"},
                    {"name": "year", "in": "query", "type": "string", "description": "YYYY"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TicketStatsResponse"}},
                    "400": {"description": "Malformed filter"}
                }
            }
        },
        "/tickets/export/all": {
            "get": {
                "tags": ["Tickets"],
                "summary": "Download the raw ticket CSV mirror",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"},
                    "404": {"description": "No tickets exported yet"}
                }
            }
        },
        "/tickets/{id}": {
            "get": {
                "tags": ["Tickets"],
                "summary": "Fetch one ticket",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found in store or mirror"}
                }
            },
            "put": {
                "tags": ["Tickets"],
                "summary": "Partially update a ticket",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTicketRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Tickets"],
                "summary": "Delete a ticket from store and mirror",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/tickets/{id}/history": {
            "get": {
                "tags": ["Tickets"],
                "summary": "Change log for one ticket",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tickets/{id}/download": {
            "get": {
                "tags": ["Tickets"],
                "summary": "Render a ticket summary PDF with image attachments",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "404": {"description": "Not found"}
                }
            }
        }
    },
    "definitions": {
        "Ticket": {
            "type": "object",
            "properties": {
                "ticket_id": {"type": "string"},
                "category": {"type": "string"},
                "sub_category": {"type": "string"},
                "opened": {"type": "string"},
                "reporter": {"type": "string"},
                "priority": {"type": "string"},
                "building": {"type": "string"},
                "location": {"type": "string"},
                "impacted_systems": {"type": "string"},
                "description": {"type": "string"},
                "detection_source": {"type": "string"},
                "detected_at": {"type": "string"},
                "root_cause": {"type": "string"},
                "actions_taken": {"type": "string"},
                "status": {"type": "string"},
                "assigned_engineers": {"type": "array", "items": {"type": "string"}},
                "resolution_summary": {"type": "string"},
                "resolved_at": {"type": "string"},
                "duration": {"type": "string"},
                "post_review": {"type": "string"},
                "attachments": {"type": "array", "items": {"type": "string"}},
                "escalation_history": {"type": "string"},
                "closed": {"type": "string"},
                "sla_breach": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "closed_at": {"type": "string"}
            }
        },
        "CreateTicketRequest": {
            "type": "object",
            "properties": {
                "ticket_id": {"type": "string", "description": "Generated when omitted"},
                "category": {"type": "string"},
                "sub_category": {"type": "string"},
                "opened": {"type": "string"},
                "reporter": {"type": "string"},
                "priority": {"type": "string"},
                "building": {"type": "string"},
                "location": {"type": "string"},
                "impacted_systems": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "assigned_engineers": {"type": "array", "items": {"type": "string"}},
                "attachments": {"type": "array", "items": {"type": "string"}},
                "sla_breach": {"type": "string"},
                "editor": {"type": "string"}
            }
        },
        "UpdateTicketRequest": {
            "type": "object",
            "description": "Partial merge; omitted fields keep their prior value",
            "properties": {
                "category": {"type": "string"},
                "status": {"type": "string"},
                "assigned_engineers": {"type": "array", "items": {"type": "string"}},
                "attachments": {"type": "array", "items": {"type": "string"}},
                "sla_breach": {"type": "string"},
                "editor": {"type": "string"}
            }
        },
        "HistoryEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "ticket_id": {"type": "string"},
                "timestamp": {"type": "string"},
                "action": {"type": "string", "enum": ["create", "update", "delete"]},
                "changes": {"type": "string"},
                "editor": {"type": "string"}
            }
        },
        "TicketStatsResponse": {
            "type": "object",
            "properties": {
                "totalTickets": {"type": "integer"},
                "byStatus": {"type": "object"},
                "byCategory": {"type": "object"},
                "byPriority": {"type": "object"},
                "ticketsOverTime": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/TimeBucket"}
                },
                "slaStats": {"$ref": "#/definitions/SLAStats"},
                "analytics": {"$ref": "#/definitions/StatsAnalytics"}
            }
        },
        "TimeBucket": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "opened": {"type": "integer"},
                "closed": {"type": "integer"}
            }
        },
        "SLAStats": {
            "type": "object",
            "properties": {
                "breached": {"type": "integer"},
                "onTime": {"type": "integer"},
                "complianceRate": {"type": "number"}
            }
        },
        "StatsAnalytics": {
            "type": "object",
            "properties": {
                "topCategory": {"type": "string"},
                "topPriority": {"type": "string"},
                "yearAnalyzed": {"type": "integer"}
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
