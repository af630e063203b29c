package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Delivery Ops API",
        "description": "Delivery lifecycle, supervisor alerts and live driver presence",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Deliveries", "description": "Delivery lifecycle"},
        {"name": "Alerts", "description": "Supervisor alert feed"},
        {"name": "Support", "description": "Driver support shortcut"},
        {"name": "Presence", "description": "Live driver locations"}
    ],
    "paths": {
        "/deliveries": {
            "get": {
                "tags": ["Deliveries"],
                "summary": "List deliveries",
                "description": "Drivers only see their own deliveries.",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["in_progress", "finalized", "returned"]},
                    {"name": "has_problem", "in": "query", "type": "boolean"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/export": {
            "get": {
                "tags": ["Deliveries"],
                "summary": "Export deliveries",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}": {
            "get": {
                "tags": ["Deliveries"],
                "summary": "Get delivery",
                "parameters": [{"$ref": "#/parameters/DeliveryID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}/problem": {
            "post": {
                "tags": ["Deliveries"],
                "summary": "Report a problem",
                "parameters": [
                    {"$ref": "#/parameters/DeliveryID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportProblemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Delivery is closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}/monitor": {
            "post": {
                "tags": ["Deliveries"],
                "summary": "Mark the open problem as monitored",
                "parameters": [{"$ref": "#/parameters/DeliveryID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "No open problem", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}/comments": {
            "post": {
                "tags": ["Deliveries"],
                "summary": "Comment on a delivery",
                "parameters": [
                    {"$ref": "#/parameters/DeliveryID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCommentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}/finalize": {
            "post": {
                "tags": ["Deliveries"],
                "summary": "Finalize a delivery",
                "parameters": [
                    {"$ref": "#/parameters/DeliveryID"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}/return": {
            "post": {
                "tags": ["Deliveries"],
                "summary": "Return a delivery",
                "parameters": [
                    {"$ref": "#/parameters/DeliveryID"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}/support": {
            "get": {
                "tags": ["Support"],
                "summary": "Support availability",
                "parameters": [{"$ref": "#/parameters/DeliveryID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Support"],
                "summary": "Request support",
                "parameters": [{"$ref": "#/parameters/DeliveryID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {
                        "description": "Cooling down",
                        "headers": {"Retry-After": {"type": "integer", "description": "Seconds until the next request is accepted"}},
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                }
            }
        },
        "/alerts": {
            "get": {
                "tags": ["Alerts"],
                "summary": "Active alerts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Supervisors only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/{id}/dismiss": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Dismiss an alert",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Dismissed"}
                }
            }
        },
        "/presence": {
            "get": {
                "tags": ["Presence"],
                "summary": "Online drivers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Presence"],
                "summary": "Report the caller's location",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertLocationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid coordinates", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "summary": "Metrics summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "parameters": {
        "DeliveryID": {"name": "id", "in": "path", "required": true, "type": "string"}
    },
    "definitions": {
        "ReportProblemRequest": {
            "type": "object",
            "required": ["problem_type"],
            "properties": {
                "problem_type": {"type": "string", "maxLength": 120},
                "note": {"type": "string", "maxLength": 1000}
            }
        },
        "AddCommentRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string", "maxLength": 500}
            }
        },
        "CheckoutRequest": {
            "type": "object",
            "properties": {
                "checkout_time": {"type": "string", "format": "date-time"}
            }
        },
        "UpsertLocationRequest": {
            "type": "object",
            "required": ["latitude", "longitude"],
            "properties": {
                "latitude": {"type": "number", "minimum": -90, "maximum": 90},
                "longitude": {"type": "number", "minimum": -180, "maximum": 180},
                "user_name": {"type": "string"},
                "captured_at": {"type": "string", "format": "date-time"}
            }
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
