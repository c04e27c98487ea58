package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Portal API",
        "description": "Timetable, QR attendance, and student directory service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, refresh, logout"},
        {"name": "Classes", "description": "Timetable class directory"},
        {"name": "Attendance", "description": "QR token mint and redemption flow"},
        {"name": "Students", "description": "Student directory and roster"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "User info"}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List timetable classes",
                "responses": {
                    "200": {"description": "Class list"}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create a class (admin)",
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Authority role required"}
                }
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get one class",
                "responses": {
                    "200": {"description": "Class"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Update a class (admin)",
                "responses": {
                    "200": {"description": "Updated"}
                }
            },
            "delete": {
                "tags": ["Classes"],
                "summary": "Delete a class and its attendance records (admin)",
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/classes/{id}/token": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mint a fresh attendance token (admin)",
                "responses": {
                    "200": {"description": "Token payload with expiry"}
                }
            }
        },
        "/classes/{id}/token/qr": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Current token rendered as a QR PNG (admin)",
                "produces": ["image/png"],
                "responses": {
                    "200": {"description": "PNG image"},
                    "404": {"description": "No active token"}
                }
            }
        },
        "/attendance/scan-sessions": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Open a scanner session (student)",
                "responses": {
                    "201": {"description": "Session id"}
                }
            }
        },
        "/attendance/redeem": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Redeem a scanned token (student)",
                "responses": {
                    "200": {"description": "Redemption outcome"}
                }
            }
        },
        "/attendance": {
            "put": {
                "tags": ["Attendance"],
                "summary": "Manual attendance override (admin)",
                "responses": {
                    "200": {"description": "Stored record"}
                }
            }
        },
        "/attendance/status": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Record for one student and day",
                "responses": {
                    "200": {"description": "Record, or null when unmarked"}
                }
            }
        },
        "/attendance/stats": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Present count against the roster (admin)",
                "responses": {
                    "200": {"description": "Stats"}
                }
            }
        },
        "/attendance/sheet": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Roster-joined attendance sheet (admin)",
                "responses": {
                    "200": {"description": "Sheet rows, CSV, or PDF"}
                }
            }
        },
        "/attendance/history": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Day-by-day attendance history",
                "responses": {
                    "200": {"description": "History rows"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "responses": {
                    "200": {"description": "Student list"}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student (admin)",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get one student",
                "responses": {
                    "200": {"description": "Student"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student (admin)",
                "responses": {
                    "200": {"description": "Updated"}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student (admin)",
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/students/import": {
            "post": {
                "tags": ["Students"],
                "summary": "Bulk import students (admin)",
                "responses": {
                    "200": {"description": "Import summary with conflicts"}
                }
            }
        }
    },
    "definitions": {
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
