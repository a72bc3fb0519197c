// Package docs 由 swag 生成
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API支持"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/submit": {
            "post": {
                "description": "规范化、校验并评分后保存。带 submission_id 的重复提交返回原记录（200, duplicate=true）",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["问卷"],
                "summary": "提交问卷",
                "parameters": [
                    {
                        "description": "问卷数据",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/model.Submission"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/controller.SubmitResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/controller.SubmitResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/util.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/util.ErrorResponse"}}
                }
            }
        },
        "/api/questionnaire/{id}": {
            "get": {
                "description": "返回保存的规范化问卷 JSON",
                "produces": ["application/json"],
                "tags": ["问卷"],
                "summary": "获取问卷详情",
                "parameters": [
                    {"type": "integer", "description": "问卷ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/util.ErrorResponse"}}
                }
            }
        },
        "/api/questionnaires": {
            "get": {
                "produces": ["application/json"],
                "tags": ["问卷"],
                "summary": "问卷列表",
                "parameters": [
                    {"type": "string", "description": "问卷类型", "name": "kind", "in": "query"},
                    {"type": "string", "description": "年级", "name": "grade", "in": "query"},
                    {"type": "string", "description": "姓名关键字", "name": "search", "in": "query"},
                    {"type": "string", "description": "起始日期 YYYY-MM-DD", "name": "date_from", "in": "query"},
                    {"type": "string", "description": "截止日期 YYYY-MM-DD（含）", "name": "date_to", "in": "query"},
                    {"type": "integer", "default": 1, "description": "页码", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "每页数量，最大100", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.PageResponse"}}
                }
            }
        },
        "/api/questionnaires/filters": {
            "get": {
                "description": "已有的问卷类型、年级及提交日期范围",
                "produces": ["application/json"],
                "tags": ["问卷"],
                "summary": "列表筛选项",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/schemas": {
            "get": {
                "produces": ["application/json"],
                "tags": ["问卷"],
                "summary": "支持的问卷结构",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/admin/statistics": {
            "get": {
                "description": "总数、今日提交数及按类型计数",
                "produces": ["application/json"],
                "tags": ["管理"],
                "summary": "提交统计",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}}
                }
            }
        },
        "/api/admin/backup": {
            "post": {
                "description": "将全部问卷导出为 JSON 快照并写入配置的存储（local/minio/oss）",
                "produces": ["application/json"],
                "tags": ["管理"],
                "summary": "导出备份",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/util.Response"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/util.ErrorResponse"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "description": "检查数据库（及启用时的 redis）状态，数据库不可用时返回 503",
                "produces": ["application/json"],
                "tags": ["系统"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/util.Response"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/util.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "controller.SubmitResponse": {
            "type": "object",
            "properties": {
                "duplicate": {"type": "boolean"},
                "questionnaire_id": {"type": "integer"},
                "success": {"type": "boolean"}
            }
        },
        "model.Option": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "value": {"type": "integer"}
            }
        },
        "model.ValueRange": {
            "type": "object",
            "properties": {
                "max": {"type": "integer"},
                "min": {"type": "integer"}
            }
        },
        "model.Question": {
            "type": "object",
            "properties": {
                "allow_multiple": {"type": "boolean"},
                "can_speak": {"type": "boolean"},
                "id": {"type": "integer"},
                "is_multiple_choice": {"type": "boolean"},
                "options": {"type": "array", "items": {"$ref": "#/definitions/model.Option"}},
                "question": {"type": "string"},
                "section": {"type": "string"},
                "selected": {"type": "array", "items": {"type": "integer"}},
                "selected_texts": {"type": "array", "items": {"type": "string"}},
                "type": {"type": "string"},
                "value_range": {"$ref": "#/definitions/model.ValueRange"}
            }
        },
        "model.BasicInfo": {
            "type": "object",
            "properties": {
                "birthdate": {"type": "string"},
                "gender": {"type": "string"},
                "grade": {"type": "string"},
                "guardian": {"type": "string"},
                "name": {"type": "string"},
                "parent_email": {"type": "string"},
                "parent_phone": {"type": "string"},
                "parent_wechat": {"type": "string"},
                "school": {"type": "string"},
                "submission_date": {"type": "string"},
                "teacher": {"type": "string"}
            }
        },
        "model.Submission": {
            "type": "object",
            "properties": {
                "basic_info": {"$ref": "#/definitions/model.BasicInfo"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/model.Question"}},
                "submission_id": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "util.ErrorBody": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "technical_message": {"type": "string"}
            }
        },
        "util.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/util.ErrorBody"},
                "retry_after": {"type": "integer"},
                "success": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        },
        "util.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean"},
                "has_prev": {"type": "boolean"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "pages": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "util.PageResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "pagination": {"$ref": "#/definitions/util.Pagination"},
                "success": {"type": "boolean"}
            }
        },
        "util.Response": {
            "type": "object",
            "properties": {
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "问卷收集服务 API",
	Description:      "问卷提交流水线：规范化、按类型校验、评分并持久化。",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
