// Package api 定义对外的请求/响应类型与 SSE 帧编码。
package api
