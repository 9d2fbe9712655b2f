// Package handlers 实现 HTTP 端点：流式中继、一次性评估、
// 健康检查、审计查询与策略查询。
package handlers
