// Package compliance 实现阻断决策引擎（ComplianceGate）。
//
// 模式规则得分与实体识别得分合成一个裁决（ALLOW / BLOCK），
// 阈值比较含等于；地区覆写（HIPAA / PCI / GDPR / CCPA）在计分时生效。
// 评估链路上的任何失败都按 BLOCK 处理：降级的安全检查绝不能
// 静默变成零风险。
//
// Gate 同时驱动会话状态机，并保证每个终态迁移恰好写一条审计
// 记录、恰好计一次会话指标。
package compliance
