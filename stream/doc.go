// Package stream 实现流式下发管线。
//
// LookAheadBuffer 滞留尾部 token 作为安全余量，整个缓冲在任何释放
// 之前都必须至少被完整评估一次；WindowTracker 按滑动窗口节奏调度
// 风险评估；EventQueue 是消费者侧的有界事件队列（队列满时生产者
// 挂起而不丢弃）；Pipeline 把 TokenSource、ComplianceGate 与客户端
// 传输绑在一起，并独立于生成进度发送心跳。
package stream
