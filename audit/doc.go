// Package audit 提供合规审计事件的落盘。
//
// 接收方是尽力而为的：写入失败只记日志，绝不终止流式会话。
// 内置内存实现（测试/开发）与 SQLite 实现（单机生产）。
package audit
