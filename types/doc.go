// Package types 定义中继各层共享的基础类型。
//
// 独立成包以避免 compliance / stream / api 之间的循环依赖。
package types
