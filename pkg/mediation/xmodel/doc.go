// Package xmodel 定义广告聚合核心的领域值类型：Placement、Ad、RemoteConfig 等。
//
// 本包只持有不可变值类型和外部协作者接口（CredentialProvider、Verifier、
// RenderingBridge、TelemetrySink、MarkupRenderer），不持有任何可变的编排状态——
// 可变状态分别归属 xadcache、xregistry、xcontroller 等拥有者包，与 xauth 中
// Config/Token 值类型和 TokenManager 编排状态的划分方式一致。
package xmodel
