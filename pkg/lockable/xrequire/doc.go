// Package xrequire 描述一次加锁请求需要哪些资源，并把声明解析为具体需求。
//
// # 需求形式
//
// 一个 [Spec] 只能是以下两种之一：
//   - 显式资源名列表（每项可包含多个空白分隔的名称）
//   - 标签表达式 + 数量 N（N 为 0 表示全部匹配该标签的资源）
//
// 名称与标签中可以使用 ${VAR} 或 $VAR 引用环境变量，$$ 表示字面量 $。
// 未绑定的变量使解析整体失败（[UnresolvedVariableError]），不会部分解析。
//
// # 标签表达式
//
//	gpu && !broken
//	linux && (x86 || arm64)
//	printer floor-2        // 并列等价于 &&
//
// 运算优先级：! > && > ||。编译结果缓存在 LRU 中，相同表达式只解析一次。
//
// # 快速开始
//
//	reqs, err := xrequire.ResolveAll([]xrequire.Spec{
//	    {Resources: []string{"db-${ENV}"}},
//	    {Label: "gpu", Quantity: 2},
//	}, xrequire.Env{"ENV": "staging"})
package xrequire
