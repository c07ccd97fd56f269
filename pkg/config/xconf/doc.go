// Package xconf 加载资源池与宿主配置，基于 koanf 实现。
//
// # 支持的格式
//
//   - YAML：.yaml, .yml
//   - JSON：.json
//
// 时长字段写作字符串（"30s"、"1m"）。
//
// # 配置结构
//
//	pool:
//	  resources:
//	    - name: printer-1
//	      labels: [printer, floor-1]
//	log:
//	  level: info
//	  format: text
//	snapshot:
//	  backend: redis
//	  addrs: ["127.0.0.1:6379"]
//	  schedule: "@every 30s"
//
// [Load] 填充默认值并执行 [Config.Validate]。
//
// # 热重载
//
// [Watch] 监视配置文件所在目录，防抖后重新加载；新的资源池通过 [Apply]
// 声明到分配器：已有资源更新标签和备注，文件中删除的资源被退役。
// 加载或校验失败时保留旧配置，回调收到错误。
//
// # 场景文件
//
// [LoadScenario] 读取 xlockctl simulate 使用的作业列表。
package xconf
