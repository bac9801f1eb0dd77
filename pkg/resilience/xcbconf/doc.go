// Package xcbconf 提供熔断的进程级配置与基于文件的规则源。
//
// 配置通过 koanf 从 YAML/JSON 加载，SetDefault 填充默认值，
// Validate 使用 ozzo-validation 校验。DefaultConfigSet 由配置构造
// 未命中规则时使用的 xcircuit.ConfigSet。
//
// FileRuleSource 从文件加载各服务的熔断规则并实现 xcircuit.RuleSource，
// Watch 监听文件变化后自动重载。重载失败时保留上一次成功加载的规则。
//
// 规则文件示例：
//
//	services:
//	  - namespace: prod
//	    service: payment
//	    inbounds:
//	      - name: pay-method
//	        destinations:
//	          - namespace: "*"
//	            service: "*"
//	            method: {type: EXACT, value: /pay}
//	            policy: {consecutive_errors: 5}
//	            recover: {sleep_window: 10s}
package xcbconf
