// Package plugins 内置了随发行版提供的提供者与处理器插件。
// 每个插件在 init 中通过入口点注册到默认插件注册表，插件管理器
// 再根据 plugins/ 目录下的清单文件决定是否实例化。
package plugins

import (
	"TubeDigest/pkg/plugin"
)

// EntryPoints 返回所有内置插件的入口点，便于诊断命令展示。
func EntryPoints() []string {
	return plugin.DefaultRegistry().EntryPoints()
}
