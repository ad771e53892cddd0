package app

import (
	"github.com/google/wire"
)

// Components 由 wire 收集的服务与资源
type Components struct {
	Servers []Server
	Closers []Closer
}

// ProviderSet 导出给 wire 使用
var ProviderSet = wire.NewSet(
	NewBaseApp,
	Assemble,
)

// Assemble 把组件挂到 BaseApp 上
func Assemble(app *BaseApp, comps Components) Application {
	app.AppendServer(comps.Servers...)
	app.AppendCloser(comps.Closers...)
	return app
}
