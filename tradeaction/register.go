package tradeaction

import "github.com/MaaXYZ/maa-framework-go/v4"

// Ensure interface compliance at compile time.
// 编译期保证接口实现。
var (
	_ maa.CustomActionRunner = &TradeBotNegotiate{}
	_ maa.CustomActionRunner = &TradeBotCount{}
	_ maa.TaskerEventSink    = &ResolutionChecker{}
)

// Register is called from main.go to register custom components.
// Register 在 main.go 中调用，用于注册组件。
func Register() {
	maa.AgentServerRegisterCustomAction("TradeBotNegotiate", &TradeBotNegotiate{})
	maa.AgentServerRegisterCustomAction("TradeBotCount", &TradeBotCount{})

	// warns only, never stops a task
	maa.AgentServerAddTaskerSink(&ResolutionChecker{})
}
