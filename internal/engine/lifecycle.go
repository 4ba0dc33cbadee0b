package engine

// AppState names a host process lifecycle notification.
type AppState string

const (
	AppStateBackground AppState = "background"
	AppStateForeground AppState = "foreground"
)

// LifecycleBridge adapts host OS lifecycle notifications onto the
// engine. It carries no logic of its own beyond dispatch.
type LifecycleBridge struct {
	engine *Engine
}

func NewLifecycleBridge(e *Engine) *LifecycleBridge {
	return &LifecycleBridge{engine: e}
}

func (b *LifecycleBridge) Notify(state AppState) bool {
	switch state {
	case AppStateBackground:
		b.engine.HandleAppBackground()
	case AppStateForeground:
		b.engine.HandleAppForeground()
	default:
		return false
	}
	return true
}
