package context

type contextKey string

const (
	// Params carries httprouter path params injected by the router wrapper.
	Params contextKey = "params"
	// App carries the authenticated tenant App.
	App contextKey = "app"
	// Operator carries validated operator claims on the admin surface.
	Operator contextKey = "operator"
)
