package sim

// EngineCore is the stepping surface the loop drives: a world that consumes
// applied commands and advances one tick at a time.
type EngineCore interface {
	Apply([]Command) error
	Step()
	Snapshot() Snapshot
	Deps() Deps
}

// Engine is the surface area exposed to non-simulation callers: command
// staging plus the running loop.
type Engine interface {
	EngineCore
	Enqueue(Command) (bool, string)
	Pending() int
	Run(stop <-chan struct{})
}
