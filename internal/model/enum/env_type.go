package enum

// EnvType separates the data of live trading from simulations so the two can
// never bleed into each other's storage namespaces.
type EnvType uint8

const (
	_env_type_beg EnvType = iota
	EnvTypeLive
	EnvTypeSimulation
	EnvTypeOptimization
	_env_type_end
)

func (t EnvType) IsAvailable() bool {
	return t > _env_type_beg && t < _env_type_end
}

func (t EnvType) String() string {
	switch t {
	case EnvTypeLive:
		return "live"
	case EnvTypeSimulation:
		return "simulation"
	case EnvTypeOptimization:
		return "optimization"
	default:
		return "unknown"
	}
}
