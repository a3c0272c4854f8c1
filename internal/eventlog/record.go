package eventlog

// Result is the outcome of one compilation unit as reported by the compiler cache
type Result string

const (
	LocalHit  Result = "local_hit"
	RemoteHit Result = "remote_hit"
	Miss      Result = "miss"
	Error     Result = "error"
)

// Valid reports whether r is one of the known results
func (r Result) Valid() bool {
	switch r {
	case LocalHit, RemoteHit, Miss, Error:
		return true
	}

	return false
}

// Record is one line of the event log
type Record struct {
	Result Result `json:"result"`

	// UnitName identifies the compiled unit (crate name for sccache)
	UnitName string `json:"crate_name"`

	// ElapsedMillis is the compile wall time, only meaningful for misses
	ElapsedMillis int64 `json:"elapsed_ms"`

	// SizeBytes is the artifact size, only meaningful for misses
	SizeBytes int64 `json:"size"`

	// CacheKey may be empty when the cache did not attach one
	CacheKey string `json:"cache_key"`
}
