package logjs

type Stats struct {
	MarkerCalls    int64
	MarkersMatched int64
	HookErrors     int64
	HookTimeouts   int64
}

type Options struct {
	HookTimeout string
}

type ModuleInfo struct {
	Name       string
	HasMarker  bool
	HasIsError bool
	HasInit    bool
	HasOnError bool
}
