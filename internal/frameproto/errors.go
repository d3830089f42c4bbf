package frameproto

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Intent layer.
	ErrUnknownAction = "E_UNKNOWN_ACTION"
	ErrBadArgument   = "E_BAD_ARGUMENT"
	ErrEngineBusy    = "E_ENGINE_BUSY"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownAction:   {},
	ErrBadArgument:     {},
	ErrEngineBusy:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
