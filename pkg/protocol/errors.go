package protocol

const (
	ErrInvalidJSON     = "E_PROTOCOL_INVALID_JSON"
	ErrInvalidEnvelope = "E_PROTOCOL_INVALID_ENVELOPE"
	ErrInvalidPayload  = "E_PROTOCOL_INVALID_PAYLOAD"
	ErrInvalidAction   = "E_PROTOCOL_INVALID_ACTION"
)

// Messages carried by server "error" envelopes.
const (
	MessageInvalidToken  = "Invalid access token"
	MessageUnknownAction = "Unknown action"
)
