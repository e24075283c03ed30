package request

type ContextKey string

func (c ContextKey) String() string {
	return string(c)
}

// Attribute names understood by State.Get and the telemetry payloads.
const (
	RequestIDKey ContextKey = "reqId"
	UserIDKey    ContextKey = "userId"
	PlatformKey  ContextKey = "platform"
	ClientIPKey  ContextKey = "clientIp"
	TraceIDKey   ContextKey = "traceId"
)

const (
	HeaderRequestID   = "X-Request-Id"
	HeaderPlatform    = "X-Platform"
	MetadataRequestID = "x-request-id"
	MetadataPlatform  = "x-platform"
	// GinUserKey is where an upstream auth middleware leaves the *Principal.
	GinUserKey = "principal"
)

// StateKey is the context.Context key of the ambient *State.
type StateKey struct{}

// TransactionKey is the context.Context key of the open transaction handle.
// Exported so the ORM can publish and discover it under the same slot.
type TransactionKey struct{}
