package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	WebSocket       Category = "WebSocket"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// WebSocket
	Handshake SubCategory = "Handshake"
	Join      SubCategory = "Join"
	Leave     SubCategory = "Leave"
	Relay     SubCategory = "Relay"
	Eviction  SubCategory = "Eviction"

	// IO
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
	Insert  SubCategory = "Insert"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestID    ExtraKey = "RequestId"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomID       ExtraKey = "RoomId"
	PeerID       ExtraKey = "PeerId"
	MessageType  ExtraKey = "MessageType"
	MemberCount  ExtraKey = "MemberCount"
	CloseCode    ExtraKey = "CloseCode"
	Reason       ExtraKey = "Reason"
	Database     ExtraKey = "Database"
	Address      ExtraKey = "Address"
)
