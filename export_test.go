package gateway

// Test-only exports so that session_test.go can live in the external
// gateway_test package (avoiding an import cycle with gatewaytest,
// which imports gateway) while still reaching these unexported names.

const (
	DiscoveryURL = discoveryURL
	StreamSuffix = streamSuffix
)

func (s *Session) EmitDiag(level uint, message string) {
	s.emitDiag(level, message)
}
