package gateway

import "encoding/json"

// Wire opcodes understood by the inbound dispatcher (§4.H) and emitted
// by the keep-alive engine and connection procedure (§4.F, §4.G).
const (
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatAck = 11
)

// inboundEnvelope is the tagged-union shape every inbound text frame is
// parsed into before dispatch. Payload is left raw so each handler
// decodes only the fields it needs.
type inboundEnvelope struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
}

type helloData struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

// identifyProperties carries the client metadata fields from
// Configuration, wire-named with the "$" prefix the gateway expects.
type identifyProperties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Properties identifyProperties `json:"properties"`
}

type identifyMessage struct {
	Op int          `json:"op"`
	D  identifyData `json:"d"`
}

// heartbeatMessage encodes {"op":1,"d": <int64|null>}. Sequence is nil
// when no event sequence number has ever been observed.
type heartbeatMessage struct {
	Op int    `json:"op"`
	D  *int64 `json:"d"`
}

func encodeHeartbeat(sequence *int64) []byte {
	b, _ := json.Marshal(heartbeatMessage{Op: opHeartbeat, D: sequence})
	return b
}

func encodeIdentify(cfg Configuration) []byte {
	b, _ := json.Marshal(identifyMessage{
		Op: opIdentify,
		D: identifyData{
			Token: cfg.Token,
			Properties: identifyProperties{
				OS:      cfg.OS,
				Browser: cfg.Browser,
				Device:  cfg.Device,
			},
		},
	})
	return b
}

// parseDiscoveryResponse extracts the "url" field from a gateway
// discovery response body. It returns ok=false for anything that is
// not a JSON object containing a non-empty string "url" field,
// including bodies that are not valid JSON at all.
func parseDiscoveryResponse(body []byte) (url string, ok bool) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	obj, isObj := v.(map[string]interface{})
	if !isObj {
		return "", false
	}
	raw, present := obj["url"]
	if !present {
		return "", false
	}
	s, isStr := raw.(string)
	if !isStr || s == "" {
		return "", false
	}
	return s, true
}
