package kovi

import (
	"crypto/rand"
	"encoding/json"
)

// EchoNone is the reserved echo value meaning "fire and forget": no reply
// slot is registered for an envelope carrying this echo, and any inbound
// reply carrying it is silently discarded.
const EchoNone = "None"

// Envelope is an outbound OneBot API call: {"action", "params", "echo"}.
type Envelope struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
	Echo   string          `json:"echo"`
}

// NewEnvelope is the only constructor for Envelope. params is marshaled to
// JSON; passing an already-marshaled json.RawMessage is also accepted.
func NewEnvelope(action string, params any, echo string) (Envelope, error) {
	raw, ok := params.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(params)
		if err != nil {
			return Envelope{}, err
		}
		raw = b
	}
	return Envelope{Action: action, Params: raw, Echo: echo}, nil
}

// Reply is an inbound OneBot API reply: {"status", "retcode", "data", "echo"}.
type Reply struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Echo    string          `json:"echo"`
}

// OK reports whether the reply's status is "ok".
func (r Reply) OK() bool { return r.Status == "ok" }

const echoAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newEcho generates an 8-character alphanumeric token, uniformly random.
// It does not check for collisions against in-flight echoes in the
// correlator — at this length and with crypto/rand, the collision
// probability against any realistic number of concurrently in-flight calls
// is negligible, so no retry loop is needed.
func newEcho() (string, error) {
	// Bytes at or above the largest multiple of len(echoAlphabet) are
	// rejected so every alphabet character is equally likely.
	limit := 256 - 256%len(echoAlphabet)
	buf := make([]byte, 1)
	out := make([]byte, 0, 8)
	for len(out) < 8 {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= limit {
			continue
		}
		out = append(out, echoAlphabet[int(buf[0])%len(echoAlphabet)])
	}
	return string(out), nil
}
