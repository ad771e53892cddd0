package session

// State 会话生命周期状态
type State int32

const (
	StateCreated State = iota
	StateAwaitingRegistration
	StateAwaitingRead
	StateDecoding
	StateProcessing
	StateAwaitingWrite
	StateClosed
)

var stateNames = [...]string{
	StateCreated:              "created",
	StateAwaitingRegistration: "awaiting_registration",
	StateAwaitingRead:         "awaiting_read",
	StateDecoding:             "decoding",
	StateProcessing:           "processing",
	StateAwaitingWrite:        "awaiting_write",
	StateClosed:               "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Registered 流水线是否已经绑定
func (s State) Registered() bool {
	return s >= StateAwaitingRead && s < StateClosed
}

// in 判断 s 是否属于 states 之一
func (s State) in(states ...State) bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}
