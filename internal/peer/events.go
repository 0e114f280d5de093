package peer

// Event is the closed set of things a Channel reports to its owner. All
// pion callbacks are funneled onto one channel so the session loop sees a
// single ordered stream.
type Event interface{ isPeerEvent() }

// Opened fires once when the reliable data channel becomes usable.
type Opened struct{}

// Received carries one raw wire message, in network receipt order.
type Received struct{ Raw string }

// Closed fires once when the channel shuts down, locally or remotely.
type Closed struct{}

// Failed fires when connectivity cannot be established or is lost
// unrecoverably. Terminal, like Closed.
type Failed struct{ Err error }

// ICEStateChanged reports transport connectivity transitions.
type ICEStateChanged struct{ State string }

func (Opened) isPeerEvent()          {}
func (Received) isPeerEvent()        {}
func (Closed) isPeerEvent()          {}
func (Failed) isPeerEvent()          {}
func (ICEStateChanged) isPeerEvent() {}
