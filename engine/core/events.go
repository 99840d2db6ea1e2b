package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// The watched shader binary changed on disk.
	/* Context usage:
	 * path := context.Data.(string)
	 */
	EVENT_CODE_SHADER_CHANGED SystemEventCode = 0x02

	// A dispatch run finished.
	/* Context usage:
	 * result := context.Data (dispatch result, opaque to the bus)
	 */
	EVENT_CODE_DISPATCH_COMPLETED SystemEventCode = 0x03

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type FnOnEvent func(context EventContext)

type eventSystemState struct {
	mutex      sync.RWMutex
	registered map[SystemEventCode][]FnOnEvent
}

var onceEvent sync.Once
var eventState *eventSystemState = nil

func EventSystemInitialize() bool {
	onceEvent.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[SystemEventCode][]FnOnEvent),
		}
	})
	return true
}

func EventSystemShutdown() error {
	if eventState == nil {
		return nil
	}
	eventState.mutex.Lock()
	defer eventState.mutex.Unlock()
	eventState.registered = make(map[SystemEventCode][]FnOnEvent)
	return nil
}

// EventRegister adds a listener for the provided code.
func EventRegister(code SystemEventCode, onEvent FnOnEvent) bool {
	if eventState == nil {
		return false
	}
	eventState.mutex.Lock()
	defer eventState.mutex.Unlock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventFire invokes every listener registered for the context's code.
// Returns false when nothing is registered.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mutex.RLock()
	listeners := eventState.registered[context.Type]
	eventState.mutex.RUnlock()
	if len(listeners) == 0 {
		return false
	}
	for _, listener := range listeners {
		listener(context)
	}
	return true
}
