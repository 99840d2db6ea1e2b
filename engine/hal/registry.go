package hal

import (
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under its name. Adapters call this
// from their init function.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("hal: Register driver is nil")
	}
	if _, dup := drivers[d.Name()]; dup {
		panic("hal: Register called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// Lookup returns the driver registered under name, or nil.
func Lookup(name string) Driver {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return drivers[name]
}

// Drivers returns the sorted names of all registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
