package service

import (
	"context"
	"sync"
)

// vehicleLocks hands out one in-process mutex per vehicle id. Entries are
// dropped once nobody holds or waits on them.
type vehicleLocks struct {
	mu    sync.Mutex
	locks map[string]*vehicleLock
}

type vehicleLock struct {
	slot chan struct{}
	refs int
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{locks: make(map[string]*vehicleLock)}
}

// Lock blocks until the vehicle is free or ctx is done.
func (l *vehicleLocks) Lock(ctx context.Context, vehicleID string) (unlock func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	vl, ok := l.locks[vehicleID]
	if !ok {
		vl = &vehicleLock{slot: make(chan struct{}, 1)}
		l.locks[vehicleID] = vl
	}
	vl.refs++
	l.mu.Unlock()

	select {
	case vl.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-vl.slot
				l.release(vehicleID, vl)
			})
		}, nil
	case <-ctx.Done():
		l.release(vehicleID, vl)
		return nil, ctx.Err()
	}
}

func (l *vehicleLocks) release(vehicleID string, vl *vehicleLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	vl.refs--
	if vl.refs == 0 {
		delete(l.locks, vehicleID)
	}
}

func (l *vehicleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
