package node

import (
	"sync"
	"sync/atomic"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer is the retry clock of a node. It ticks once per arming; the
// node re-arms it after each tick for as long as it has something to gossip.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives instruction to reset the timer
	stopCh       chan struct{}      //receives instruction to stop the timer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
	shutdownOnce sync.Once
	set          int32
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}, 1),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewFixedControlTimer returns a ControlTimer that fires exactly after the
// requested duration. A zero duration leaves it unarmed.
func NewFixedControlTimer() *ControlTimer {
	fixedTimeout := func(d time.Duration) <-chan time.Time {
		if d <= 0 {
			return nil
		}
		return time.After(d)
	}
	return NewControlTimer(fixedTimeout)
}

// Run is the timer loop. It returns after Shutdown.
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		timer := c.timerFactory(t)
		c.setSet(timer != nil)
		return timer
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			timer = nil
			c.setSet(false)
			select {
			case c.tickCh <- struct{}{}:
			default:
			}
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			c.setSet(false)
		case <-c.shutdownCh:
			c.setSet(false)
			return
		}
	}
}

// TickCh delivers one signal per expiry.
func (c *ControlTimer) TickCh() <-chan struct{} {
	return c.tickCh
}

// Reset arms the timer to fire after d.
func (c *ControlTimer) Reset(d time.Duration) {
	c.setSet(true)
	select {
	case c.resetCh <- d:
	case <-c.shutdownCh:
	}
}

// Stop disarms the timer.
func (c *ControlTimer) Stop() {
	select {
	case c.stopCh <- struct{}{}:
	case <-c.shutdownCh:
	}
}

// IsSet reports whether the timer is armed.
func (c *ControlTimer) IsSet() bool {
	return atomic.LoadInt32(&c.set) == 1
}

func (c *ControlTimer) setSet(set bool) {
	var v int32
	if set {
		v = 1
	}
	atomic.StoreInt32(&c.set, v)
}

// Shutdown stops the Run loop. It is safe to call more than once.
func (c *ControlTimer) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
	})
}
