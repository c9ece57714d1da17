package iec104

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/baetyl/baetyl-go/v2/errors"
	"github.com/baetyl/baetyl-go/v2/log"

	"github.com/baetyl/baetyl-iec104/internal/reentrant"
)

// callbackGate serializes all application handler execution in the process.
// It is reentrant, so a handler may trigger further hook invocations on its
// own goroutine, while handlers arriving on other goroutines wait. No point
// lock is ever held while the gate is held.
var callbackGate = reentrant.New()

// OnReceiveFunc is the contract of the on-receive hook. It runs after the
// incoming value has been applied; previous carries the replaced snapshot.
type OnReceiveFunc func(point *Point, previous Info, message *IncomingMessage) ResponseState

// PointFunc is the contract of the before-read and before-auto-transmit
// hooks, which may refresh the point value synchronously.
type PointFunc func(point *Point)

// Callback is a named handler slot with a fixed signature contract. At most
// one handler is registered at a time; registration validates the handler
// signature eagerly, invocation runs under the process-wide callback gate
// and contains handler panics.
type Callback struct {
	name      string
	signature string
	contract  reflect.Type
	log       *log.Logger

	mu sync.RWMutex
	fn reflect.Value
}

func newCallback(name, signature string, contract interface{}) *Callback {
	return &Callback{
		name:      name,
		signature: signature,
		contract:  reflect.TypeOf(contract),
		log:       log.L().With(log.Any("callback", name)),
	}
}

// Set registers handler, replacing any previous one. A nil handler clears
// the slot. The handler must be assignable to the contract signature.
func (c *Callback) Set(handler interface{}) error {
	if handler == nil {
		c.store(reflect.Value{})
		return nil
	}
	t := reflect.TypeOf(handler)
	if !t.AssignableTo(c.contract) {
		return errors.New("handler for " + c.name + " must have signature " + c.signature)
	}
	v := reflect.ValueOf(handler)
	if v.IsNil() {
		c.store(reflect.Value{})
		return nil
	}
	c.store(v)
	return nil
}

func (c *Callback) store(v reflect.Value) {
	c.mu.Lock()
	c.fn = v
	c.mu.Unlock()
}

func (c *Callback) registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fn.IsValid()
}

// call invokes the registered handler under the callback gate. It reports
// called=false when no handler is set. A panic raised by the handler is
// recovered, logged and returned as err; it never reaches the caller's
// goroutine unhandled.
func (c *Callback) call(args ...interface{}) (out []reflect.Value, called bool, err error) {
	c.mu.RLock()
	fn := c.fn
	c.mu.RUnlock()
	if !fn.IsValid() {
		return nil, false, nil
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	callbackGate.Lock()
	defer callbackGate.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprintf("handler %s panicked: %v", c.name, r))
			c.log.Error("handler fault contained", log.Any("panic", fmt.Sprint(r)))
		}
	}()
	if debugEnabled(DebugCallback) {
		c.log.Debug("invoking handler")
	}
	called = true
	out = fn.Call(in)
	return out, true, nil
}
