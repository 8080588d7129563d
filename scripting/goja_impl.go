package scripting

import (
	"context"
	"time"

	"github.com/dop251/goja"

	"github.com/pdfpage/editkit/element"
)

// GojaEngine runs scripts on a goja JavaScript runtime.
type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	return &GojaEngine{vm: goja.New()}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) RegisterFields(src FieldSource) error {
	return e.vm.Set("getField", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		field, ok := src.Field(call.Arguments[0].String())
		if !ok {
			return goja.Null()
		}
		obj := e.vm.NewObject()
		obj.DefineAccessorProperty("value",
			e.vm.ToValue(func(goja.FunctionCall) goja.Value {
				return e.vm.ToValue(field.Value())
			}),
			e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
				if len(call.Arguments) > 0 {
					field.SetValue(call.Arguments[0].String())
				}
				return goja.Undefined()
			}),
			goja.FLAG_TRUE,
			goja.FLAG_TRUE,
		)
		return obj
	})
}

// FormatField runs a format action with event.value bound to value and
// returns the script's resulting display text.
func (e *GojaEngine) FormatField(ctx context.Context, script, value string) (string, error) {
	obj := e.vm.NewObject()
	if err := obj.Set("value", value); err != nil {
		return "", err
	}
	if err := e.vm.Set("event", obj); err != nil {
		return "", err
	}
	if _, err := e.Execute(ctx, script); err != nil {
		return "", err
	}
	ev := e.vm.Get("event")
	if ev == nil || goja.IsUndefined(ev) || goja.IsNull(ev) {
		return value, nil
	}
	out := ev.ToObject(e.vm).Get("value")
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return "", nil
	}
	return out.String(), nil
}

// DefaultTimeout bounds a single format action.
const DefaultTimeout = 250 * time.Millisecond

// Formatter returns an export-compatible hook that evaluates each
// field's format action on a fresh runtime, so a broken script cannot
// poison state for later fields.
func Formatter(src FieldSource) func(element.FormFieldProps) (string, error) {
	return func(f element.FormFieldProps) (string, error) {
		eng := NewEngine()
		if src != nil {
			if err := eng.RegisterFields(src); err != nil {
				return "", err
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		return eng.FormatField(ctx, f.Script, f.Value)
	}
}
