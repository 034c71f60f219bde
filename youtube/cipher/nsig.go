package cipher

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// ncodeFuncName is the conventional global exposed by player scripts for the
// throttling n-parameter transform.
const ncodeFuncName = "ncode"

// transformN decodes the throttling n parameter when the player script
// exposes the transform. Absence of the function returns the value
// unchanged; throttled-but-playable beats failing the format.
func (d *Descrambler) transformN(ctx context.Context, nval, playerJSURL string) (string, error) {
	playerJS, err := d.playerJS(ctx, playerJSURL)
	if err != nil {
		return "", err
	}

	vm := goja.New()
	_ = vm.Set("console", map[string]any{"log": func(...any) {}})
	if _, err := vm.RunString(string(playerJS)); err != nil {
		return "", fmt.Errorf("run player js: %w", err)
	}

	fn, ok := goja.AssertFunction(vm.Get(ncodeFuncName))
	if !ok {
		return nval, nil
	}
	res, err := fn(goja.Undefined(), vm.ToValue(nval))
	if err != nil {
		return "", fmt.Errorf("call %s: %w", ncodeFuncName, err)
	}
	out, ok := res.Export().(string)
	if !ok || out == "" {
		return "", fmt.Errorf("%s did not return a string", ncodeFuncName)
	}
	return out, nil
}
