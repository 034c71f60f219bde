package cipher

import (
	"fmt"

	"github.com/robertkrimen/otto"
)

// execDescramble runs the descramble function from the player script in an
// otto VM. It is the fallback for scripts whose structure defeats the
// regex-based decomposition but whose function is still locatable.
func execDescramble(playerJS, signature string) (string, error) {
	name, _, _, err := findMainFunction(playerJS)
	if err != nil {
		return "", err
	}

	vm := otto.New()
	if _, err := vm.Run(playerJS); err != nil {
		return "", fmt.Errorf("run player js: %w", err)
	}

	value, err := vm.Call(name, nil, signature)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	out, err := value.ToString()
	if err != nil {
		return "", fmt.Errorf("%s did not return a string: %w", name, err)
	}
	return out, nil
}
