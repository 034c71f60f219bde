package cipher

import (
	"fmt"
	"strings"
	"time"
)

// OpKind is one of the three primitive transformations the platform's
// descramble function is built from.
type OpKind string

const (
	OpReverse OpKind = "reverse"
	OpSplice  OpKind = "splice"
	OpSwap    OpKind = "swap"
)

// Op is a single step of a transform program. Arg is the drop count for
// splice and the swap index for swap; reverse ignores it.
type Op struct {
	Kind OpKind `json:"kind"`
	Arg  int    `json:"arg,omitempty"`
}

// Program is a derived signature transform, tied to the player script it was
// extracted from. The function is re-obfuscated across deployments but
// structurally stable within one, so a program stays valid until the
// platform redeploys; ProgramTTL bounds the staleness risk.
type Program struct {
	Ops         []Op      `json:"ops"`
	PlayerJSURL string    `json:"playerJsUrl"`
	DerivedAt   time.Time `json:"derivedAt"`
}

// ProgramTTL is how long a cached program is trusted before re-derivation.
const ProgramTTL = 24 * time.Hour

// Expired reports whether the program is older than ProgramTTL at now.
func (p Program) Expired(now time.Time) bool {
	return now.Sub(p.DerivedAt) >= ProgramTTL
}

// Apply runs the recorded operations, in order, over the scrambled signature.
func (p Program) Apply(signature string) string {
	r := []rune(signature)
	for _, op := range p.Ops {
		switch op.Kind {
		case OpReverse:
			for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
				r[i], r[j] = r[j], r[i]
			}
		case OpSplice:
			if op.Arg >= 0 && op.Arg <= len(r) {
				r = r[op.Arg:]
			}
		case OpSwap:
			if len(r) > 1 {
				n := op.Arg % len(r)
				if n < 0 {
					n += len(r)
				}
				r[0], r[n] = r[n], r[0]
			}
		}
	}
	return string(r)
}

// String renders a compact form like "reverse,splice(3),swap(24)" for logs.
func (p Program) String() string {
	parts := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		if op.Kind == OpReverse {
			parts = append(parts, string(op.Kind))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", op.Kind, op.Arg))
	}
	return strings.Join(parts, ",")
}

// ProgramCache persists derived programs keyed by the player-script URL.
type ProgramCache interface {
	GetProgram(playerJSURL string) (Program, bool)
	PutProgram(playerJSURL string, p Program)
}
