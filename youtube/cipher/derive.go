package cipher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/steadycast/steadycast/errs"
)

// The descramble function in the player script always has the shape
//
//	XX=function(a){a=a.split("");OB.c1(a,3);OB.c2(a,12);...;return a.join("")}
//
// with a helper object OB whose members implement reverse, splice and swap.
// Derivation locates the function, classifies the helper members by body and
// records the call sequence as a Program. RE2 has no backreferences, so the
// pattern captures each identifier occurrence separately and findMainFunction
// checks that they all name the same parameter.
var (
	mainFnRe = regexp.MustCompile(
		`(?:function\s+([a-zA-Z0-9$_]+)|([a-zA-Z0-9$_]+)\s*=\s*function)\s*\(\s*([a-zA-Z0-9$_]+)\s*\)\s*\{\s*` +
			`([a-zA-Z0-9$_]+)\s*=\s*([a-zA-Z0-9$_]+)\.split\(\s*""\s*\)\s*;([^}]+);\s*return\s+([a-zA-Z0-9$_]+)\.join\(\s*""\s*\)\s*\}`)
	helperMemberRe = regexp.MustCompile(`([a-zA-Z0-9$_]+)\s*:\s*function\s*\(`)
)

// deriveProgram decomposes the player script into a transform program.
// A script that no longer matches the known structure yields
// errs.ErrExtractorOutdated, never a silently empty program.
func deriveProgram(playerJS, playerJSURL string, now time.Time) (Program, error) {
	name, param, body, err := findMainFunction(playerJS)
	if err != nil {
		return Program{}, err
	}

	callRe := regexp.MustCompile(
		`([a-zA-Z0-9$_]+)\.([a-zA-Z0-9$_]+)\(\s*` + regexp.QuoteMeta(param) + `\s*(?:,\s*(\d+)\s*)?\)`)
	calls := callRe.FindAllStringSubmatch(body, -1)
	if len(calls) == 0 {
		return Program{}, fmt.Errorf("%w: no transform calls in %s", errs.ErrExtractorOutdated, name)
	}

	helper := calls[0][1]
	kinds, err := classifyHelper(playerJS, helper)
	if err != nil {
		return Program{}, err
	}

	ops := make([]Op, 0, len(calls))
	for _, c := range calls {
		kind, ok := kinds[c[2]]
		if !ok {
			return Program{}, fmt.Errorf("%w: unclassified transform %s.%s", errs.ErrExtractorOutdated, helper, c[2])
		}
		arg := 0
		if c[3] != "" {
			if v, convErr := strconv.Atoi(c[3]); convErr == nil {
				arg = v
			}
		}
		ops = append(ops, Op{Kind: kind, Arg: arg})
	}

	return Program{Ops: ops, PlayerJSURL: playerJSURL, DerivedAt: now}, nil
}

// findMainFunction returns the descramble function's name, parameter and
// statement body. Candidates whose split/join identifiers disagree with the
// declared parameter are other single-argument functions and are skipped.
func findMainFunction(playerJS string) (name, param, body string, err error) {
	for _, m := range mainFnRe.FindAllStringSubmatch(playerJS, -1) {
		param = m[3]
		if m[4] != param || m[5] != param || m[7] != param {
			continue
		}
		name = m[1]
		if name == "" {
			name = m[2]
		}
		return name, param, m[6], nil
	}
	return "", "", "", fmt.Errorf("%w: descramble function not found", errs.ErrExtractorOutdated)
}

// classifyHelper maps each member of the helper object to one of the three
// primitive operations by inspecting its body.
func classifyHelper(playerJS, helper string) (map[string]OpKind, error) {
	objRe := regexp.MustCompile(
		`(?:var|let|const)\s+` + regexp.QuoteMeta(helper) + `\s*=\s*\{([\s\S]*?)\}\s*;`)
	om := objRe.FindStringSubmatch(playerJS)
	if om == nil {
		return nil, fmt.Errorf("%w: helper object %s not found", errs.ErrExtractorOutdated, helper)
	}
	objBody := om[1]

	kinds := make(map[string]OpKind)
	members := helperMemberRe.FindAllStringSubmatchIndex(objBody, -1)
	for i, loc := range members {
		fname := objBody[loc[2]:loc[3]]
		end := len(objBody)
		if i+1 < len(members) {
			end = members[i+1][0]
		}
		fbody := objBody[loc[1]:end]
		switch {
		case strings.Contains(fbody, ".reverse()"):
			kinds[fname] = OpReverse
		case strings.Contains(fbody, ".splice("):
			kinds[fname] = OpSplice
		case strings.Contains(fbody, "%"):
			kinds[fname] = OpSwap
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: no classifiable members in helper %s", errs.ErrExtractorOutdated, helper)
	}
	return kinds, nil
}
