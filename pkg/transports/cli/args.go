package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
)

// argList builds a CLI argument vector.
type argList []string

func newArgs(words ...string) *argList {
	a := argList(append([]string(nil), words...))
	return &a
}

// add appends raw words.
func (a *argList) add(words ...string) {
	*a = append(*a, words...)
}

// optional appends "flag value" unless value is blank.
func (a *argList) optional(flag, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	a.add(flag, value)
}

// flag appends the bare flag when on.
func (a *argList) flag(flag string, on bool) {
	if on {
		a.add(flag)
	}
}

// boolean always appends "flag=true" or "flag=false".
func (a *argList) boolean(flag string, value bool) {
	a.add(flag + "=" + strconv.FormatBool(value))
}

// optionalInt appends "flag N" when value is set.
func (a *argList) optionalInt(flag string, value *int) {
	if value == nil {
		return
	}
	a.add(flag, strconv.Itoa(*value))
}

// scopes appends "--scopes a,b,c" when there is at least one scope.
func (a *argList) scopes(scopes []string) {
	if len(scopes) == 0 {
		return
	}
	a.add("--scopes", strings.Join(scopes, ","))
}

// metadata appends one "--metadata key=value" pair per non-nil entry, in key order,
// and returns how many pairs were written.
func (a *argList) metadata(c engine.ComponentDescriptor) int {
	keys := c.MetadataKeys()
	for _, k := range keys {
		a.add("--metadata", k+"="+formatValue(c.Metadata[k]))
	}
	return len(keys)
}

func (a *argList) strings() []string {
	return []string(*a)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
