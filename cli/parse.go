package cli

import (
	"strconv"
	"strings"
)

// ParseLine splits a command line into the command name and its
// arguments. Integers may be decimal, #hex or 0xhex, optionally negative;
// every other word is a symbol. An empty line yields an empty name.
func ParseLine(line string) (string, []Arg) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	args := make([]Arg, 0, len(fields)-1)
	for _, f := range fields[1:] {
		if v, ok := parseInt(f); ok {
			args = append(args, IntArg(v))
		} else {
			args = append(args, SymArg(f))
		}
	}
	return fields[0], args
}

func parseInt(s string) (int64, bool) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}

	u, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, false
	}
	v := int64(u)
	if neg {
		v = -v
	}
	return v, true
}
