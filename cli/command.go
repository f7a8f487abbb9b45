// Package cli implements the debugger command surface: the command
// table, argument nodes, the uniform command error and the session that
// dispatches commands to the emulator and the debug manager.
package cli

import (
	"fmt"
	"io"
	"strconv"
)

// ArgKind is the kind of an argument node.
type ArgKind int

// Argument kinds.
const (
	ArgInt ArgKind = iota
	ArgSymbol
)

// Arg is an evaluated argument: an integer literal or a symbol.
type Arg struct {
	Kind ArgKind
	Int  int64
	Sym  string
}

// IntArg returns an integer argument.
func IntArg(v int64) Arg {
	return Arg{Kind: ArgInt, Int: v}
}

// SymArg returns a symbol argument.
func SymArg(name string) Arg {
	return Arg{Kind: ArgSymbol, Sym: name}
}

func (a Arg) String() string {
	if a.Kind == ArgSymbol {
		return a.Sym
	}
	return strconv.FormatInt(a.Int, 10)
}

// CommandError is the uniform error of command handlers. An empty Msg
// asks for the usage of the command to be printed.
type CommandError struct {
	Msg string
}

func (e *CommandError) Error() string {
	if e.Msg == "" {
		return "invalid usage"
	}
	return e.Msg
}

func usage() error {
	return &CommandError{}
}

func fail(format string, args ...any) error {
	return &CommandError{Msg: fmt.Sprintf(format, args...)}
}

// Variant is one synopsis/description pair of a command.
type Variant struct {
	Synopsis string
	Desc     string
}

// Command is an entry of the command table.
type Command struct {
	Name    string
	Aliases []string
	// Reset, when set, is called when the session resets.
	Reset    func(s *Session)
	Run      func(s *Session, args []Arg) error
	Variants []Variant
}

// PrintUsage writes the variants of c.
func (c *Command) PrintUsage(w io.Writer) {
	for _, v := range c.Variants {
		fmt.Fprintf(w, "  %-5s %-20s %s\n", c.Name, v.Synopsis, v.Desc)
	}
}
