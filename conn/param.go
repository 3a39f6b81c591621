package conn

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates Param values.
type Kind uint8

const (
	KindString Kind = iota // CHAR / VARCHAR
	KindUint32             // INT UNSIGNED
	KindEnum               // ENUM, bound as a string
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindUint32:
		return "uint32"
	case KindEnum:
		return "enum"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Param is a statement parameter bound positionally to a `?` placeholder.
// Values are always passed to the driver as arguments, never spliced into
// the statement text.
type Param struct {
	kind Kind
	str  string
	u32  uint32
}

func String(s string) Param { return Param{kind: KindString, str: s} }
func Uint32(u uint32) Param { return Param{kind: KindUint32, u32: u} }
func Enum(e string) Param   { return Param{kind: KindEnum, str: e} }

func (p Param) Kind() Kind { return p.kind }

// Value returns the driver argument for p.
func (p Param) Value() any {
	if p.kind == KindUint32 {
		return p.u32
	}
	return p.str
}

func (p Param) String() string {
	if p.kind == KindUint32 {
		return strconv.FormatUint(uint64(p.u32), 10)
	}
	return strconv.Quote(p.str)
}

// bindArgs converts params to driver arguments in placeholder order.
func bindArgs(params []Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value()
	}
	return args
}

// rebindDollar rewrites `?` placeholders to PostgreSQL's `$1, $2, ...`.
// Question marks inside quoted literals or identifiers are left alone.
func rebindDollar(statement string) string {
	if !strings.Contains(statement, "?") {
		return statement
	}
	var b strings.Builder
	b.Grow(len(statement) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
