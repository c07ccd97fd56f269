package xrequire

import (
	"fmt"
	"strings"
)

// Env 是变量替换使用的键值环境。nil Env 等价于空环境。
type Env map[string]string

// Lookup 查找变量。
func (e Env) Lookup(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// Expand 替换 input 中的 ${NAME} 与 $NAME 占位符。
//
// $$ 转义为字面量 $；$ 后面既不是 { 也不是合法变量名首字符时原样保留。
// 任一变量未绑定时返回 [UnresolvedVariableError]，不返回部分替换结果。
func Expand(input string, env Env) (string, error) {
	if !strings.Contains(input, "$") {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c != '$' || i+1 >= len(input) {
			b.WriteByte(c)
			continue
		}

		next := input[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '{':
			end := strings.IndexByte(input[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed placeholder in %q", ErrInvalidSpec, input)
			}
			name := input[i+2 : i+2+end]
			if !isVarName(name) {
				return "", fmt.Errorf("%w: bad variable name %q in %q", ErrInvalidSpec, name, input)
			}
			v, ok := env.Lookup(name)
			if !ok {
				return "", &UnresolvedVariableError{Variable: name, Input: input}
			}
			b.WriteString(v)
			i += 2 + end
		case isVarStart(next):
			j := i + 1
			for j < len(input) && isVarChar(input[j]) {
				j++
			}
			name := input[i+1 : j]
			v, ok := env.Lookup(name)
			if !ok {
				return "", &UnresolvedVariableError{Variable: name, Input: input}
			}
			b.WriteString(v)
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func isVarStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isVarChar(c byte) bool {
	return isVarStart(c) || (c >= '0' && c <= '9')
}

func isVarName(s string) bool {
	if s == "" || !isVarStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isVarChar(s[i]) {
			return false
		}
	}
	return true
}
