package xrequire

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpec 表示需求声明不合法：名称与标签同时出现或都缺失、数量为负、占位符未闭合等。
	ErrInvalidSpec = errors.New("xrequire: invalid requirement spec")

	// ErrInvalidLabelExpr 表示标签表达式语法错误。
	ErrInvalidLabelExpr = errors.New("xrequire: invalid label expression")

	// ErrUnresolvedVariable 表示引用了未绑定的变量。
	// 具体变量名通过 [UnresolvedVariableError] 获取。
	ErrUnresolvedVariable = errors.New("xrequire: unresolved variable")

	// ErrInvalidCacheSize 表示缓存容量不是正数。
	ErrInvalidCacheSize = errors.New("xrequire: cache size must be positive")
)

// UnresolvedVariableError 记录未绑定的变量及其所在的原始输入。
type UnresolvedVariableError struct {
	Variable string
	Input    string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("xrequire: unresolved variable %q in %q", e.Variable, e.Input)
}

// Is 使 errors.Is(err, ErrUnresolvedVariable) 成立。
func (e *UnresolvedVariableError) Is(target error) bool {
	return target == ErrUnresolvedVariable
}

// IsUnresolvedVariable 判断错误是否由未绑定变量引起。
func IsUnresolvedVariable(err error) bool {
	return errors.Is(err, ErrUnresolvedVariable)
}
