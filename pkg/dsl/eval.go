// Package dsl 用 CEL (Common Expression Language) 在商品 metadata 上求值过滤表达式。
//
// 表达式中唯一的变量是 meta（map<string, dyn>），例如：
//   - has(meta.category) && meta.category == "Luxury"
//   - has(meta.price) && double(meta.price) <= 200.0
//
// CEL 不会执行任意代码，表达式即使来自上游抽取结果也是安全的。
package dsl

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	programs sync.Map // expr -> *Matcher
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("meta", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Matcher 是编译后的表达式，可并发调用 Match。
type Matcher struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；同一表达式只编译一次。
func Compile(expr string) (*Matcher, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(*Matcher), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	m := &Matcher{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, m)
	return actual.(*Matcher), nil
}

func (m *Matcher) String() string { return m.expr }

// Match 在 meta 上求值。求值出错（类型不符等）视为不匹配并返回错误。
func (m *Matcher) Match(meta map[string]any) (bool, error) {
	out, _, err := m.prg.Eval(map[string]any{"meta": normalize(meta)})
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return bool, got %T", out.Value())
	}
	return b, nil
}

// normalize 把 CEL 不认识的数值类型转成 float64。
func normalize(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case json.Number:
			if f, err := val.Float64(); err == nil {
				out[k] = f
				continue
			}
			out[k] = val.String()
		case float32:
			out[k] = float64(val)
		case int:
			out[k] = int64(val)
		case int32:
			out[k] = int64(val)
		default:
			out[k] = v
		}
	}
	return out
}
