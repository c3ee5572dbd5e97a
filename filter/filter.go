// Package filter 负责结构化过滤条件的严格解析与序列化。
//
// 上游（语言模型）返回的是文本，这里只做 JSON schema 校验：字段集合封闭，
// 类型不符即判为 FilterValidationError，绝不把文本当作指令执行。
// 解析失败时调用方应按空过滤处理（ParseOrEmpty）。
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rushteam/shoprank/core"
)

// 允许的顶层字段。
const (
	fieldCategory   = "category"
	fieldBrand      = "brand"
	fieldPriceRange = "price_range"
	fieldPrice      = "price" // 旧格式：{"price": {"$gte": 10, "$lte": 200}}
)

// Parse 严格解析过滤条件。
//
// 支持两种形态：
//
//	{"category": "Luxury", "brand": "Dior", "price_range": {"min": 10, "max": 200}}
//	{"category": {"$eq": "Luxury"}, "price": {"$gte": 10, "$lte": 200}}
//
// 其他顶层字段（notes、use_case 等）被忽略；空输入或 {} 得到空过滤。
func Parse(raw []byte) (core.Filter, error) {
	var f core.Filter

	raw = stripFence(raw)
	if len(raw) == 0 {
		return f, nil
	}

	var fields map[string]json.RawMessage
	if err := decodeStrict(raw, &fields); err != nil {
		return core.Filter{}, invalid("filter must be a JSON object", err)
	}

	var ignored []string
	for key, val := range fields {
		var err error
		switch strings.ToLower(key) {
		case fieldCategory:
			f.Category, err = parseString(key, val)
		case fieldBrand:
			f.Brand, err = parseString(key, val)
		case fieldPriceRange, fieldPrice:
			if f.PriceRange != nil {
				return core.Filter{}, invalid("price and price_range are mutually exclusive", nil)
			}
			if strings.EqualFold(key, fieldPrice) {
				f.PriceRange, err = parseOperatorRange(val)
			} else {
				f.PriceRange, err = parseRange(val)
			}
		default:
			ignored = append(ignored, key)
		}
		if err != nil {
			return core.Filter{}, err
		}
	}

	if pr := f.PriceRange; pr != nil {
		if pr.Min != nil && pr.Max != nil && *pr.Min > *pr.Max {
			return core.Filter{}, invalid(fmt.Sprintf("price_range min %.2f > max %.2f", *pr.Min, *pr.Max), nil)
		}
		if pr.Min == nil && pr.Max == nil {
			f.PriceRange = nil
		}
	}

	if len(ignored) > 0 {
		sort.Strings(ignored)
		slog.Debug("filter: ignored unsupported fields", "fields", ignored)
	}
	return f, nil
}

// ParseOrEmpty 解析失败时返回空过滤以及原始错误（已记录日志），从不阻塞排序。
func ParseOrEmpty(raw []byte, logger *slog.Logger) (core.Filter, error) {
	f, err := Parse(raw)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("filter: validation failed, using empty filter", "error", err)
		return core.Filter{}, err
	}
	return f, nil
}

func parseString(key string, val json.RawMessage) (*string, error) {
	if isNull(val) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		// 旧格式 {"$eq": "..."}
		var op map[string]json.RawMessage
		if decodeStrict(val, &op) != nil || len(op) != 1 {
			return nil, invalid(key+" must be a string", err)
		}
		eq, ok := op["$eq"]
		if !ok {
			return nil, invalid(key+": only $eq is supported", nil)
		}
		if err := json.Unmarshal(eq, &s); err != nil {
			return nil, invalid(key+".$eq must be a string", err)
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func parseRange(val json.RawMessage) (*core.PriceRange, error) {
	if isNull(val) {
		return nil, nil
	}
	var raw struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	}
	dec := json.NewDecoder(bytes.NewReader(val))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid("price_range must be {min?, max?} numbers", err)
	}
	if err := checkPrice(raw.Min); err != nil {
		return nil, err
	}
	if err := checkPrice(raw.Max); err != nil {
		return nil, err
	}
	return &core.PriceRange{Min: raw.Min, Max: raw.Max}, nil
}

// parseOperatorRange 解析旧格式的 $gte/$lte（$gt/$lt 按闭区间近似）。
func parseOperatorRange(val json.RawMessage) (*core.PriceRange, error) {
	if isNull(val) {
		return nil, nil
	}
	var ops map[string]float64
	if err := decodeStrict(val, &ops); err != nil {
		return nil, invalid("price must be an operator object with numeric values", err)
	}
	pr := &core.PriceRange{}
	for op, v := range ops {
		switch op {
		case "$gte", "$gt":
			pr.Min = &v
		case "$lte", "$lt":
			pr.Max = &v
		default:
			return nil, invalid("price: unsupported operator "+op, nil)
		}
		if err := checkPrice(&v); err != nil {
			return nil, err
		}
	}
	return pr, nil
}

func checkPrice(v *float64) error {
	if v != nil && *v < 0 {
		return invalid(fmt.Sprintf("price bound must be non-negative, got %v", *v), nil)
	}
	return nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

func isNull(val json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(val), []byte("null"))
}

// stripFence 去掉模型输出常见的 ```json 代码块包裹。
func stripFence(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) {
		return s
	}
	s = bytes.TrimPrefix(s, []byte("```"))
	if i := bytes.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = bytes.TrimSuffix(bytes.TrimSpace(s), []byte("```"))
	return bytes.TrimSpace(s)
}

func invalid(msg string, cause error) error {
	e := core.ErrFilterValidation.Wrap(cause)
	e.Message = "invalid filter: " + msg
	return e
}
