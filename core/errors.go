package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 本系统中的错误全部是"降级并继续"：任何一种都不应阻止返回（可能为空的）排序结果。
// 调用方用 IsXXX 判断种类，决定打点与日志级别。
type DomainError struct {
	Code    string // 错误代码（如 "RETRIEVAL_FAILED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "recall", "model"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 按 Module + Code 匹配，使 errors.Is(err, ErrRetrieval) 对包装后的错误同样成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// Wrap 基于当前错误种类包装一个底层原因，保持 Module/Code 不变。
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Module: e.Module, Code: e.Code, Message: e.Message, Err: cause}
}

// 错误代码常量
const (
	ErrorCodeNotFound         = "NOT_FOUND"          // 资源不存在
	ErrorCodeNotSupported     = "NOT_SUPPORTED"      // 操作不支持
	ErrorCodeInvalidInput     = "INVALID_INPUT"      // 输入无效
	ErrorCodeRetrievalFailed  = "RETRIEVAL_FAILED"   // 向量检索失败
	ErrorCodeModelLoadFailed  = "MODEL_LOAD_FAILED"  // 模型加载失败
	ErrorCodePredictionFailed = "PREDICTION_FAILED"  // 模型推理失败
	ErrorCodeFilterInvalid    = "FILTER_INVALID"     // 过滤条件不合法
)

// 模块名称常量
const (
	ModuleStore  = "store"
	ModuleRecall = "recall"
	ModuleModel  = "model"
	ModuleFilter = "filter"
	ModuleRules  = "rules"
	ModuleVector = "vector"
)

// 四类可降级错误。
var (
	// ErrRetrieval 索引不可达或查询不合法，调用方得到空候选集。
	ErrRetrieval = NewDomainError(ModuleRecall, ErrorCodeRetrievalFailed, "retrieval failed")

	// ErrModelLoad 重排模型缺失或损坏，重排器永久进入 Disabled。
	ErrModelLoad = NewDomainError(ModuleModel, ErrorCodeModelLoadFailed, "model load failed")

	// ErrPrediction 单次请求推理失败，该请求返回重排前的顺序。
	ErrPrediction = NewDomainError(ModuleModel, ErrorCodePredictionFailed, "prediction failed")

	// ErrFilterValidation 抽取出的过滤条件不合法，按空过滤处理。
	ErrFilterValidation = NewDomainError(ModuleFilter, ErrorCodeFilterInvalid, "invalid filter")
)

func IsRetrievalError(err error) bool        { return errors.Is(err, ErrRetrieval) }
func IsModelLoadError(err error) bool        { return errors.Is(err, ErrModelLoad) }
func IsPredictionError(err error) bool       { return errors.Is(err, ErrPrediction) }
func IsFilterValidationError(err error) bool { return errors.Is(err, ErrFilterValidation) }

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if de := GetDomainError(err); de != nil {
		return de.Code == ErrorCodeNotFound
	}
	return false
}
