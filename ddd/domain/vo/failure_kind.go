package vo

// FailureKind 任务失败原因分类
type FailureKind string

const (
	FailureInvalidRequest FailureKind = "invalid_request"
	FailureMissingInputs  FailureKind = "missing_inputs"
	FailureAcquisition    FailureKind = "acquisition_failure"
	FailureEncode         FailureKind = "encode_failure"
	FailureEncodeTimeout  FailureKind = "encode_timeout"
	FailureVerification   FailureKind = "verification_failure"
	FailureUnhandled      FailureKind = "unhandled"
)

// IsFatal acquisition 失败只会降级为静态模式
func (k FailureKind) IsFatal() bool {
	return k != FailureAcquisition && k != ""
}
