package transaction

import "errors"

var (
	// ErrNullEngine ...
	ErrNullEngine = errors.New("engine must not be null")
	// ErrFlowNotInitialized ...
	ErrFlowNotInitialized = errors.New("flow has not been initialized")
	// ErrFlowAlreadyExecuted ...
	ErrFlowAlreadyExecuted = errors.New("flow has already been executed")
	// ErrFlowStopped ...
	ErrFlowStopped = errors.New("flow has been stopped")
	// ErrInvalidSourceType ...
	ErrInvalidSourceType = errors.New("source type is not supported by this engine")
	// ErrInvalidTargetType ...
	ErrInvalidTargetType = errors.New("target type is not supported by this engine")
)
