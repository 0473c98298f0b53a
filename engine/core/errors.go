package core

import (
	"errors"
)

var (
	ErrNotInitialized          = errors.New("fallback layer not initialized")
	ErrPayloadOverflow         = errors.New("dispatch exceeds payload batch capacity")
	ErrMissingFallbackPipeline = errors.New("missing mesh or raster fallback pipeline")
	ErrInvalidPipelineLayout   = errors.New("invalid pipeline layout bundle")
	ErrInvalidPipeline         = errors.New("invalid pipeline bundle")
	ErrInvalidState            = errors.New("call not allowed in current context state")
	ErrSlotKindMismatch        = errors.New("binding kind does not match layout slot")
	ErrSlotOutOfRange          = errors.New("layout slot index out of range")
	ErrMeshShaderUnsupported   = errors.New("mesh shaders not supported by device")
	ErrUnknownShaderFormat     = errors.New("unknown shader format")
	ErrInvalidConfig           = errors.New("invalid configuration")
	ErrUnknown                 = errors.New("unknown")
)
