package metadata

import "fmt"

/**
 * @brief The pipeline stage a layout slot or a shader blob targets.
 */
type ShaderStage int

const (
	/** @brief Visible to every stage of the pipeline. */
	ShaderStageAll ShaderStage = iota
	ShaderStageVertex
	ShaderStagePixel
	ShaderStageCompute
	/** @brief Task stage of a mesh pipeline. Runs before the mesh stage. */
	ShaderStageAmplification
	ShaderStageMesh
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageAll:
		return "all"
	case ShaderStageVertex:
		return "vertex"
	case ShaderStagePixel:
		return "pixel"
	case ShaderStageCompute:
		return "compute"
	case ShaderStageAmplification:
		return "amplification"
	case ShaderStageMesh:
		return "mesh"
	}
	return fmt.Sprintf("ShaderStage(%d)", int(s))
}

/**
 * @brief Compiled shader bytecode. SPIR-V words for the Vulkan backend.
 */
type ShaderBlob struct {
	/** @brief The blob Name, used for debug labels and cache keys. */
	Name string
	/** @brief The Stage the code was compiled for. */
	Stage ShaderStage
	/** @brief Entry point, "main" when empty. */
	EntryPoint string
	/** @brief The Code as little-endian 32-bit words. */
	Code []uint32
}

func (b *ShaderBlob) Entry() string {
	if b.EntryPoint == "" {
		return "main"
	}
	return b.EntryPoint
}

/** @brief Size of the code in bytes. */
func (b *ShaderBlob) Size() uint {
	return uint(len(b.Code) * 4)
}

// BytesToWords converts little-endian bytes into 32-bit words. Trailing bytes are dropped.
func BytesToWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}
