package metadata

/**
 * @brief Arguments of one indexed indirect draw, laid out as the GPU reads them.
 */
type DrawIndexedArgs struct {
	IndexCountPerInstance uint32
	InstanceCount         uint32
	StartIndexLocation    uint32
	BaseVertexLocation    int32
	StartInstanceLocation uint32
}

/** @brief Arguments of one indirect compute dispatch. */
type DispatchArgs struct {
	ThreadGroupCountX uint32
	ThreadGroupCountY uint32
	ThreadGroupCountZ uint32
}

// Word offsets inside one batch record of the dispatch payload. A record is
// the draw arguments followed by the dispatch arguments and the meshlet
// indices the amplification pass emitted for that batch.
const (
	DrawIndexedArgsWords uint32 = 5
	DispatchArgsWords    uint32 = 3

	BatchRecordDrawOffset     uint32 = 0
	BatchRecordDispatchOffset uint32 = BatchRecordDrawOffset + DrawIndexedArgsWords
	BatchRecordMeshletOffset  uint32 = BatchRecordDispatchOffset + DispatchArgsWords
)

// BatchRecordWords is the record size in 32-bit words for batches of batchSize meshlets.
func BatchRecordWords(batchSize uint32) uint32 {
	return BatchRecordMeshletOffset + batchSize
}

func BatchRecordStride(batchSize uint32) uint32 {
	return BatchRecordWords(batchSize) * 4
}
