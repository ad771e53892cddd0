package codec

import (
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// Checksum 帧负载校验算法
type Checksum string

const (
	ChecksumNone   Checksum = "none"
	ChecksumCRC32  Checksum = "crc32"
	ChecksumCRC32C Checksum = "crc32c"
	ChecksumXXHash Checksum = "xxhash"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func (c Checksum) valid() bool {
	switch c {
	case "", ChecksumNone, ChecksumCRC32, ChecksumCRC32C, ChecksumXXHash:
		return true
	}
	return false
}

// sum 计算校验和，xxhash 取低 32 位，none 恒为 0
func (c Checksum) sum(p []byte) uint32 {
	switch c {
	case ChecksumCRC32:
		return crc32.ChecksumIEEE(p)
	case ChecksumCRC32C:
		return crc32.Checksum(p, castagnoli)
	case ChecksumXXHash:
		return uint32(xxhash.Sum64(p))
	}
	return 0
}
