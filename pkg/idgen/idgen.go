package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

// Generator ID生成器接口
type Generator interface {
	// NextID 生成下一个唯一ID
	NextID() (int64, error)
}

// SessionIDs 把 g 适配为会话标识生成函数，十进制字符串；
// g 出错时（例如时钟超出 sonyflake 的可表示范围）退回 UUID。
func SessionIDs(g Generator) func() string {
	return func() string {
		id, err := g.NextID()
		if err != nil {
			return uuid.NewString()
		}
		return strconv.FormatInt(id, 10)
	}
}
