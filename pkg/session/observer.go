package session

// Observer 会话事件钩子，用于指标与故障上报。
// 回调在会话的 I/O 完成 goroutine 上同步执行，不应阻塞。
type Observer interface {
	OnOpened(s *Session)
	OnRead(s *Session, n int)
	OnWrite(s *Session, n int)
	// OnClosed reason 为 nil 表示主动关闭
	OnClosed(s *Session, reason error)
}

// NopObserver 空实现，可嵌入只关心部分事件的观察者
type NopObserver struct{}

func (NopObserver) OnOpened(*Session) {}
func (NopObserver) OnRead(*Session, int) {}
func (NopObserver) OnWrite(*Session, int) {}
func (NopObserver) OnClosed(*Session, error) {}

// MultiObserver 按顺序分发给多个观察者
type MultiObserver []Observer

func (m MultiObserver) OnOpened(s *Session) {
	for _, o := range m {
		o.OnOpened(s)
	}
}

func (m MultiObserver) OnRead(s *Session, n int) {
	for _, o := range m {
		o.OnRead(s, n)
	}
}

func (m MultiObserver) OnWrite(s *Session, n int) {
	for _, o := range m {
		o.OnWrite(s, n)
	}
}

func (m MultiObserver) OnClosed(s *Session, reason error) {
	for _, o := range m {
		o.OnClosed(s, reason)
	}
}

// Observers 合并观察者，忽略 nil
func Observers(obs ...Observer) Observer {
	out := make(MultiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NopObserver{}
	case 1:
		return out[0]
	}
	return out
}
