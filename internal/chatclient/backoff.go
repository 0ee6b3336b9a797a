package chatclient

import "time"

// ReconnectPolicy 決定重連的延遲與次數上限
type ReconnectPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy: 1s 起跳、每次加倍、上限 30s、最多 5 次
var DefaultReconnectPolicy = ReconnectPolicy{
	Base:        time.Second,
	Cap:         30 * time.Second,
	MaxAttempts: 5,
}

// Delay 回傳第 attempt 次（從 0 開始）重連前要等待的時間：min(Base * 2^attempt, Cap)
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		if d > p.Cap/2 {
			return p.Cap
		}
		d *= 2
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Exhausted 回報 attempt 是否已用完重連額度
func (p ReconnectPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
