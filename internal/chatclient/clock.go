package chatclient

import "time"

// Clock 排程計時器。測試時可替換成手動推進的實作。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 是已排程的計時器
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
