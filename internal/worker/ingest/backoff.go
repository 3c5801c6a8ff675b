package ingest

import "time"

const (
	// baseDelay は再試行遅延の固定部分。
	baseDelay = 5 * time.Second
	// delayStep は失敗回数に応じて倍加する遅延の単位。
	delayStep = 10 * time.Second
	// maxDelay は再試行遅延の上限（1時間）。
	maxDelay = 3600 * time.Second
)

// NextRunTime は連続失敗回数に基づいて次回の再試行時刻を計算する。
// 遅延は 5 + 10 * 2^failureCount 秒で、上限は1時間。
// failureCountがmaxFailureCount以上の場合は再試行せず、nilを返す
// （恒久的失敗）。
func NextRunTime(failureCount, maxFailureCount int, now time.Time) *time.Time {
	if failureCount >= maxFailureCount {
		return nil
	}

	delay := maxDelay
	// シフト幅が大きい場合は計算せず上限を使用する
	if failureCount < 30 {
		d := baseDelay + delayStep*time.Duration(1<<uint(failureCount))
		if d < maxDelay {
			delay = d
		}
	}

	t := now.Add(delay)
	return &t
}
