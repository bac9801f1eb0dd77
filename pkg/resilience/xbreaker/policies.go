package xbreaker

// TripPolicy 关闭态下的打开判定。
//
// 入参为某个维度当前窗口的计数，签名与 gobreaker.Settings.ReadyToTrip 一致。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// ConsecutiveFailuresPolicy 连续失败数达到阈值时打开，供 errorCount 使用。
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败判定，threshold 小于 1 时按 1 处理。
//
//	trip := xbreaker.NewConsecutiveFailures(5)
//	trip.ReadyToTrip(xbreaker.Counts{ConsecutiveFailures: 5}) // true
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	return &ConsecutiveFailuresPolicy{threshold: max(threshold, 1)}
}

// ReadyToTrip 实现 TripPolicy。
func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// FailureRatioPolicy 窗口内失败率达到阈值时打开，供 errorRate 使用。
//
// 请求数不足 minRequests 时不判定。
type FailureRatioPolicy struct {
	ratio       float64 // [0, 1]
	minRequests uint32
}

// NewFailureRatio 创建失败率判定，ratio 被限制在 [0, 1]。
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	return &FailureRatioPolicy{
		ratio:       min(max(ratio, 0), 1),
		minRequests: minRequests,
	}
}

// ReadyToTrip 实现 TripPolicy。
func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	// Requests 为 0 时同样返回 false，避免除零
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

// NeverTripPolicy 永不打开。
//
// 作为窗口计数器的 ReadyToTrip，让 gobreaker 只负责计数，
// 打开判定留给 xcircuit.Machine。
type NeverTripPolicy struct{}

// NewNeverTrip 创建永不打开的判定。
func NewNeverTrip() *NeverTripPolicy {
	return &NeverTripPolicy{}
}

// ReadyToTrip 实现 TripPolicy，总是返回 false。
func (p *NeverTripPolicy) ReadyToTrip(_ Counts) bool {
	return false
}

var (
	_ TripPolicy = (*ConsecutiveFailuresPolicy)(nil)
	_ TripPolicy = (*FailureRatioPolicy)(nil)
	_ TripPolicy = (*NeverTripPolicy)(nil)
)
