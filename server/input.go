package server

const (
	// MaxPendingInputs 单个玩家待处理输入上限，溢出时丢弃最旧的
	MaxPendingInputs = 64
	// 方向向量长度平方的合法区间；上限略放宽以容忍浮点误差
	directionEpsilonSq   = 1e-6
	maxDirectionLengthSq = 1.21
)

// PendingInput 已通过校验、等待逻辑帧处理的输入
type PendingInput struct {
	Seq     uint32
	DirX    float64
	DirY    float64
	DeltaMs uint32 // 客户端上报，仅记录
}

// inputQueue 有界 FIFO
type inputQueue struct {
	items []PendingInput
}

func (q *inputQueue) Len() int { return len(q.items) }

// push 入队；满时丢弃最旧输入，返回是否发生丢弃
func (q *inputQueue) push(in PendingInput) bool {
	dropped := false
	if len(q.items) >= MaxPendingInputs {
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, in)
	return dropped
}

func (q *inputQueue) pop() (PendingInput, bool) {
	if len(q.items) == 0 {
		return PendingInput{}, false
	}
	in := q.items[0]
	q.items = q.items[1:]
	return in, true
}

// validDirection 方向必须接近单位长度，防止放大向量伪造速度
func validDirection(x, y float64) bool {
	lenSq := x*x + y*y
	return lenSq >= directionEpsilonSq && lenSq <= maxDirectionLengthSq
}
