package optimizer

import (
	"math/rand"

	"github.com/paiban/residency/pkg/model"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveTransfer MoveType = iota // 把一个班转给另一名住院医师
	MoveInsert                   // 加派一个班
	MoveRemove                   // 撤掉一个班
	MoveExchange                 // 两名住院医师互换班次
)

// Move 邻域移动：From 让出 Shift，To 接上 Shift；互换时 To 同时让出 Shift2 给 From
type Move struct {
	Type   MoveType
	From   int // 没有让出方时为 -1
	To     int // 没有接班方时为 -1
	Shift  int
	Shift2 int
}

// Residents 返回移动涉及的住院医师
func (m *Move) Residents() []int {
	var out []int
	if m.From >= 0 {
		out = append(out, m.From)
	}
	if m.To >= 0 {
		out = append(out, m.To)
	}
	return out
}

// Shifts 返回移动涉及的班次
func (m *Move) Shifts() []int {
	if m.Type == MoveExchange {
		return []int{m.Shift, m.Shift2}
	}
	return []int{m.Shift}
}

// Apply 在 x 上执行移动
func (m *Move) Apply(x [][]bool) {
	if m.From >= 0 {
		x[m.From][m.Shift] = false
	}
	if m.To >= 0 {
		x[m.To][m.Shift] = true
	}
	if m.Type == MoveExchange {
		x[m.To][m.Shift2] = false
		x[m.From][m.Shift2] = true
	}
}

// Delta 返回移动带来的偏好满足数变化
func (m *Move) Delta(prefs model.Preferences) int64 {
	if prefs == nil {
		return 0
	}
	var d int64
	if m.From >= 0 {
		d -= int64(prefs[m.From][m.Shift])
	}
	if m.To >= 0 {
		d += int64(prefs[m.To][m.Shift])
	}
	if m.Type == MoveExchange {
		d += int64(prefs[m.From][m.Shift2]) - int64(prefs[m.To][m.Shift2])
	}
	return d
}

type weightedMove struct {
	moveType MoveType
	weight   float64
}

// NeighborhoodGenerator 邻域生成器
type NeighborhoodGenerator struct {
	rng         *rand.Rand
	moveWeights []weightedMove
	wantBias    float64 // 按偏好挑选班次的概率
	tries       int
}

// NewNeighborhoodGenerator 创建邻域生成器
func NewNeighborhoodGenerator(rng *rand.Rand) *NeighborhoodGenerator {
	return &NeighborhoodGenerator{
		rng: rng,
		moveWeights: []weightedMove{
			{MoveTransfer, 0.40}, // 40% 转班
			{MoveInsert, 0.25},   // 25% 加派
			{MoveExchange, 0.25}, // 25% 互换
			{MoveRemove, 0.10},   // 10% 撤班
		},
		wantBias: 0.8,
		tries:    16,
	}
}

// GenerateMove 随机生成一个移动，找不到合适的位置时返回 nil
func (n *NeighborhoodGenerator) GenerateMove(x [][]bool, prefs model.Preferences) *Move {
	if len(x) == 0 || len(x[0]) == 0 {
		return nil
	}

	switch n.selectMoveType() {
	case MoveInsert:
		return n.generateInsertMove(x, prefs)
	case MoveRemove:
		return n.generateRemoveMove(x, prefs)
	case MoveExchange:
		return n.generateExchangeMove(x, prefs)
	default:
		return n.generateTransferMove(x, prefs)
	}
}

// selectMoveType 按权重选择移动类型
func (n *NeighborhoodGenerator) selectMoveType() MoveType {
	r := n.rng.Float64()
	cumulative := 0.0
	for _, wm := range n.moveWeights {
		cumulative += wm.weight
		if r < cumulative {
			return wm.moveType
		}
	}
	return MoveTransfer
}

// pickCell 随机找一个取值为 on 的格子，biased 时优先找 wanted 与之一致的格子
func (n *NeighborhoodGenerator) pickCell(x [][]bool, prefs model.Preferences, on, wanted bool) (int, int, bool) {
	biased := prefs != nil && n.rng.Float64() < n.wantBias
	var fr, fs int
	found := false
	for i := 0; i < n.tries; i++ {
		r := n.rng.Intn(len(x))
		s := n.rng.Intn(len(x[r]))
		if x[r][s] != on {
			continue
		}
		if !biased || prefs.Wants(r, s) == wanted {
			return r, s, true
		}
		if !found {
			fr, fs, found = r, s, true
		}
	}
	return fr, fs, found
}

// generateTransferMove 把某人的班转给另一名希望上此班的人
func (n *NeighborhoodGenerator) generateTransferMove(x [][]bool, prefs model.Preferences) *Move {
	to, s, ok := n.pickCell(x, prefs, false, true)
	if !ok {
		return nil
	}
	var holders []int
	for r := range x {
		if x[r][s] {
			holders = append(holders, r)
		}
	}
	if len(holders) == 0 {
		return nil
	}
	from := holders[n.rng.Intn(len(holders))]
	return &Move{Type: MoveTransfer, From: from, To: to, Shift: s}
}

// generateInsertMove 给某人加派一个班
func (n *NeighborhoodGenerator) generateInsertMove(x [][]bool, prefs model.Preferences) *Move {
	r, s, ok := n.pickCell(x, prefs, false, true)
	if !ok {
		return nil
	}
	return &Move{Type: MoveInsert, From: -1, To: r, Shift: s}
}

// generateRemoveMove 撤掉某人不想上的一个班，为后续加派腾出余量
func (n *NeighborhoodGenerator) generateRemoveMove(x [][]bool, prefs model.Preferences) *Move {
	r, s, ok := n.pickCell(x, prefs, true, false)
	if !ok {
		return nil
	}
	return &Move{Type: MoveRemove, From: r, To: -1, Shift: s}
}

// generateExchangeMove 两人互换各自的一个班
func (n *NeighborhoodGenerator) generateExchangeMove(x [][]bool, prefs model.Preferences) *Move {
	if len(x) < 2 {
		return nil
	}
	from, s1, ok := n.pickCell(x, prefs, true, false)
	if !ok {
		return nil
	}
	for i := 0; i < n.tries; i++ {
		to := n.rng.Intn(len(x))
		s2 := n.rng.Intn(len(x[to]))
		if to == from || x[to][s1] || !x[to][s2] || x[from][s2] {
			continue
		}
		return &Move{Type: MoveExchange, From: from, To: to, Shift: s1, Shift2: s2}
	}
	return nil
}
