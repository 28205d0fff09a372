package model

import (
	"math/rand"
)

// DefaultSeed 默认偏好生成种子
const DefaultSeed int64 = 936

// Preferences 偏好矩阵，Preferences[r][s] == 1 表示住院医师 r 希望上班次 s
type Preferences [][]int

// NewPreferences 创建全 0 偏好矩阵
func NewPreferences(residents, shifts int) Preferences {
	p := make(Preferences, residents)
	for r := range p {
		p[r] = make([]int, shifts)
	}
	return p
}

// RandomPreferences 用固定种子生成 0/1 偏好矩阵，相同种子得到相同矩阵
func RandomPreferences(residents, shifts int, seed int64) Preferences {
	rng := rand.New(rand.NewSource(seed))
	p := NewPreferences(residents, shifts)
	for r := range p {
		for s := range p[r] {
			p[r][s] = rng.Intn(2)
		}
	}
	return p
}

// Set 设置偏好
func (p Preferences) Set(r, s int, want bool) {
	if want {
		p[r][s] = 1
	} else {
		p[r][s] = 0
	}
}

// Wants 住院医师 r 是否希望上班次 s
func (p Preferences) Wants(r, s int) bool {
	return p[r][s] == 1
}

// Count 返回偏好请求总数
func (p Preferences) Count() int {
	n := 0
	for _, row := range p {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// Row 返回住院医师 r 的偏好行
func (p Preferences) Row(r int) []int {
	return p[r]
}
