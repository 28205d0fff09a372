// Package constraint 定义约束族接口和管理器
package constraint

import (
	"sync"

	"github.com/paiban/residency/pkg/logger"
)

// Manager 约束族管理器，注册表可在多个请求间共享，编码按注册顺序进行
type Manager struct {
	families []Family
	mu       sync.RWMutex
	logger   *logger.SchedulerLogger
}

// NewManager 创建约束族管理器
func NewManager() *Manager {
	return &Manager{
		families: make([]Family, 0),
		logger:   logger.NewSchedulerLogger(),
	}
}

// Register 注册约束族，同类型的约束族会被替换
func (m *Manager) Register(f Family) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.families {
		if existing.Type() == f.Type() {
			m.families[i] = f
			return
		}
	}
	m.families = append(m.families, f)
}

// Unregister 注销约束族
func (m *Manager) Unregister(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, f := range m.families {
		if f.Type() == t {
			m.families = append(m.families[:i], m.families[i+1:]...)
			return
		}
	}
}

// Get 获取约束族
func (m *Manager) Get(t Type) Family {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.families {
		if f.Type() == t {
			return f
		}
	}
	return nil
}

// GetAll 获取所有约束族
func (m *Manager) GetAll() []Family {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Family, len(m.families))
	copy(result, m.families)
	return result
}

// Encode 依次编码所有约束族
func (m *Manager) Encode(ctx *Context) *Report {
	families := m.GetAll()

	report := &Report{Families: make([]FamilyReport, 0, len(families))}
	for _, f := range families {
		n := f.Encode(ctx)
		m.logger.FamilyEncoded(f.Name(), n)
		report.Families = append(report.Families, FamilyReport{
			Type:        f.Type(),
			Name:        f.Name(),
			Constraints: n,
		})
	}

	report.Variables = ctx.Builder.NumVars()
	report.Constraints = ctx.Builder.NumConstraints()
	return report
}

// Clear 清除所有约束族
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.families = make([]Family, 0)
}

// Count 返回约束族数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.families)
}

// Summary 返回约束族摘要
func (m *Manager) Summary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]string, 0, len(m.families))
	for _, f := range m.families {
		types = append(types, string(f.Type()))
	}
	return map[string]interface{}{
		"total": len(m.families),
		"types": types,
	}
}
