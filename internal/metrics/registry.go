package metrics

import (
	"bufio"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// Registry 指标注册表，按名称排序导出
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// family 同名指标族：标签名在登记时固定，每组标签值对应一个序列
type family struct {
	name    string
	help    string
	kind    kind
	labels  []string
	buckets []float64 // 仅直方图

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	values []string
	value  float64
	counts []uint64 // 直方图每个桶的观测数，不累加
	sum    float64
	count  uint64
}

// register 同名重复登记时返回已有的指标族
func (r *Registry) register(f *family) *family {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.families[f.name]; ok {
		return existing
	}
	f.series = make(map[string]*series)
	r.families[f.name] = f
	return f
}

// Counter 登记计数器
func (r *Registry) Counter(name, help string, labels ...string) *CounterVec {
	return &CounterVec{r.register(&family{name: name, help: help, kind: kindCounter, labels: labels})}
}

// Gauge 登记仪表盘
func (r *Registry) Gauge(name, help string, labels ...string) *GaugeVec {
	return &GaugeVec{r.register(&family{name: name, help: help, kind: kindGauge, labels: labels})}
}

// Histogram 登记直方图，buckets 为递增的上界
func (r *Registry) Histogram(name, help string, buckets []float64, labels ...string) *HistogramVec {
	bs := append([]float64(nil), buckets...)
	sort.Float64s(bs)
	return &HistogramVec{r.register(&family{name: name, help: help, kind: kindHistogram, labels: labels, buckets: bs})}
}

// at 返回标签值对应的序列，调用方持有 f.mu；标签值个数不足时补空串，多余的忽略
func (f *family) at(values []string) *series {
	vals := make([]string, len(f.labels))
	copy(vals, values)
	key := strings.Join(vals, "\xff")
	s, ok := f.series[key]
	if !ok {
		s = &series{values: vals}
		if f.kind == kindHistogram {
			s.counts = make([]uint64, len(f.buckets))
		}
		f.series[key] = s
	}
	return s
}

// CounterVec 只增不减的计数器
type CounterVec struct{ f *family }

// Inc 加一
func (c *CounterVec) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加 v，负数被忽略
func (c *CounterVec) Add(v float64, labelValues ...string) {
	if v < 0 {
		return
	}
	c.f.mu.Lock()
	c.f.at(labelValues).value += v
	c.f.mu.Unlock()
}

// GaugeVec 可任意设置的仪表盘
type GaugeVec struct{ f *family }

// Set 设置值
func (g *GaugeVec) Set(v float64, labelValues ...string) {
	g.f.mu.Lock()
	g.f.at(labelValues).value = v
	g.f.mu.Unlock()
}

// Add 增加 v
func (g *GaugeVec) Add(v float64, labelValues ...string) {
	g.f.mu.Lock()
	g.f.at(labelValues).value += v
	g.f.mu.Unlock()
}

// HistogramVec 直方图
type HistogramVec struct{ f *family }

// Observe 记录观测值
func (h *HistogramVec) Observe(v float64, labelValues ...string) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	s := h.f.at(labelValues)
	if i := sort.SearchFloat64s(h.f.buckets, v); i < len(s.counts) {
		s.counts[i]++
	}
	s.sum += v
	s.count++
}

// ServeHTTP 以文本格式导出
func (r *Registry) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = r.WriteTo(w)
}

// WriteTo 按名称顺序写出全部指标族
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	fams := make([]*family, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		fams = append(fams, r.families[name])
	}
	r.mu.RUnlock()

	e := &encoder{w: bufio.NewWriter(w)}
	for _, f := range fams {
		f.encode(e)
	}
	if e.err == nil {
		e.err = e.w.Flush()
	}
	return e.n, e.err
}

// encode 写出指标族；计数器和仪表盘没有标签时总会写出一行 0
func (f *family) encode(e *encoder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.write("# HELP ", f.name, " ", escapeHelp(f.help), "\n")
	e.write("# TYPE ", f.name, " ", string(f.kind), "\n")
	if len(f.series) == 0 && len(f.labels) == 0 && f.kind != kindHistogram {
		f.at(nil)
	}

	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s := f.series[k]
		if f.kind != kindHistogram {
			e.sample(f.name, f.labels, s.values, "", s.value)
			continue
		}
		var cumulative uint64
		for i, upper := range f.buckets {
			cumulative += s.counts[i]
			e.sample(f.name+"_bucket", f.labels, s.values, formatFloat(upper), float64(cumulative))
		}
		e.sample(f.name+"_bucket", f.labels, s.values, "+Inf", float64(s.count))
		e.sample(f.name+"_sum", f.labels, s.values, "", s.sum)
		e.sample(f.name+"_count", f.labels, s.values, "", float64(s.count))
	}
}

// encoder 记录写出的字节数和第一个错误
type encoder struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (e *encoder) write(parts ...string) {
	for _, p := range parts {
		if e.err != nil {
			return
		}
		n, err := e.w.WriteString(p)
		e.n += int64(n)
		e.err = err
	}
}

// sample 写出一行样本，le 不为空时追加桶上界标签
func (e *encoder) sample(name string, labels, values []string, le string, v float64) {
	e.write(name)
	if len(labels) > 0 || le != "" {
		e.write("{")
		for i, l := range labels {
			if i > 0 {
				e.write(",")
			}
			e.write(l, `="`, escapeLabel(values[i]), `"`)
		}
		if le != "" {
			if len(labels) > 0 {
				e.write(",")
			}
			e.write(`le="`, le, `"`)
		}
		e.write("}")
	}
	e.write(" ", formatFloat(v), "\n")
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var (
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
)

func escapeLabel(s string) string { return labelEscaper.Replace(s) }

func escapeHelp(s string) string { return helpEscaper.Replace(s) }
