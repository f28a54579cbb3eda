// Package replication 记录需要同步到客户端的成员字段。
// 服务端在 Tick 之后 Collect 变化量，由网络层按自己的节奏下发；
// 客户端只读镜像，不经过本包写回。
package replication

import (
	"fmt"
	"sort"
)

// Change 单个字段的一次变化
type Change struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type field interface {
	name() string
	collect(now float64) (Change, bool)
	current() Change
}

type member[T comparable] struct {
	key         string
	ptr         *T
	last        T
	sent        bool
	maxInterval float64
	sentAt      float64
}

func (m *member[T]) name() string { return m.key }

func (m *member[T]) current() Change { return Change{Name: m.key, Value: *m.ptr} }

func (m *member[T]) collect(now float64) (Change, bool) {
	if m.sent {
		if *m.ptr == m.last {
			return Change{}, false
		}
		if m.maxInterval > 0 && now-m.sentAt < m.maxInterval {
			return Change{}, false
		}
	}
	m.last = *m.ptr
	m.sent = true
	m.sentAt = now
	return m.current(), true
}

// Option 注册选项
type Option func(*options)

type options struct {
	maxInterval float64
}

// WithMaxInterval 限制字段的最大下发频率（秒）。例如 0.5 表示每秒最多两次
func WithMaxInterval(seconds float64) Option {
	return func(o *options) { o.maxInterval = seconds }
}

// Registry 每艘船一个，按注册顺序保存字段引用
type Registry struct {
	fields []field
	names  map[string]struct{}
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register 注册一个可同步字段。重复注册同名字段属于编程错误，直接 panic
func Register[T comparable](r *Registry, name string, ptr *T, opts ...Option) {
	if ptr == nil {
		panic(fmt.Sprintf("replication: nil pointer for %q", name))
	}
	if _, dup := r.names[name]; dup {
		panic(fmt.Sprintf("replication: %q registered twice", name))
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	r.fields = append(r.fields, &member[T]{key: name, ptr: ptr, maxInterval: o.maxInterval})
	r.names[name] = struct{}{}
}

// Len 已注册字段数
func (r *Registry) Len() int { return len(r.fields) }

// Has 是否已注册
func (r *Registry) Has(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Collect 返回自上次收集以来发生变化、且已过节流间隔的字段。
// now 为模拟时间（秒）。首次收集总是包含全部字段
func (r *Registry) Collect(now float64) []Change {
	var out []Change
	for _, f := range r.fields {
		if c, ok := f.collect(now); ok {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot 全量字段，给新接入的客户端做初始同步；按名字排序便于比对
func (r *Registry) Snapshot() []Change {
	out := make([]Change, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f.current())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
