package xmodel

import "time"

// Options 是聚合核心的配置旋钮集合，采用教师仓库一贯的
// 函数式选项风格构造并一次性 fail-fast 校验（对照 xconf.Options /
// xbreaker.BreakerOption）。
type Options struct {
	Mode                 Mode
	EnableS2SWhenCapable bool
	TestMode             bool
	ValidationModeEnabled bool

	BreakerThreshold      uint32
	BreakerResetTimeout   time.Duration
	BreakerHalfOpenProbes uint32

	ObservabilityEnabled  bool
	ObservabilitySampleRate float64
	ObservabilityMaxQueue int

	ConfigTTL      time.Duration
	RenderTimeout  time.Duration
}

// Option 是构造 Options 的函数式选项。
type Option func(*Options)

// DefaultOptions 返回全部配置旋钮的默认值。
func DefaultOptions() Options {
	return Options{
		Mode:                    ModeBYO,
		EnableS2SWhenCapable:    false,
		TestMode:                false,
		ValidationModeEnabled:   false,
		BreakerThreshold:        5,
		BreakerResetTimeout:     60 * time.Second,
		BreakerHalfOpenProbes:   3,
		ObservabilityEnabled:    true,
		ObservabilitySampleRate: 1.0,
		ObservabilityMaxQueue:   100,
		ConfigTTL:               3600 * time.Second,
		RenderTimeout:           3500 * time.Millisecond,
	}
}

func WithMode(m Mode) Option { return func(o *Options) { o.Mode = m } }

func WithEnableS2SWhenCapable(v bool) Option { return func(o *Options) { o.EnableS2SWhenCapable = v } }

func WithTestMode(v bool) Option { return func(o *Options) { o.TestMode = v } }

func WithValidationModeEnabled(v bool) Option { return func(o *Options) { o.ValidationModeEnabled = v } }

func WithBreaker(threshold uint32, resetTimeout time.Duration, halfOpenProbes uint32) Option {
	return func(o *Options) {
		if threshold > 0 {
			o.BreakerThreshold = threshold
		}
		if resetTimeout >= time.Second {
			o.BreakerResetTimeout = resetTimeout
		}
		if halfOpenProbes > 0 {
			o.BreakerHalfOpenProbes = halfOpenProbes
		}
	}
}

func WithObservability(enabled bool, sampleRate float64, maxQueue int) Option {
	return func(o *Options) {
		o.ObservabilityEnabled = enabled
		if sampleRate < 0 {
			sampleRate = 0
		} else if sampleRate > 1 {
			sampleRate = 1
		}
		o.ObservabilitySampleRate = sampleRate
		if maxQueue >= 100 {
			o.ObservabilityMaxQueue = maxQueue
		}
	}
}

func WithConfigTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConfigTTL = d
		}
	}
}

func WithRenderTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.RenderTimeout = d
		}
	}
}

// Build 应用全部选项并校验结果，fail-fast 返回第一个发现的错误。
func Build(opts ...Option) (Options, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	switch o.Mode {
	case ModeBYO, ModeHybrid, ModeManaged:
	default:
		return Options{}, ErrInvalidMode
	}
	if o.Mode == ModeBYO {
		// BYO 模式下 S2S 永久关闭。
		o.EnableS2SWhenCapable = false
	}
	if o.ObservabilitySampleRate < 0 || o.ObservabilitySampleRate > 1 {
		return Options{}, ErrInvalidSampleRate
	}
	if o.ObservabilityMaxQueue < 100 {
		return Options{}, ErrInvalidMaxQueue
	}
	return o, nil
}
